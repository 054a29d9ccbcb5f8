package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/skillcheck/assessment-backend/internal/config"
	"github.com/skillcheck/assessment-backend/internal/model"
)

// ErrCacheMiss is returned when a key is absent from Redis.
var ErrCacheMiss = errors.New("cache miss")

// SessionRepository keeps in-progress assembled tests and their autosaved
// answers in Redis. Abandoned sessions expire on their own.
type SessionRepository struct {
	rdb *redis.Client
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(rdb *redis.Client) *SessionRepository {
	return &SessionRepository{rdb: rdb}
}

// SaveTest stores the full assembled test, answer key included.
func (r *SessionRepository) SaveTest(ctx context.Context, test *model.AssembledTest, ttl time.Duration) error {
	data, err := json.Marshal(test)
	if err != nil {
		return fmt.Errorf("marshal test: %w", err)
	}
	key := config.CacheKey.AssembledTestKey(test.ID.String())
	if err := r.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache test: %w", err)
	}
	return nil
}

// GetTest returns ErrCacheMiss when the session is unknown or expired.
func (r *SessionRepository) GetTest(ctx context.Context, testID string) (*model.AssembledTest, error) {
	data, err := r.rdb.Get(ctx, config.CacheKey.AssembledTestKey(testID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("get test: %w", err)
	}

	var test model.AssembledTest
	if err := json.Unmarshal(data, &test); err != nil {
		return nil, fmt.Errorf("unmarshal test: %w", err)
	}
	return &test, nil
}

// DeleteTest drops a session together with its autosaved answers.
func (r *SessionRepository) DeleteTest(ctx context.Context, testID string) error {
	pipe := r.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.AssembledTestKey(testID))
	pipe.Del(ctx, config.CacheKey.TestAnswersKey(testID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete test: %w", err)
	}
	return nil
}

// SaveAnswer records one autosaved answer; the hash shares the session TTL.
func (r *SessionRepository) SaveAnswer(ctx context.Context, testID, questionID string, choice int, ttl time.Duration) error {
	key := config.CacheKey.TestAnswersKey(testID)
	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, key, questionID, choice)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// GetAnswers returns autosaved answers; malformed entries are skipped.
func (r *SessionRepository) GetAnswers(ctx context.Context, testID string) (map[string]int, error) {
	raw, err := r.rdb.HGetAll(ctx, config.CacheKey.TestAnswersKey(testID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get answers: %w", err)
	}
	answers := make(map[string]int, len(raw))
	for qid, v := range raw {
		choice, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		answers[qid] = choice
	}
	return answers, nil
}
