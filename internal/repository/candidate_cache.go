package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/skillcheck/assessment-backend/internal/config"
	"github.com/skillcheck/assessment-backend/internal/model"
)

// CandidateCache caches backend candidate profiles.
type CandidateCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCandidateCache(rdb *redis.Client, ttl time.Duration) *CandidateCache {
	return &CandidateCache{rdb: rdb, ttl: ttl}
}

func (c *CandidateCache) Get(ctx context.Context, id string) (*model.CandidateProfile, error) {
	data, err := c.rdb.Get(ctx, config.CacheKey.CandidateProfileKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	var p model.CandidateProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal candidate: %w", err)
	}
	return &p, nil
}

func (c *CandidateCache) Set(ctx context.Context, id string, p *model.CandidateProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal candidate: %w", err)
	}
	return c.rdb.Set(ctx, config.CacheKey.CandidateProfileKey(id), data, c.ttl).Err()
}
