package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/skillcheck/assessment-backend/internal/config"
	"github.com/skillcheck/assessment-backend/internal/model"
)

// SubmissionQueue hands submission records to the persistence worker.
type SubmissionQueue struct {
	rdb *redis.Client
}

func NewSubmissionQueue(rdb *redis.Client) *SubmissionQueue {
	return &SubmissionQueue{rdb: rdb}
}

func (q *SubmissionQueue) Enqueue(ctx context.Context, rec *model.SubmissionRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistSubmissionsQueue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue submission: %w", err)
	}
	return nil
}
