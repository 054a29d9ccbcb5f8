package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/skillcheck/assessment-backend/internal/config"
	"github.com/skillcheck/assessment-backend/internal/model"
)

const (
	SubmissionBatchSize    = 50
	SubmissionBatchTimeout = 2 * time.Second
	SubmissionPollTimeout  = 1 * time.Second
)

// SubmissionWriter is the persistence side of the worker.
type SubmissionWriter interface {
	UpsertBatch(ctx context.Context, recs []*model.SubmissionRecord) error
	Upsert(ctx context.Context, rec *model.SubmissionRecord) error
}

// Queue is the Redis list API the worker uses; *redis.Client satisfies it.
type Queue interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// SubmissionWorker drains the submission queue into PostgreSQL.
type SubmissionWorker struct {
	store SubmissionWriter
	rdb   Queue
	log   zerolog.Logger
	queue string
}

// NewSubmissionWorker creates a new SubmissionWorker.
func NewSubmissionWorker(store SubmissionWriter, rdb Queue, log zerolog.Logger) *SubmissionWorker {
	return &SubmissionWorker{
		store: store,
		rdb:   rdb,
		log:   log.With().Str("component", "submission_worker").Logger(),
		queue: config.WorkerKey.PersistSubmissionsQueue,
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *SubmissionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("SubmissionWorker started")

	batch := make([]*model.SubmissionRecord, 0, SubmissionBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= SubmissionBatchSize || time.Since(lastFlush) >= SubmissionBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, SubmissionPollTimeout, w.queue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var rec model.SubmissionRecord
			if err := json.Unmarshal([]byte(item[1]), &rec); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &rec)
		}
	}
}

// ----------------------------------------------------------------
// Batch upsert with single-row fallback
// ----------------------------------------------------------------

func (w *SubmissionWorker) flushSafe(ctx context.Context, batch []*model.SubmissionRecord) {
	if len(batch) == 0 {
		return
	}
	recs := latestPerTest(batch)

	if err := w.store.UpsertBatch(ctx, recs); err != nil {
		w.log.Warn().Err(err).Int("size", len(recs)).Msg("bulk submission upsert failed, using fallback")

		for _, rec := range recs {
			if err := w.store.Upsert(ctx, rec); err != nil {
				w.log.Error().Err(err).Str("test_id", rec.Result.TestID.String()).Msg("Upsert failed, requeueing")
				raw, _ := json.Marshal(rec)
				if err := w.rdb.RPush(ctx, w.queue, raw).Err(); err != nil {
					w.log.Error().Err(err).Str("test_id", rec.Result.TestID.String()).Msg("Requeue failed, record dropped")
				}
			}
		}
		return
	}

	w.log.Debug().Int("size", len(recs)).Msg("Submissions persisted")
}

// latestPerTest keeps the most recently updated record for each test so one
// batch never hits the same row twice.
func latestPerTest(batch []*model.SubmissionRecord) []*model.SubmissionRecord {
	index := make(map[string]int, len(batch))
	out := make([]*model.SubmissionRecord, 0, len(batch))
	for _, rec := range batch {
		id := rec.Result.TestID.String()
		if i, ok := index[id]; ok {
			if !rec.UpdatedAt.Before(out[i].UpdatedAt) {
				out[i] = rec
			}
			continue
		}
		index[id] = len(out)
		out = append(out, rec)
	}
	return out
}
