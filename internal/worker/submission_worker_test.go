package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/skillcheck/assessment-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id uuid.UUID, status model.SyncStatus, at time.Time) *model.SubmissionRecord {
	return &model.SubmissionRecord{
		Result:     model.SubmissionResult{TestID: id},
		SyncStatus: status,
		UpdatedAt:  at,
	}
}

func TestLatestPerTest(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	batch := []*model.SubmissionRecord{
		record(a, model.SyncStatusError, t0),
		record(b, model.SyncStatusSuccess, t0),
		record(a, model.SyncStatusSuccess, t0.Add(time.Minute)),
		record(b, model.SyncStatusError, t0.Add(-time.Minute)),
	}

	got := latestPerTest(batch)
	require.Len(t, got, 2)
	assert.Equal(t, a, got[0].Result.TestID)
	assert.Equal(t, model.SyncStatusSuccess, got[0].SyncStatus)
	assert.Equal(t, b, got[1].Result.TestID)
	assert.Equal(t, model.SyncStatusSuccess, got[1].SyncStatus)
}

func TestLatestPerTest_Empty(t *testing.T) {
	assert.Empty(t, latestPerTest(nil))
}

// ─── Fakes ───────────────────────────────────────────────────────────

type fakeWriter struct {
	mu        sync.Mutex
	batchErr  error
	failIDs   map[uuid.UUID]bool
	batches   [][]*model.SubmissionRecord
	singles   []uuid.UUID
	persisted map[uuid.UUID]model.SyncStatus
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{failIDs: map[uuid.UUID]bool{}, persisted: map[uuid.UUID]model.SyncStatus{}}
}

func (f *fakeWriter) UpsertBatch(_ context.Context, recs []*model.SubmissionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, recs)
	if f.batchErr != nil {
		return f.batchErr
	}
	for _, r := range recs {
		f.persisted[r.Result.TestID] = r.SyncStatus
	}
	return nil
}

func (f *fakeWriter) Upsert(_ context.Context, rec *model.SubmissionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.singles = append(f.singles, rec.Result.TestID)
	if f.failIDs[rec.Result.TestID] {
		return errors.New("row rejected")
	}
	f.persisted[rec.Result.TestID] = rec.SyncStatus
	return nil
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.persisted)
}

// fakeQueue is an in-memory Redis list.
type fakeQueue struct {
	mu     sync.Mutex
	items  []string
	pushed []string
}

func (q *fakeQueue) BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	q.mu.Lock()
	if len(q.items) > 0 {
		item := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()
		return redis.NewStringSliceResult([]string{keys[0], item}, nil)
	}
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		return redis.NewStringSliceResult(nil, ctx.Err())
	case <-time.After(5 * time.Millisecond):
		return redis.NewStringSliceResult(nil, redis.Nil)
	}
}

func (q *fakeQueue) RPush(_ context.Context, _ string, values ...interface{}) *redis.IntCmd {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, v := range values {
		switch raw := v.(type) {
		case []byte:
			q.pushed = append(q.pushed, string(raw))
		case string:
			q.pushed = append(q.pushed, raw)
		}
	}
	return redis.NewIntResult(int64(len(q.pushed)), nil)
}

func (q *fakeQueue) push(t *testing.T, rec *model.SubmissionRecord) {
	t.Helper()
	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	q.mu.Lock()
	q.items = append(q.items, string(raw))
	q.mu.Unlock()
}

// ─── Flush ───────────────────────────────────────────────────────────

func TestFlush_BulkSucceeds(t *testing.T) {
	store, q := newFakeWriter(), &fakeQueue{}
	w := NewSubmissionWorker(store, q, zerolog.Nop())

	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	a := uuid.New()
	w.flushSafe(context.Background(), []*model.SubmissionRecord{
		record(a, model.SyncStatusError, t0),
		record(a, model.SyncStatusSuccess, t0.Add(time.Second)),
	})

	require.Len(t, store.batches, 1)
	assert.Len(t, store.batches[0], 1, "duplicate test ids collapse before the bulk write")
	assert.Empty(t, store.singles)
	assert.Equal(t, model.SyncStatusSuccess, store.persisted[a])
	assert.Empty(t, q.pushed)
}

func TestFlush_BulkFailsSinglesSucceed(t *testing.T) {
	store, q := newFakeWriter(), &fakeQueue{}
	store.batchErr = errors.New("batch rejected")
	w := NewSubmissionWorker(store, q, zerolog.Nop())

	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	batch := make([]*model.SubmissionRecord, 0, len(ids))
	for _, id := range ids {
		batch = append(batch, record(id, model.SyncStatusSuccess, t0))
	}

	w.flushSafe(context.Background(), batch)

	assert.ElementsMatch(t, ids, store.singles)
	for _, id := range ids {
		assert.Equal(t, model.SyncStatusSuccess, store.persisted[id])
	}
	assert.Empty(t, q.pushed, "nothing goes back to the queue when every row lands")
}

func TestFlush_FailedRowIsRequeued(t *testing.T) {
	store, q := newFakeWriter(), &fakeQueue{}
	store.batchErr = errors.New("batch rejected")
	bad, good := uuid.New(), uuid.New()
	store.failIDs[bad] = true
	w := NewSubmissionWorker(store, q, zerolog.Nop())

	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	w.flushSafe(context.Background(), []*model.SubmissionRecord{
		record(good, model.SyncStatusSuccess, t0),
		record(bad, model.SyncStatusError, t0),
	})

	assert.Equal(t, model.SyncStatusSuccess, store.persisted[good])
	_, landed := store.persisted[bad]
	assert.False(t, landed)

	require.Len(t, q.pushed, 1)
	var requeued model.SubmissionRecord
	require.NoError(t, json.Unmarshal([]byte(q.pushed[0]), &requeued))
	assert.Equal(t, bad, requeued.Result.TestID)
	assert.Equal(t, model.SyncStatusError, requeued.SyncStatus)
}

func TestFlush_EmptyBatchIsNoop(t *testing.T) {
	store, q := newFakeWriter(), &fakeQueue{}
	NewSubmissionWorker(store, q, zerolog.Nop()).flushSafe(context.Background(), nil)
	assert.Empty(t, store.batches)
}

// ─── Loop ────────────────────────────────────────────────────────────

func TestStart_FlushesPendingBatchOnShutdown(t *testing.T) {
	store, q := newFakeWriter(), &fakeQueue{}
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	q.push(t, record(uuid.New(), model.SyncStatusSuccess, t0))
	q.push(t, record(uuid.New(), model.SyncStatusError, t0))
	q.mu.Lock()
	q.items = append(q.items, "not json")
	q.mu.Unlock()

	w := NewSubmissionWorker(store, q, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.items) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
	assert.Equal(t, 2, store.count(), "malformed payloads are skipped, valid ones persisted")
}
