package resultsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/skillcheck/assessment-backend/internal/model"
)

// ResultPoster is the subset of Client the Syncer needs.
type ResultPoster interface {
	PostResult(ctx context.Context, result *model.SubmissionResult) (*model.ServerAck, error)
}

var transitions = map[model.SyncStatus][]model.SyncStatus{
	model.SyncStatusIdle:    {model.SyncStatusSyncing},
	model.SyncStatusSyncing: {model.SyncStatusSuccess, model.SyncStatusError},
	model.SyncStatusError:   {model.SyncStatusSyncing},
	model.SyncStatusSuccess: nil,
}

// CanTransition reports whether from -> to is a legal sync status change.
func CanTransition(from, to model.SyncStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DefaultRetention is how long a delivered record stays in memory.
const DefaultRetention = 10 * time.Minute

// Syncer tracks per-submission delivery state and retries once on failure.
type Syncer struct {
	poster     ResultPoster
	retryDelay time.Duration
	retention  time.Duration
	now        func() time.Time
	log        zerolog.Logger

	mu     sync.Mutex
	states map[uuid.UUID]*model.SubmissionRecord
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithClock overrides the time source used for UpdatedAt and eviction.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

// WithRetention sets how long successful records are kept before eviction.
// Non-positive values keep the default.
func WithRetention(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.retention = d
		}
	}
}

// NewSyncer creates a new Syncer delivering through poster.
func NewSyncer(poster ResultPoster, retryDelay time.Duration, opts ...Option) *Syncer {
	s := &Syncer{
		poster:     poster,
		retryDelay: retryDelay,
		retention:  DefaultRetention,
		now:        time.Now,
		log:        log.With().Str("component", "resultsync").Logger(),
		states:     make(map[uuid.UUID]*model.SubmissionRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit delivers result, retrying at most once after the configured delay.
// The returned record reflects the final state whether or not delivery succeeded.
func (s *Syncer) Submit(ctx context.Context, result *model.SubmissionResult) (model.SubmissionRecord, error) {
	s.mu.Lock()
	s.evictLocked()
	if rec, ok := s.states[result.TestID]; ok {
		status := rec.SyncStatus
		s.mu.Unlock()
		switch status {
		case model.SyncStatusSuccess:
			return model.SubmissionRecord{}, ErrAlreadySynced
		case model.SyncStatusSyncing:
			return model.SubmissionRecord{}, ErrSyncInFlight
		}
		return s.Retry(ctx, result.TestID)
	}
	s.states[result.TestID] = &model.SubmissionRecord{
		Result:     *result,
		SyncStatus: model.SyncStatusIdle,
		UpdatedAt:  s.now().UTC(),
	}
	s.mu.Unlock()

	return s.deliver(ctx, result.TestID, 2)
}

// Retry makes one more delivery attempt for a submission in the error state.
func (s *Syncer) Retry(ctx context.Context, testID uuid.UUID) (model.SubmissionRecord, error) {
	s.mu.Lock()
	rec, ok := s.states[testID]
	if !ok {
		s.mu.Unlock()
		return model.SubmissionRecord{}, ErrUnknownTest
	}
	status := rec.SyncStatus
	s.mu.Unlock()

	switch status {
	case model.SyncStatusSuccess:
		return model.SubmissionRecord{}, ErrAlreadySynced
	case model.SyncStatusSyncing:
		return model.SubmissionRecord{}, ErrSyncInFlight
	}
	return s.deliver(ctx, testID, 1)
}

// Restore seeds state from persisted history, e.g. after a restart.
// Records caught mid-sync are treated as failed.
func (s *Syncer) Restore(rec model.SubmissionRecord) {
	if rec.SyncStatus == model.SyncStatusSyncing || rec.SyncStatus == "" {
		rec.SyncStatus = model.SyncStatusError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	if _, ok := s.states[rec.Result.TestID]; ok {
		return
	}
	s.states[rec.Result.TestID] = &rec
}

// Record returns a snapshot of the current sync state.
func (s *Syncer) Record(testID uuid.UUID) (model.SubmissionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.states[testID]
	if !ok {
		return model.SubmissionRecord{}, false
	}
	return *rec, true
}

// Len reports how many submissions are tracked in memory.
func (s *Syncer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// evictLocked drops delivered records older than the retention window.
// Only success is terminal, so nothing in flight or retryable is touched.
func (s *Syncer) evictLocked() {
	cutoff := s.now().UTC().Add(-s.retention)
	for id, rec := range s.states {
		if rec.SyncStatus == model.SyncStatusSuccess && rec.UpdatedAt.Before(cutoff) {
			delete(s.states, id)
		}
	}
}

func (s *Syncer) transition(testID uuid.UUID, to model.SyncStatus, update func(*model.SubmissionRecord)) (model.SubmissionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.states[testID]
	if !CanTransition(rec.SyncStatus, to) {
		if rec.SyncStatus == model.SyncStatusSuccess {
			return *rec, ErrAlreadySynced
		}
		return *rec, fmt.Errorf("illegal sync transition %s -> %s", rec.SyncStatus, to)
	}
	rec.SyncStatus = to
	rec.UpdatedAt = s.now().UTC()
	if update != nil {
		update(rec)
	}
	return *rec, nil
}

func (s *Syncer) deliver(ctx context.Context, testID uuid.UUID, maxAttempts int) (model.SubmissionRecord, error) {
	rec, err := s.transition(testID, model.SyncStatusSyncing, nil)
	if err != nil {
		return rec, err
	}
	payload := rec.Result
	logger := s.log.With().Str("test_id", testID.String()).Logger()

	var lastErr error
	attempts := 0
attempt:
	for attempts < maxAttempts {
		if attempts > 0 {
			logger.Warn().Err(lastErr).Dur("delay", s.retryDelay).Msg("Retrying result sync")
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				break attempt
			case <-time.After(s.retryDelay):
			}
		}
		attempts++
		ack, err := s.poster.PostResult(ctx, &payload)
		if err == nil {
			logger.Info().Int("attempts", attempts).Str("server_id", string(ack.ID)).Msg("Result synced")
			return s.transition(testID, model.SyncStatusSuccess, func(r *model.SubmissionRecord) {
				r.SyncAttempts += attempts
				r.ServerAck = ack
				r.LastError = ""
			})
		}
		lastErr = err
	}

	logger.Error().Err(lastErr).Int("attempts", attempts).Msg("Result sync failed")
	final, terr := s.transition(testID, model.SyncStatusError, func(r *model.SubmissionRecord) {
		r.SyncAttempts += attempts
		r.LastError = lastErr.Error()
	})
	if terr != nil {
		return final, terr
	}

	syncErr := &SyncError{TestID: testID, Attempts: attempts, Payload: &payload, Err: lastErr}
	var statusErr *StatusError
	if errors.As(lastErr, &statusErr) {
		syncErr.StatusCode = statusErr.StatusCode
	}
	return final, syncErr
}
