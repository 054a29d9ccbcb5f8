package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/skillcheck/assessment-backend/internal/assembler"
	"github.com/skillcheck/assessment-backend/internal/blueprint"
	"github.com/skillcheck/assessment-backend/internal/model"
	"github.com/skillcheck/assessment-backend/internal/pool"
	"github.com/skillcheck/assessment-backend/internal/repository"
	"github.com/skillcheck/assessment-backend/internal/resultsync"
	"github.com/skillcheck/assessment-backend/internal/scoring"
)

// TestCache holds active sessions.
type TestCache interface {
	SaveTest(ctx context.Context, test *model.AssembledTest, ttl time.Duration) error
	GetTest(ctx context.Context, testID string) (*model.AssembledTest, error)
	DeleteTest(ctx context.Context, testID string) error
	SaveAnswer(ctx context.Context, testID, questionID string, choice int, ttl time.Duration) error
	GetAnswers(ctx context.Context, testID string) (map[string]int, error)
}

type CandidateCache interface {
	Get(ctx context.Context, id string) (*model.CandidateProfile, error)
	Set(ctx context.Context, id string, p *model.CandidateProfile) error
}

type SubmissionQueue interface {
	Enqueue(ctx context.Context, rec *model.SubmissionRecord) error
}

type SubmissionStore interface {
	GetByTestID(ctx context.Context, testID uuid.UUID) (*model.SubmissionRecord, error)
	ListByCandidate(ctx context.Context, candidateID string, page, perPage int) ([]model.SubmissionRecord, int64, error)
	ListBySyncStatus(ctx context.Context, statuses ...model.SyncStatus) ([]model.SubmissionRecord, error)
}

// Backend is the read side of the results backend.
type Backend interface {
	ListResults(ctx context.Context) ([]model.ResultRecord, error)
	GetCandidate(ctx context.Context, id string) (*model.CandidateProfile, error)
}

// Dependencies wires an AssessmentService.
type Dependencies struct {
	Pools       *pool.Store
	Blueprints  *blueprint.Catalog
	Assembler   *assembler.Assembler
	Scorer      *scoring.Engine
	Syncer      *resultsync.Syncer
	Sessions    TestCache
	Candidates  CandidateCache
	Queue       SubmissionQueue
	Submissions SubmissionStore
	Backend     Backend
	GracePeriod time.Duration
	// SyncTimeout bounds delivery and bookkeeping after a test is graded.
	// That work runs detached from the caller's context.
	SyncTimeout time.Duration
	Log         zerolog.Logger
	Now         func() time.Time
}

// DefaultSyncTimeout applies when Dependencies.SyncTimeout is zero.
const DefaultSyncTimeout = 30 * time.Second

// AssessmentService runs a test from assembly through grading and sync.
type AssessmentService struct {
	pools       *pool.Store
	blueprints  *blueprint.Catalog
	assembler   *assembler.Assembler
	scorer      *scoring.Engine
	syncer      *resultsync.Syncer
	sessions    TestCache
	candidates  CandidateCache
	queue       SubmissionQueue
	submissions SubmissionStore
	backend     Backend
	grace       time.Duration
	syncTimeout time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

// NewAssessmentService creates a new AssessmentService.
func NewAssessmentService(d Dependencies) *AssessmentService {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	syncTimeout := d.SyncTimeout
	if syncTimeout <= 0 {
		syncTimeout = DefaultSyncTimeout
	}
	return &AssessmentService{
		pools:       d.Pools,
		blueprints:  d.Blueprints,
		assembler:   d.Assembler,
		scorer:      d.Scorer,
		syncer:      d.Syncer,
		sessions:    d.Sessions,
		candidates:  d.Candidates,
		queue:       d.Queue,
		submissions: d.Submissions,
		backend:     d.Backend,
		grace:       d.GracePeriod,
		syncTimeout: syncTimeout,
		log:         d.Log.With().Str("component", "assessment_service").Logger(),
		now:         now,
	}
}

// ListTestTypes returns every test type that has both a blueprint and a pool.
func (s *AssessmentService) ListTestTypes() []model.TestTypeSummary {
	var out []model.TestTypeSummary
	for _, tt := range s.blueprints.TestTypes() {
		spec, _ := s.blueprints.Get(tt)
		p, err := s.pools.GetPool(tt)
		if err != nil {
			continue
		}
		out = append(out, model.TestTypeSummary{
			TestType:         tt,
			Title:            spec.Title,
			TimeLimitMinutes: spec.TimeLimitMinutes,
			QuestionCount:    spec.TotalCount(),
			PoolSize:         p.Len(),
		})
	}
	return out
}

// StartTest assembles a fresh instance and caches it for the session.
func (s *AssessmentService) StartTest(ctx context.Context, testType, candidateID string) (*model.TestPaper, error) {
	spec, ok := s.blueprints.Get(testType)
	if !ok {
		return nil, &pool.NotFoundError{TestType: testType}
	}
	p, err := s.pools.GetPool(testType)
	if err != nil {
		return nil, err
	}

	test, err := s.assembler.Assemble(p, spec, candidateID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.SaveTest(ctx, test, s.sessionTTL(test)); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.log.Info().
		Str("test_id", test.ID.String()).
		Str("test_type", testType).
		Str("candidate_id", candidateID).
		Int("questions", len(test.Questions)).
		Msg("Test started")
	return test.Paper(), nil
}

// GetSession restores the candidate's view after a reload.
func (s *AssessmentService) GetSession(ctx context.Context, testID string) (*model.SessionState, error) {
	test, err := s.loadTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	answers, err := s.sessions.GetAnswers(ctx, testID)
	if err != nil {
		return nil, err
	}

	remaining := test.Deadline().Sub(s.now()).Seconds()
	if remaining < 0 {
		remaining = 0
	}
	return &model.SessionState{
		Paper:            test.Paper(),
		AutosavedAnswers: answers,
		RemainingSeconds: remaining,
		Expired:          remaining == 0,
	}, nil
}

// Deadline returns when the session's timer runs out.
func (s *AssessmentService) Deadline(ctx context.Context, testID string) (time.Time, error) {
	test, err := s.loadTest(ctx, testID)
	if err != nil {
		return time.Time{}, err
	}
	return test.Deadline(), nil
}

// SaveAnswer autosaves one answer. Late saves are accepted; expiry is advisory.
func (s *AssessmentService) SaveAnswer(ctx context.Context, testID, questionID string, choice int) error {
	test, err := s.loadTest(ctx, testID)
	if err != nil {
		return err
	}
	if err := checkAnswer(test, questionID, choice); err != nil {
		return err
	}
	return s.sessions.SaveAnswer(ctx, testID, questionID, choice, s.sessionTTL(test))
}

// Submit grades the session and delivers the result. Explicit answers take
// precedence over autosaved ones. A *resultsync.SyncError is returned together
// with the outcome when delivery failed; the result is kept for Retry.
// Once graded, a dropped client no longer stops delivery or persistence.
func (s *AssessmentService) Submit(ctx context.Context, testID string, answers map[string]int, auto bool) (*model.SubmitOutcome, error) {
	test, err := s.loadTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	saved, err := s.sessions.GetAnswers(ctx, testID)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]int, len(saved)+len(answers))
	for qid, c := range saved {
		merged[qid] = c
	}
	for qid, c := range answers {
		merged[qid] = c
	}

	result, err := s.scorer.Score(test, merged, auto)
	if err != nil {
		return nil, err
	}

	bg, cancel := s.detach(ctx)
	defer cancel()

	rec, syncErr := s.syncer.Submit(bg, result)
	if syncErr != nil && !isSyncFailure(syncErr) {
		return nil, syncErr
	}
	s.persist(bg, &rec)

	if err := s.sessions.DeleteTest(bg, testID); err != nil {
		s.log.Warn().Err(err).Str("test_id", testID).Msg("Failed to drop finished session")
	}

	s.log.Info().
		Str("test_id", testID).
		Int("percentage", result.Percentage).
		Bool("auto", auto).
		Str("sync_status", string(rec.SyncStatus)).
		Msg("Test submitted")

	return outcome(rec), syncErr
}

// Retry re-sends a result whose delivery failed.
func (s *AssessmentService) Retry(ctx context.Context, testID string) (*model.SubmitOutcome, error) {
	id, err := uuid.Parse(testID)
	if err != nil {
		return nil, ErrSubmissionNotFound
	}
	if _, ok := s.syncer.Record(id); !ok {
		stored, err := s.submissions.GetByTestID(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrSubmissionNotFound
			}
			return nil, fmt.Errorf("load submission: %w", err)
		}
		s.syncer.Restore(*stored)
	}

	bg, cancel := s.detach(ctx)
	defer cancel()

	rec, syncErr := s.syncer.Retry(bg, id)
	if syncErr != nil && !isSyncFailure(syncErr) {
		return nil, syncErr
	}
	s.persist(bg, &rec)
	return outcome(rec), syncErr
}

// GetSubmission prefers the live sync state over persisted history.
func (s *AssessmentService) GetSubmission(ctx context.Context, testID string) (*model.SubmissionRecord, error) {
	id, err := uuid.Parse(testID)
	if err != nil {
		return nil, ErrSubmissionNotFound
	}
	if rec, ok := s.syncer.Record(id); ok {
		return &rec, nil
	}
	rec, err := s.submissions.GetByTestID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return rec, nil
}

func (s *AssessmentService) ListCandidateSubmissions(ctx context.Context, candidateID string, page, perPage int) ([]model.SubmissionRecord, int64, error) {
	return s.submissions.ListByCandidate(ctx, candidateID, page, perPage)
}

// ListBackendResults proxies the backend's result listing.
func (s *AssessmentService) ListBackendResults(ctx context.Context) ([]model.ResultRecord, error) {
	results, err := s.backend.ListResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	return results, nil
}

// GetCandidate reads through the profile cache.
func (s *AssessmentService) GetCandidate(ctx context.Context, id string) (*model.CandidateProfile, error) {
	if p, err := s.candidates.Get(ctx, id); err == nil {
		return p, nil
	} else if !errors.Is(err, repository.ErrCacheMiss) {
		s.log.Warn().Err(err).Str("candidate_id", id).Msg("Candidate cache read failed")
	}

	p, err := s.backend.GetCandidate(ctx, id)
	if err != nil {
		var statusErr *resultsync.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, ErrCandidateNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	if err := s.candidates.Set(ctx, id, p); err != nil {
		s.log.Warn().Err(err).Str("candidate_id", id).Msg("Candidate cache write failed")
	}
	return p, nil
}

// RestorePending reloads unsynced submissions so they can be retried after a restart.
func (s *AssessmentService) RestorePending(ctx context.Context) (int, error) {
	recs, err := s.submissions.ListBySyncStatus(ctx,
		model.SyncStatusIdle, model.SyncStatusSyncing, model.SyncStatusError)
	if err != nil {
		return 0, fmt.Errorf("list pending submissions: %w", err)
	}
	for _, rec := range recs {
		s.syncer.Restore(rec)
	}
	return len(recs), nil
}

func (s *AssessmentService) loadTest(ctx context.Context, testID string) (*model.AssembledTest, error) {
	if _, err := uuid.Parse(testID); err != nil {
		return nil, ErrSessionNotFound
	}
	test, err := s.sessions.GetTest(ctx, testID)
	if err != nil {
		if errors.Is(err, repository.ErrCacheMiss) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return test, nil
}

func (s *AssessmentService) sessionTTL(test *model.AssembledTest) time.Duration {
	return test.TimeLimit() + s.grace
}

// detach keeps the request's values but not its cancellation.
func (s *AssessmentService) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.syncTimeout)
}

func (s *AssessmentService) persist(ctx context.Context, rec *model.SubmissionRecord) {
	if err := s.queue.Enqueue(ctx, rec); err != nil {
		s.log.Error().Err(err).Str("test_id", rec.Result.TestID.String()).Msg("Failed to enqueue submission")
	}
}

func checkAnswer(test *model.AssembledTest, questionID string, choice int) error {
	for _, q := range test.Questions {
		if q.ID != questionID {
			continue
		}
		if choice < 0 || choice >= len(q.Choices) {
			return &scoring.InvalidTestStateError{TestID: test.ID, QuestionID: questionID, Reason: "choice index out of range"}
		}
		return nil
	}
	return &scoring.InvalidTestStateError{TestID: test.ID, QuestionID: questionID, Reason: "question is not part of this test"}
}

func isSyncFailure(err error) bool {
	var syncErr *resultsync.SyncError
	return errors.As(err, &syncErr)
}

func outcome(rec model.SubmissionRecord) *model.SubmitOutcome {
	result := rec.Result
	return &model.SubmitOutcome{
		Result:     &result,
		SyncStatus: rec.SyncStatus,
		ServerAck:  rec.ServerAck,
	}
}
