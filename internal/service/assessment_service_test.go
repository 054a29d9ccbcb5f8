package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ----------------------------------------------------------------
// In-memory fakes
// ----------------------------------------------------------------

type memSessions struct {
	mu      sync.Mutex
	tests   map[string]*model.AssembledTest
	answers map[string]map[string]int
}

func newMemSessions() *memSessions {
	return &memSessions{tests: map[string]*model.AssembledTest{}, answers: map[string]map[string]int{}}
}

func (m *memSessions) SaveTest(_ context.Context, t *model.AssembledTest, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tests[t.ID.String()] = t
	return nil
}

func (m *memSessions) GetTest(_ context.Context, id string) (*model.AssembledTest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tests[id]
	if !ok {
		return nil, repository.ErrCacheMiss
	}
	return t, nil
}

func (m *memSessions) DeleteTest(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tests, id)
	delete(m.answers, id)
	return nil
}

func (m *memSessions) SaveAnswer(_ context.Context, id, qid string, choice int, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.answers[id] == nil {
		m.answers[id] = map[string]int{}
	}
	m.answers[id][qid] = choice
	return nil
}

func (m *memSessions) GetAnswers(_ context.Context, id string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int{}
	for k, v := range m.answers[id] {
		out[k] = v
	}
	return out, nil
}

type memCandidates struct {
	profiles map[string]*model.CandidateProfile
}

func (m *memCandidates) Get(_ context.Context, id string) (*model.CandidateProfile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, repository.ErrCacheMiss
	}
	return p, nil
}

func (m *memCandidates) Set(_ context.Context, id string, p *model.CandidateProfile) error {
	m.profiles[id] = p
	return nil
}

type memQueue struct {
	mu   sync.Mutex
	recs []model.SubmissionRecord
}

// Enqueue fails on a done context like a real Redis round trip would.
func (q *memQueue) Enqueue(ctx context.Context, rec *model.SubmissionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.recs = append(q.recs, *rec)
	return nil
}

type memStore struct {
	recs map[uuid.UUID]model.SubmissionRecord
}

func (m *memStore) GetByTestID(_ context.Context, id uuid.UUID) (*model.SubmissionRecord, error) {
	rec, ok := m.recs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &rec, nil
}

func (m *memStore) ListByCandidate(_ context.Context, candidateID string, _, _ int) ([]model.SubmissionRecord, int64, error) {
	var out []model.SubmissionRecord
	for _, r := range m.recs {
		if r.Result.CandidateID == candidateID {
			out = append(out, r)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memStore) ListBySyncStatus(_ context.Context, statuses ...model.SyncStatus) ([]model.SubmissionRecord, error) {
	var out []model.SubmissionRecord
	for _, r := range m.recs {
		for _, s := range statuses {
			if r.SyncStatus == s {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

// ----------------------------------------------------------------
// Fixture
// ----------------------------------------------------------------

type fixture struct {
	svc       *AssessmentService
	sessions  *memSessions
	queue     *memQueue
	store     *memStore
	posts     *int32
	failPosts *int32
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sessions:  newMemSessions(),
		queue:     &memQueue{},
		store:     &memStore{recs: map[uuid.UUID]model.SubmissionRecord{}},
		posts:     new(int32),
		failPosts: new(int32),
		now:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/results/":
			atomic.AddInt32(f.posts, 1)
			if atomic.LoadInt32(f.failPosts) > 0 {
				atomic.AddInt32(f.failPosts, -1)
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id": 7}`))
		case r.URL.Path == "/api/results/":
			_, _ = w.Write([]byte(`{"results": [{"id": 1, "test_type": "verbal"}]}`))
		case r.URL.Path == "/api/candidates/42/":
			_, _ = w.Write([]byte(`{"id": 42, "name": "Ada", "skills": [], "badges": []}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	var qs []model.Question
	for i := 0; i < 6; i++ {
		qs = append(qs, model.Question{
			ID: fmt.Sprintf("v%d", i), Type: model.QuestionTypeAnalogy, Stem: "stem",
			Choices: []string{"a", "b", "c"}, AnswerIndex: i % 3, Difficulty: model.DifficultyEasy,
		})
	}
	p, err := pool.NewPool("verbal", qs)
	require.NoError(t, err)
	catalog, err := blueprint.NewCatalog(model.TestSpec{
		TestType: "verbal", Title: "Verbal", TimeLimitMinutes: 10,
		Sections: []model.Section{{Name: "All", Buckets: []model.Bucket{{Count: 4}}}},
	}, model.TestSpec{
		TestType: "spatial", Title: "Spatial", TimeLimitMinutes: 10,
		Sections: []model.Section{{Name: "All", Buckets: []model.Bucket{{Count: 1}}}},
	})
	require.NoError(t, err)

	clock := func() time.Time { return f.now }
	client := resultsync.NewClient(srv.URL, time.Second)
	thresholds, err := scoring.ParseThresholds("80:excellent,60:good,0:needs improvement")
	require.NoError(t, err)

	f.svc = NewAssessmentService(Dependencies{
		Pools:       pool.NewStore(p),
		Blueprints:  catalog,
		Assembler:   assembler.New(assembler.WithClock(clock)),
		Scorer:      scoring.NewEngine(thresholds, scoring.WithClock(clock)),
		Syncer: resultsync.NewSyncer(client, time.Millisecond,
			resultsync.WithClock(clock), resultsync.WithRetention(30*time.Minute)),
		Sessions:    f.sessions,
		Candidates:  &memCandidates{profiles: map[string]*model.CandidateProfile{}},
		Queue:       f.queue,
		Submissions: f.store,
		Backend:     client,
		GracePeriod: 5 * time.Minute,
		Log:         zerolog.Nop(),
		Now:         clock,
	})
	return f
}

func correctAnswers(t *testing.T, f *fixture, testID string) map[string]int {
	t.Helper()
	test, err := f.sessions.GetTest(context.Background(), testID)
	require.NoError(t, err)
	out := map[string]int{}
	for _, q := range test.Questions {
		out[q.ID] = q.AnswerIndex
	}
	return out
}

// ----------------------------------------------------------------
// Tests
// ----------------------------------------------------------------

func TestListTestTypes_SkipsBlueprintsWithoutPool(t *testing.T) {
	f := newFixture(t)
	got := f.svc.ListTestTypes()
	require.Len(t, got, 1)
	assert.Equal(t, model.TestTypeSummary{TestType: "verbal", Title: "Verbal", TimeLimitMinutes: 10, QuestionCount: 4, PoolSize: 6}, got[0])
}

func TestStartTest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	paper, err := f.svc.StartTest(ctx, "verbal", "42")
	require.NoError(t, err)
	assert.Len(t, paper.Questions, 4)
	assert.Equal(t, f.now.Add(10*time.Minute), paper.Deadline)

	_, err = f.svc.StartTest(ctx, "numerical", "42")
	var notFound *pool.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	_, err = f.svc.StartTest(ctx, "spatial", "42")
	assert.ErrorAs(t, err, &notFound)
}

func TestSubmit_MergesAutosavedAnswers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	paper, err := f.svc.StartTest(ctx, "verbal", "42")
	require.NoError(t, err)
	id := paper.TestID.String()
	correct := correctAnswers(t, f, id)

	q0, q1 := paper.Questions[0].ID, paper.Questions[1].ID
	require.NoError(t, f.svc.SaveAnswer(ctx, id, q0, correct[q0]))
	require.NoError(t, f.svc.SaveAnswer(ctx, id, q1, (correct[q1]+1)%3))

	state, err := f.svc.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Len(t, state.AutosavedAnswers, 2)
	assert.Equal(t, 600.0, state.RemainingSeconds)
	assert.False(t, state.Expired)

	out, err := f.svc.Submit(ctx, id, map[string]int{q1: correct[q1]}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Result.RawScore)
	assert.Equal(t, 4, out.Result.TotalPossible)
	assert.Equal(t, 50, out.Result.Percentage)
	assert.Equal(t, model.SyncStatusSuccess, out.SyncStatus)
	require.NotNil(t, out.ServerAck)
	assert.Equal(t, model.FlexibleID("7"), out.ServerAck.ID)

	require.Len(t, f.queue.recs, 1)
	assert.Equal(t, model.SyncStatusSuccess, f.queue.recs[0].SyncStatus)

	_, err = f.svc.GetSession(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	rec, err := f.svc.GetSubmission(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 50, rec.Result.Percentage)
}

func TestSaveAnswer_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	paper, err := f.svc.StartTest(ctx, "verbal", "42")
	require.NoError(t, err)
	id := paper.TestID.String()

	var invalid *scoring.InvalidTestStateError
	assert.ErrorAs(t, f.svc.SaveAnswer(ctx, id, "nope", 0), &invalid)
	assert.ErrorAs(t, f.svc.SaveAnswer(ctx, id, paper.Questions[0].ID, 3), &invalid)
	assert.ErrorIs(t, f.svc.SaveAnswer(ctx, uuid.NewString(), "v0", 0), ErrSessionNotFound)
	assert.ErrorIs(t, f.svc.SaveAnswer(ctx, "not-a-uuid", "v0", 0), ErrSessionNotFound)
}

func TestSubmit_LateIsAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	paper, err := f.svc.StartTest(ctx, "verbal", "42")
	require.NoError(t, err)

	f.now = f.now.Add(15 * time.Minute)
	state, err := f.svc.GetSession(ctx, paper.TestID.String())
	require.NoError(t, err)
	assert.True(t, state.Expired)
	assert.Equal(t, 0.0, state.RemainingSeconds)

	out, err := f.svc.Submit(ctx, paper.TestID.String(), nil, true)
	require.NoError(t, err)
	assert.True(t, out.Result.AutoSubmitted)
	assert.Equal(t, 0, out.Result.RawScore)
	assert.Equal(t, 900, out.Result.TimeTakenSeconds)
}

func TestSubmit_SyncFailureKeepsResultForRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	paper, err := f.svc.StartTest(ctx, "verbal", "42")
	require.NoError(t, err)
	id := paper.TestID.String()
	atomic.StoreInt32(f.failPosts, 2)

	out, err := f.svc.Submit(ctx, id, correctAnswers(t, f, id), false)
	var syncErr *resultsync.SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, 2, syncErr.Attempts)
	require.NotNil(t, out)
	assert.Equal(t, model.SyncStatusError, out.SyncStatus)
	assert.Equal(t, 100, out.Result.Percentage)
	assert.Equal(t, *out.Result, *syncErr.Payload)
	assert.Equal(t, int32(2), atomic.LoadInt32(f.posts))

	out, err = f.svc.Retry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStatusSuccess, out.SyncStatus)
	assert.Equal(t, int32(3), atomic.LoadInt32(f.posts))

	_, err = f.svc.Retry(ctx, id)
	assert.ErrorIs(t, err, resultsync.ErrAlreadySynced)

	require.Len(t, f.queue.recs, 2)
	assert.Equal(t, model.SyncStatusError, f.queue.recs[0].SyncStatus)
	assert.Equal(t, model.SyncStatusSuccess, f.queue.recs[1].SyncStatus)
}

func TestSubmit_ClientGoneStillDeliversAndPersists(t *testing.T) {
	f := newFixture(t)
	paper, err := f.svc.StartTest(context.Background(), "verbal", "42")
	require.NoError(t, err)
	id := paper.TestID.String()
	answers := correctAnswers(t, f, id)
	atomic.StoreInt32(f.failPosts, 1)

	// The request context is already done once grading starts.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := f.svc.Submit(ctx, id, answers, false)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStatusSuccess, out.SyncStatus)
	assert.Equal(t, int32(2), atomic.LoadInt32(f.posts), "first attempt fails, the retry still runs")

	require.Len(t, f.queue.recs, 1)
	assert.Equal(t, model.SyncStatusSuccess, f.queue.recs[0].SyncStatus)
	_, err = f.sessions.GetTest(context.Background(), id)
	assert.ErrorIs(t, err, repository.ErrCacheMiss)
}

func TestRetry_ClientGoneStillPersists(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	f.store.recs[id] = model.SubmissionRecord{
		Result:     model.SubmissionResult{TestID: id, TestType: "verbal", CandidateID: "42"},
		SyncStatus: model.SyncStatusError,
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := f.svc.Retry(ctx, id.String())
	require.NoError(t, err)
	assert.Equal(t, model.SyncStatusSuccess, out.SyncStatus)
	require.Len(t, f.queue.recs, 1)
}

func TestSubmit_DeliveredRecordsAgeOutToStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	paper, err := f.svc.StartTest(ctx, "verbal", "42")
	require.NoError(t, err)
	id := paper.TestID.String()
	_, err = f.svc.Submit(ctx, id, nil, false)
	require.NoError(t, err)
	require.Len(t, f.queue.recs, 1)
	// What the persistence worker would have written.
	f.store.recs[paper.TestID] = f.queue.recs[0]

	f.now = f.now.Add(31 * time.Minute)
	next, err := f.svc.StartTest(ctx, "verbal", "42")
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, next.TestID.String(), nil, false)
	require.NoError(t, err)

	_, live := f.svc.syncer.Record(paper.TestID)
	assert.False(t, live, "delivered record left memory after retention")
	_, live = f.svc.syncer.Record(next.TestID)
	assert.True(t, live)

	rec, err := f.svc.GetSubmission(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStatusSuccess, rec.SyncStatus)

	posts := atomic.LoadInt32(f.posts)
	_, err = f.svc.Retry(ctx, id)
	assert.ErrorIs(t, err, resultsync.ErrAlreadySynced)
	assert.Equal(t, posts, atomic.LoadInt32(f.posts), "no redelivery of a synced result")
}

func TestRetry_RestoresFromStore(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	f.store.recs[id] = model.SubmissionRecord{
		Result:       model.SubmissionResult{TestID: id, TestType: "verbal", CandidateID: "42"},
		SyncStatus:   model.SyncStatusError,
		SyncAttempts: 2,
	}

	out, err := f.svc.Retry(context.Background(), id.String())
	require.NoError(t, err)
	assert.Equal(t, model.SyncStatusSuccess, out.SyncStatus)

	_, err = f.svc.Retry(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestRestorePending(t *testing.T) {
	f := newFixture(t)
	a, b := uuid.New(), uuid.New()
	f.store.recs[a] = model.SubmissionRecord{Result: model.SubmissionResult{TestID: a}, SyncStatus: model.SyncStatusError}
	f.store.recs[b] = model.SubmissionRecord{Result: model.SubmissionResult{TestID: b}, SyncStatus: model.SyncStatusSuccess}

	n, err := f.svc.RestorePending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGetSubmission_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetSubmission(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrSubmissionNotFound)
	_, err = f.svc.GetSubmission(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestGetCandidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.GetCandidate(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)

	cached, err := f.svc.candidates.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, p, cached)

	_, err = f.svc.GetCandidate(ctx, "404")
	assert.ErrorIs(t, err, ErrCandidateNotFound)
}

func TestListBackendResults(t *testing.T) {
	f := newFixture(t)
	got, err := f.svc.ListBackendResults(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "verbal", got[0].TestType)
}
