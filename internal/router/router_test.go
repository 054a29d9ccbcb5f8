package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/skillcheck/assessment-backend/internal/config"
	"github.com/skillcheck/assessment-backend/internal/handler"
	"github.com/skillcheck/assessment-backend/internal/model"
	"github.com/skillcheck/assessment-backend/internal/service"
	"github.com/skillcheck/assessment-backend/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// catalogService implements only what these routes reach; other calls panic.
type catalogService struct {
	handler.AssessmentService
}

func (catalogService) ListTestTypes() []model.TestTypeSummary {
	return []model.TestTypeSummary{{TestType: "verbal", QuestionCount: 10}}
}

func (catalogService) StartTest(_ context.Context, testType, _ string) (*model.TestPaper, error) {
	return &model.TestPaper{TestID: uuid.New(), TestType: testType}, nil
}

func (catalogService) GetSession(context.Context, string) (*model.SessionState, error) {
	return nil, service.ErrSessionNotFound
}

func newTestRouter(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()
	validator.Setup()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	svc := catalogService{}
	return SetupRouter(ctx, &Handlers{
		Assessment: handler.NewAssessmentHandler(svc),
		Submission: handler.NewSubmissionHandler(svc),
		Candidate:  handler.NewCandidateHandler(svc),
		WS:         handler.NewWSHandler(svc, zerolog.Nop(), cfg.AllowedOrigins, time.Second),
		System:     handler.NewSystemHandler(nil, nil, nil, []string{"verbal"}, zerolog.Nop()),
	}, cfg)
}

func testConfig() *config.Config {
	return &config.Config{GinMode: gin.TestMode, StartRateLimit: 2}
}

func serve(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_CatalogIsCacheable(t *testing.T) {
	r := newTestRouter(t, testConfig())

	w := serve(r, http.MethodGet, "/api/v1/tests", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=300", w.Header().Get("Cache-Control"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Contains(t, w.Body.String(), `"test_type":"verbal"`)
}

func TestRouter_SessionsAreNotStored(t *testing.T) {
	r := newTestRouter(t, testConfig())

	w := serve(r, http.MethodGet, "/api/v1/sessions/abc", "", map[string]string{"X-Request-ID": "req-1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
	assert.Contains(t, w.Body.String(), `"request_id":"req-1"`)
}

func TestRouter_StartIsRateLimited(t *testing.T) {
	r := newTestRouter(t, testConfig())
	body := `{"candidate_id": "42"}`

	for i := 0; i < 2; i++ {
		w := serve(r, http.MethodPost, "/api/v1/tests/verbal/start", body, nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	w := serve(r, http.MethodPost, "/api/v1/tests/verbal/start", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")
}

func TestRouter_CORS(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	r := newTestRouter(t, cfg)

	w := serve(r, http.MethodOptions, "/api/v1/tests", "", map[string]string{
		"Origin":                        "https://app.example.com",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.MethodGet, "/api/v1/tests", "", map[string]string{"Origin": "https://evil.example.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_Health(t *testing.T) {
	r := newTestRouter(t, testConfig())

	w := serve(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), `"pools":["verbal"]`)
}
