package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/skillcheck/assessment-backend/internal/model"
	"github.com/skillcheck/assessment-backend/internal/response"
	"github.com/skillcheck/assessment-backend/internal/validator"
)

// AssessmentService is what the HTTP and WebSocket handlers need from the
// service layer.
type AssessmentService interface {
	ListTestTypes() []model.TestTypeSummary
	StartTest(ctx context.Context, testType, candidateID string) (*model.TestPaper, error)
	GetSession(ctx context.Context, testID string) (*model.SessionState, error)
	Deadline(ctx context.Context, testID string) (time.Time, error)
	SaveAnswer(ctx context.Context, testID, questionID string, choice int) error
	Submit(ctx context.Context, testID string, answers map[string]int, auto bool) (*model.SubmitOutcome, error)
	Retry(ctx context.Context, testID string) (*model.SubmitOutcome, error)
	GetSubmission(ctx context.Context, testID string) (*model.SubmissionRecord, error)
	ListCandidateSubmissions(ctx context.Context, candidateID string, page, perPage int) ([]model.SubmissionRecord, int64, error)
	ListBackendResults(ctx context.Context) ([]model.ResultRecord, error)
	GetCandidate(ctx context.Context, id string) (*model.CandidateProfile, error)
}

// AssessmentHandler handles test catalog and session endpoints.
type AssessmentHandler struct {
	svc AssessmentService
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(svc AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{svc: svc}
}

// ListTests godoc
// GET /api/v1/tests
func (h *AssessmentHandler) ListTests(c *gin.Context) {
	tests := h.svc.ListTestTypes()
	if tests == nil {
		tests = []model.TestTypeSummary{}
	}
	response.Success(c, http.StatusOK, gin.H{"tests": tests})
}

// StartTest godoc
// POST /api/v1/tests/:test_type/start
// Assembles a fresh randomized instance for the candidate.
func (h *AssessmentHandler) StartTest(c *gin.Context) {
	var req model.StartTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	paper, err := h.svc.StartTest(c.Request.Context(), c.Param("test_type"), req.CandidateID)
	if err != nil {
		fail(c, err, nil)
		return
	}
	response.Success(c, http.StatusCreated, paper)
}

// GetSession godoc
// GET /api/v1/sessions/:test_id
// Returns the paper, autosaved answers and remaining time for a reload.
func (h *AssessmentHandler) GetSession(c *gin.Context) {
	state, err := h.svc.GetSession(c.Request.Context(), c.Param("test_id"))
	if err != nil {
		fail(c, err, nil)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// SaveAnswer godoc
// PUT /api/v1/sessions/:test_id/answers
func (h *AssessmentHandler) SaveAnswer(c *gin.Context) {
	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.svc.SaveAnswer(c.Request.Context(), c.Param("test_id"), req.QuestionID, *req.Choice); err != nil {
		fail(c, err, nil)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "saved", "question_id": req.QuestionID})
}

// Submit godoc
// POST /api/v1/sessions/:test_id/submit
// Grades the test and delivers the result. Delivery failures answer 502
// with the graded outcome in data.
func (h *AssessmentHandler) Submit(c *gin.Context) {
	var req model.SubmitTestRequest
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	out, err := h.svc.Submit(c.Request.Context(), c.Param("test_id"), req.Answers, false)
	if err != nil {
		fail(c, err, outcomeOrNil(out))
		return
	}
	response.Success(c, http.StatusOK, out)
}

func outcomeOrNil(out *model.SubmitOutcome) interface{} {
	if out == nil {
		return nil
	}
	return out
}
