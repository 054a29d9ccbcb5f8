package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skillcheck/assessment-backend/internal/model"
	"github.com/skillcheck/assessment-backend/internal/response"
	"github.com/skillcheck/assessment-backend/internal/validator"
)

// SubmissionHandler exposes submission history and manual sync retry.
type SubmissionHandler struct {
	svc AssessmentService
}

// NewSubmissionHandler creates a new SubmissionHandler.
func NewSubmissionHandler(svc AssessmentService) *SubmissionHandler {
	return &SubmissionHandler{svc: svc}
}

type pageQuery struct {
	Page    int `form:"page" binding:"omitempty,min=1"`
	PerPage int `form:"per_page" binding:"omitempty,min=1,max=100"`
}

func (q *pageQuery) defaults() {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PerPage == 0 {
		q.PerPage = 20
	}
}

// GetSubmission godoc
// GET /api/v1/submissions/:test_id
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	rec, err := h.svc.GetSubmission(c.Request.Context(), c.Param("test_id"))
	if err != nil {
		fail(c, err, nil)
		return
	}
	response.Success(c, http.StatusOK, rec)
}

// Retry godoc
// POST /api/v1/submissions/:test_id/retry
func (h *SubmissionHandler) Retry(c *gin.Context) {
	out, err := h.svc.Retry(c.Request.Context(), c.Param("test_id"))
	if err != nil {
		fail(c, err, outcomeOrNil(out))
		return
	}
	response.Success(c, http.StatusOK, out)
}

// ListByCandidate godoc
// GET /api/v1/candidates/:id/submissions?page=&per_page=
func (h *SubmissionHandler) ListByCandidate(c *gin.Context) {
	var q pageQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	q.defaults()

	id := c.Param("id")
	if !validator.IsIdentifier(id) {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	recs, total, err := h.svc.ListCandidateSubmissions(c.Request.Context(), id, q.Page, q.PerPage)
	if err != nil {
		fail(c, err, nil)
		return
	}
	if recs == nil {
		recs = []model.SubmissionRecord{}
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"submissions": recs}, response.NewPagination(q.Page, q.PerPage, total))
}
