package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skillcheck/assessment-backend/internal/model"
	"github.com/skillcheck/assessment-backend/internal/response"
	"github.com/skillcheck/assessment-backend/internal/validator"
)

// CandidateHandler proxies candidate and result reads from the backend.
type CandidateHandler struct {
	svc AssessmentService
}

// NewCandidateHandler creates a new CandidateHandler.
func NewCandidateHandler(svc AssessmentService) *CandidateHandler {
	return &CandidateHandler{svc: svc}
}

// GetCandidate godoc
// GET /api/v1/candidates/:id
func (h *CandidateHandler) GetCandidate(c *gin.Context) {
	id := c.Param("id")
	if !validator.IsIdentifier(id) {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	profile, err := h.svc.GetCandidate(c.Request.Context(), id)
	if err != nil {
		fail(c, err, nil)
		return
	}
	response.Success(c, http.StatusOK, profile)
}

// ListResults godoc
// GET /api/v1/results
func (h *CandidateHandler) ListResults(c *gin.Context) {
	results, err := h.svc.ListBackendResults(c.Request.Context())
	if err != nil {
		fail(c, err, nil)
		return
	}
	if results == nil {
		results = []model.ResultRecord{}
	}
	response.Success(c, http.StatusOK, gin.H{"results": results})
}
