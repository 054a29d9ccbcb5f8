package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skillcheck/assessment-backend/internal/assembler"
	"github.com/skillcheck/assessment-backend/internal/pool"
	"github.com/skillcheck/assessment-backend/internal/response"
	"github.com/skillcheck/assessment-backend/internal/resultsync"
	"github.com/skillcheck/assessment-backend/internal/scoring"
	"github.com/skillcheck/assessment-backend/internal/service"
)

// classify maps a service error to its HTTP status and API code.
func classify(err error) (int, response.ErrCode) {
	var (
		notFound     *pool.NotFoundError
		insufficient *assembler.InsufficientQuestionsError
		invalid      *scoring.InvalidTestStateError
		syncErr      *resultsync.SyncError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound, response.ErrTestTypeNotFound
	case errors.As(err, &insufficient):
		return http.StatusUnprocessableEntity, response.ErrInsufficientQuestions
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, response.ErrInvalidTestState
	case errors.As(err, &syncErr):
		return http.StatusBadGateway, response.ErrSyncFailed
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, service.ErrSubmissionNotFound):
		return http.StatusNotFound, response.ErrSubmissionNotFound
	case errors.Is(err, service.ErrCandidateNotFound):
		return http.StatusNotFound, response.ErrCandidateNotFound
	case errors.Is(err, resultsync.ErrAlreadySynced):
		return http.StatusConflict, response.ErrAlreadySynced
	case errors.Is(err, resultsync.ErrSyncInFlight):
		return http.StatusConflict, response.ErrSyncInProgress
	case errors.Is(err, service.ErrBackendUnavailable):
		return http.StatusBadGateway, response.ErrBackendUnavailable
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// fail writes err as an API error. Sync failures still carry the graded
// outcome so the client can show the score and offer a retry.
func fail(c *gin.Context, err error, data interface{}) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	if data != nil {
		response.FailWithData(c, status, code, data)
		return
	}
	response.Fail(c, status, code)
}
