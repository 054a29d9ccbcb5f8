package resultsync

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/skillcheck/assessment-backend/internal/model"
)

var (
	ErrAlreadySynced = errors.New("submission already synced")
	ErrUnknownTest   = errors.New("no sync state for test")
	ErrSyncInFlight  = errors.New("sync already in progress")
)

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// SyncError is returned once every attempt to deliver a result failed.
// Payload is the exact result that was sent so it can be retried.
type SyncError struct {
	TestID     uuid.UUID
	Attempts   int
	StatusCode int
	Payload    *model.SubmissionResult
	Err        error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s failed after %d attempt(s): %v", e.TestID, e.Attempts, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
