package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound           ErrCode = "NOT_FOUND"
	ErrTestTypeNotFound   ErrCode = "TEST_TYPE_NOT_FOUND"
	ErrSessionNotFound    ErrCode = "SESSION_NOT_FOUND"
	ErrSubmissionNotFound ErrCode = "SUBMISSION_NOT_FOUND"
	ErrCandidateNotFound  ErrCode = "CANDIDATE_NOT_FOUND"
	ErrUnknownAction      ErrCode = "UNKNOWN_ACTION"

	// ─── Assessment ────────────────────────────────────────────────────
	ErrInsufficientQuestions ErrCode = "INSUFFICIENT_QUESTIONS"
	ErrInvalidTestState      ErrCode = "INVALID_TEST_STATE"
	ErrAlreadySynced         ErrCode = "ALREADY_SYNCED"
	ErrSyncInProgress        ErrCode = "SYNC_IN_PROGRESS"

	// ─── Upstream ──────────────────────────────────────────────────────
	ErrSyncFailed         ErrCode = "SYNC_FAILED"
	ErrBackendUnavailable ErrCode = "BACKEND_UNAVAILABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrTestTypeNotFound:
		return "No test is available for this test type."
	case ErrSessionNotFound:
		return "Test session not found or already finished."
	case ErrSubmissionNotFound:
		return "Submission not found."
	case ErrCandidateNotFound:
		return "Candidate not found."
	case ErrUnknownAction:
		return "Unknown action."

	// ─── Assessment ────────────────────────────────────────────────────
	case ErrInsufficientQuestions:
		return "The question pool cannot satisfy this test's distribution."
	case ErrInvalidTestState:
		return "The answers do not match this test."
	case ErrAlreadySynced:
		return "This result has already been delivered."
	case ErrSyncInProgress:
		return "This result is being delivered. Try again shortly."

	// ─── Upstream ──────────────────────────────────────────────────────
	case ErrSyncFailed:
		return "Your result was graded but could not be delivered. It has been kept and can be retried."
	case ErrBackendUnavailable:
		return "The results service is unavailable. Please try again later."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
