package scoring

import (
	"fmt"

	"github.com/google/uuid"
)

// InvalidTestStateError means the answers cannot be graded against the test.
type InvalidTestStateError struct {
	TestID     uuid.UUID
	QuestionID string
	Reason     string
}

func (e *InvalidTestStateError) Error() string {
	if e.QuestionID != "" {
		return fmt.Sprintf("invalid test state for %s: question %s: %s", e.TestID, e.QuestionID, e.Reason)
	}
	return fmt.Sprintf("invalid test state for %s: %s", e.TestID, e.Reason)
}
