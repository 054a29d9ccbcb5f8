package assembler

import (
	"fmt"

	"github.com/skillcheck/assessment-backend/internal/model"
)

// InsufficientQuestionsError is returned when a bucket asks for more
// questions than the pool can supply.
type InsufficientQuestionsError struct {
	TestType  string
	Bucket    model.Bucket
	Requested int
	Available int
}

func (e *InsufficientQuestionsError) Error() string {
	return fmt.Sprintf("test %s: bucket %s requested %d questions, only %d available",
		e.TestType, e.Bucket, e.Requested, e.Available)
}
