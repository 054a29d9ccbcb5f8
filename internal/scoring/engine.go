// Package scoring grades submitted answers against an assembled test.
package scoring

import (
	"time"

	"github.com/skillcheck/assessment-backend/internal/model"
)

// Engine grades assembled tests against a classification table.
type Engine struct {
	thresholds []model.Threshold
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source for SubmittedAt and time taken.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a new Engine. It uses defaults when an assembled test carries no thresholds of its own.
func NewEngine(defaults []model.Threshold, opts ...Option) *Engine {
	e := &Engine{
		thresholds: append([]model.Threshold(nil), defaults...),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score grades answers (question id -> choice index). Unanswered questions
// count as incorrect. auto marks a submission triggered by the deadline.
func (e *Engine) Score(test *model.AssembledTest, answers map[string]int, auto bool) (*model.SubmissionResult, error) {
	if test == nil || len(test.Questions) == 0 {
		st := &InvalidTestStateError{Reason: "test has no questions"}
		if test != nil {
			st.TestID = test.ID
		}
		return nil, st
	}

	index := make(map[string]int, len(test.Questions))
	for i, q := range test.Questions {
		index[q.ID] = i
	}
	for qid, choice := range answers {
		i, ok := index[qid]
		if !ok {
			return nil, &InvalidTestStateError{TestID: test.ID, QuestionID: qid, Reason: "question is not part of this test"}
		}
		if choice < 0 || choice >= len(test.Questions[i].Choices) {
			return nil, &InvalidTestStateError{TestID: test.ID, QuestionID: qid, Reason: "choice index out of range"}
		}
	}

	byType := make(map[string]model.CategoryScore)
	byDifficulty := make(map[string]model.CategoryScore)
	outcomes := make([]model.AnswerOutcome, 0, len(test.Questions))
	raw := 0
	for _, q := range test.Questions {
		out := model.AnswerOutcome{QuestionID: q.ID, CorrectIndex: q.AnswerIndex}
		if choice, ok := answers[q.ID]; ok {
			c := choice
			out.Selected = &c
			out.Correct = q.IsCorrect(choice)
		}
		if out.Correct {
			raw++
		}
		outcomes = append(outcomes, out)
		tally(byType, string(q.Type), out.Correct)
		tally(byDifficulty, string(q.Difficulty), out.Correct)
	}
	finalize(byType)
	finalize(byDifficulty)

	total := len(test.Questions)
	pct := Percentage(raw, total)

	thresholds := e.thresholds
	if len(test.Thresholds) > 0 {
		thresholds = test.Thresholds
	}

	now := e.now().UTC()
	taken := int(now.Sub(test.StartedAt) / time.Second)
	if taken < 0 {
		taken = 0
	}

	return &model.SubmissionResult{
		TestID:           test.ID,
		TestType:         test.TestType,
		CandidateID:      test.CandidateID,
		Answers:          outcomes,
		RawScore:         raw,
		TotalPossible:    total,
		Percentage:       pct,
		Classification:   Classify(pct, thresholds),
		ByType:           byType,
		ByDifficulty:     byDifficulty,
		TimeTakenSeconds: taken,
		AutoSubmitted:    auto,
		SubmittedAt:      now,
	}, nil
}

// Percentage is round_half_up(100*raw/total) in integer arithmetic.
func Percentage(raw, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*raw + total) / (2 * total)
}

func tally(m map[string]model.CategoryScore, key string, correct bool) {
	s := m[key]
	s.Total++
	if correct {
		s.Correct++
	}
	m[key] = s
}

func finalize(m map[string]model.CategoryScore) {
	for k, s := range m {
		s.Percentage = Percentage(s.Correct, s.Total)
		m[k] = s
	}
}
