package model

import (
	"time"

	"github.com/google/uuid"
)

// AssembledSection records which drawn questions came from a section.
type AssembledSection struct {
	Name         string   `json:"name"`
	Instructions string   `json:"instructions,omitempty"`
	QuestionIDs  []string `json:"question_ids"`
}

// AssembledTest is one randomized instance of a test, held for a single session.
type AssembledTest struct {
	ID               uuid.UUID          `json:"id"`
	TestType         string             `json:"test_type"`
	Title            string             `json:"title"`
	Instructions     string             `json:"instructions,omitempty"`
	TimeLimitSeconds int                `json:"time_limit_seconds"`
	CandidateID      string             `json:"candidate_id"`
	Sections         []AssembledSection `json:"sections"`
	Questions        []Question         `json:"questions"`
	Thresholds       []Threshold        `json:"thresholds,omitempty"`
	StartedAt        time.Time          `json:"started_at"`
}

func (t *AssembledTest) TimeLimit() time.Duration {
	return time.Duration(t.TimeLimitSeconds) * time.Second
}

// Deadline is advisory: expiry triggers auto-submission, not rejection.
func (t *AssembledTest) Deadline() time.Time {
	return t.StartedAt.Add(t.TimeLimit())
}

// QuestionIDs returns ids in presentation order.
func (t *AssembledTest) QuestionIDs() []string {
	ids := make([]string, len(t.Questions))
	for i, q := range t.Questions {
		ids[i] = q.ID
	}
	return ids
}

// TestPaper is the candidate-facing view of an assembled test (no answer key).
type TestPaper struct {
	TestID           uuid.UUID              `json:"test_id"`
	TestType         string                 `json:"test_type"`
	Title            string                 `json:"title"`
	Instructions     string                 `json:"instructions,omitempty"`
	TimeLimitSeconds int                    `json:"time_limit_seconds"`
	Sections         []AssembledSection     `json:"sections"`
	Questions        []QuestionForCandidate `json:"questions"`
	StartedAt        time.Time              `json:"started_at"`
	Deadline         time.Time              `json:"deadline"`
}

func (t *AssembledTest) Paper() *TestPaper {
	qs := make([]QuestionForCandidate, len(t.Questions))
	for i, q := range t.Questions {
		qs[i] = q.ForCandidate()
	}
	return &TestPaper{
		TestID:           t.ID,
		TestType:         t.TestType,
		Title:            t.Title,
		Instructions:     t.Instructions,
		TimeLimitSeconds: t.TimeLimitSeconds,
		Sections:         t.Sections,
		Questions:        qs,
		StartedAt:        t.StartedAt,
		Deadline:         t.Deadline(),
	}
}

// SessionState is returned on page reload so the client can resume.
type SessionState struct {
	Paper            *TestPaper     `json:"paper"`
	AutosavedAnswers map[string]int `json:"autosaved_answers"`
	RemainingSeconds float64        `json:"remaining_seconds"`
	Expired          bool           `json:"expired"`
}

// StartTestRequest is the payload for starting a new test instance.
type StartTestRequest struct {
	CandidateID string `json:"candidate_id" binding:"required,min=1,max=64,identifier"`
}

// SaveAnswerRequest autosaves a single answer.
type SaveAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required,max=128,identifier"`
	Choice     *int   `json:"choice" binding:"required,min=0"`
}

// SubmitTestRequest carries the final answers; autosaved answers fill the gaps.
type SubmitTestRequest struct {
	Answers map[string]int `json:"answers" binding:"omitempty,dive,min=0"`
}
