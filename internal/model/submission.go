package model

import (
	"time"

	"github.com/google/uuid"
)

// AnswerOutcome is the per-question grading detail of a submission.
type AnswerOutcome struct {
	QuestionID   string `json:"question_id"`
	Selected     *int   `json:"selected"`
	CorrectIndex int    `json:"correct_index"`
	Correct      bool   `json:"correct"`
}

// CategoryScore aggregates outcomes for one question type or difficulty.
type CategoryScore struct {
	Correct    int `json:"correct"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// SubmissionResult is created once at submit time and is read-only afterwards.
type SubmissionResult struct {
	TestID           uuid.UUID                `json:"test_id"`
	TestType         string                   `json:"test_type"`
	CandidateID      string                   `json:"candidate_id"`
	Answers          []AnswerOutcome          `json:"answers"`
	RawScore         int                      `json:"raw_score"`
	TotalPossible    int                      `json:"total_possible"`
	Percentage       int                      `json:"percentage"`
	Classification   string                   `json:"classification"`
	ByType           map[string]CategoryScore `json:"by_type"`
	ByDifficulty     map[string]CategoryScore `json:"by_difficulty"`
	TimeTakenSeconds int                      `json:"time_taken_seconds"`
	AutoSubmitted    bool                     `json:"auto_submitted"`
	SubmittedAt      time.Time                `json:"submitted_at"`
}

// SyncStatus is the lifecycle of one submission's delivery to the backend.
type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusError   SyncStatus = "error"
)

// ServerAck is what the backend returns after accepting a result.
type ServerAck struct {
	ID         FlexibleID `json:"id"`
	Status     string     `json:"status,omitempty"`
	ReceivedAt *time.Time `json:"received_at,omitempty"`
}

// SubmissionRecord is the local history entry for a submission.
type SubmissionRecord struct {
	Result       SubmissionResult `json:"result"`
	SyncStatus   SyncStatus       `json:"sync_status"`
	SyncAttempts int              `json:"sync_attempts"`
	ServerAck    *ServerAck       `json:"server_ack,omitempty"`
	LastError    string           `json:"last_error,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// SubmitOutcome is returned to the client after a submit or retry.
type SubmitOutcome struct {
	Result     *SubmissionResult `json:"result"`
	SyncStatus SyncStatus        `json:"sync_status"`
	ServerAck  *ServerAck        `json:"server_ack,omitempty"`
}
