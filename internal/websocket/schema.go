package websocket

import "github.com/skillcheck/assessment-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestPayload covers every client action; unused fields stay empty.
type RequestPayload struct {
	Action     Action         `json:"action"`
	QuestionID string         `json:"question_id,omitempty"`
	Choice     *int           `json:"choice,omitempty"`
	Answers    map[string]int `json:"answers,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventSuccess Event = "success"
	EventGraded  Event = "graded"
	EventExpired Event = "expired"
	EventPong    Event = "pong"
)

type AutosaveResponse struct {
	Event      Event  `json:"event"`
	Status     string `json:"status"`
	QuestionID string `json:"question_id"`
}

// GradedResponse carries the outcome. Code is set when grading succeeded
// but delivery to the backend did not.
type GradedResponse struct {
	Event   Event                `json:"event"`
	Outcome *model.SubmitOutcome `json:"outcome"`
	Code    string               `json:"code,omitempty"`
}

type ExpiredResponse struct {
	Event    Event  `json:"event"`
	Deadline string `json:"deadline"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
