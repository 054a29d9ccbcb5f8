package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/skillcheck/assessment-backend/internal/resultsync"
	"github.com/skillcheck/assessment-backend/internal/response"
	ws "github.com/skillcheck/assessment-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a test session: autosave, submit and server-side expiry.
type WSHandler struct {
	svc      AssessmentService
	log      zerolog.Logger
	upgrader websocket.Upgrader
	// submitTimeout bounds grading plus sync, retry delay included.
	submitTimeout time.Duration
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(svc AssessmentService, log zerolog.Logger, allowedOrigins []string, submitTimeout time.Duration) *WSHandler {
	return &WSHandler{
		svc:           svc,
		log:           log.With().Str("component", "ws_handler").Logger(),
		upgrader:      buildUpgrader(allowedOrigins),
		submitTimeout: submitTimeout,
	}
}

// wsSession guarantees a test is submitted once, by the client or the timer.
type wsSession struct {
	mu        sync.Mutex
	done      bool
	submitted chan struct{}
}

// SessionStream godoc
// WS /ws/v1/sessions/:test_id/stream
// Autosaves answers as they are picked and auto-submits at the deadline.
func (h *WSHandler) SessionStream(c *gin.Context) {
	testID := c.Param("test_id")
	deadline, err := h.svc.Deadline(c.Request.Context(), testID)
	if err != nil {
		fail(c, err, nil)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(raw)
	defer conn.Close()

	wsLog := h.log.With().Str("test_id", testID).Logger()
	wsLog.Info().Time("deadline", deadline).Msg("Candidate connected")

	sess := &wsSession{submitted: make(chan struct{})}
	closed := make(chan struct{})
	defer close(closed)
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	go func() {
		select {
		case <-timer.C:
			_ = ws.WriteTyped(conn, ws.ExpiredResponse{Event: ws.EventExpired, Deadline: deadline.UTC().Format(time.RFC3339)})
			h.submit(conn, wsLog, sess, testID, nil, true)
		case <-sess.submitted:
		case <-closed:
		}
	}()

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionAutosave:
			h.handleAutosave(c.Request.Context(), conn, wsLog, testID, &msg)
		case ws.ActionSubmit:
			h.submit(conn, wsLog, sess, testID, msg.Answers, false)
		case ws.ActionPing:
			_ = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			_ = ws.WriteError(conn, string(response.ErrUnknownAction), "unknown action: "+string(msg.Action))
		}
	}
}

func (h *WSHandler) handleAutosave(ctx context.Context, conn *ws.Conn, wsLog zerolog.Logger, testID string, msg *ws.RequestPayload) {
	if msg.QuestionID == "" || msg.Choice == nil {
		_ = ws.WriteError(conn, string(response.ErrValidation), "question_id and choice are required")
		return
	}

	if err := h.svc.SaveAnswer(ctx, testID, msg.QuestionID, *msg.Choice); err != nil {
		_, code := classify(err)
		if code == response.ErrInternal {
			wsLog.Error().Err(err).Msg("Autosave failed")
		}
		_ = ws.WriteError(conn, string(code), response.GetMessage(code))
		return
	}

	_ = ws.WriteTyped(conn, ws.AutosaveResponse{Event: ws.EventSuccess, Status: "saved", QuestionID: msg.QuestionID})
}

// submit grades once per connection and then closes it. A failed attempt
// that produced no result leaves the session open for another try.
func (h *WSHandler) submit(conn *ws.Conn, wsLog zerolog.Logger, sess *wsSession, testID string, answers map[string]int, auto bool) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.done {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.submitTimeout)
	defer cancel()

	out, err := h.svc.Submit(ctx, testID, answers, auto)
	resp := ws.GradedResponse{Event: ws.EventGraded, Outcome: out}
	var syncErr *resultsync.SyncError
	switch {
	case err == nil:
	case errors.As(err, &syncErr) && out != nil:
		resp.Code = string(response.ErrSyncFailed)
	default:
		_, code := classify(err)
		if code == response.ErrInternal {
			wsLog.Error().Err(err).Msg("Submit failed")
		}
		_ = ws.WriteError(conn, string(code), response.GetMessage(code))
		return
	}

	sess.done = true
	close(sess.submitted)
	_ = ws.WriteTyped(conn, resp)

	wsLog.Info().
		Bool("auto", auto).
		Int("percentage", out.Result.Percentage).
		Str("sync_status", string(out.SyncStatus)).
		Msg("Test submitted over stream")
	ws.Close(conn, "submitted")
}
