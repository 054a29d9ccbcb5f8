package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/skillcheck/assessment-backend/internal/response"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueueDepth reports how many submissions wait for persistence.
type QueueDepth func(ctx context.Context) (int64, error)

// SystemHandler reports liveness and dependency health.
type SystemHandler struct {
	db        Pinger
	redis     Pinger
	queue     QueueDepth
	pools     []string
	startTime time.Time
	log       zerolog.Logger
}

func NewSystemHandler(db, redis Pinger, queue QueueDepth, pools []string, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		db:        db,
		redis:     redis,
		queue:     queue,
		pools:     pools,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type healthReport struct {
	Status     string            `json:"status"`
	Uptime     string            `json:"uptime"`
	Pools      []string          `json:"pools"`
	QueueDepth int64             `json:"queue_depth"`
	Checks     map[string]string `json:"checks"`
}

// Health godoc
// GET /health
// Answers 503 when PostgreSQL or Redis is unreachable.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	report := healthReport{
		Status: "ok",
		Uptime: time.Since(h.startTime).Round(time.Second).String(),
		Pools:  h.pools,
		Checks: map[string]string{},
	}

	for name, p := range map[string]Pinger{"postgres": h.db, "redis": h.redis} {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			h.log.Warn().Err(err).Str("dependency", name).Msg("Health check failed")
			report.Checks[name] = "down"
			report.Status = "degraded"
			continue
		}
		report.Checks[name] = "up"
	}

	if h.queue != nil {
		if n, err := h.queue(ctx); err == nil {
			report.QueueDepth = n
		}
	}

	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	response.Success(c, status, report)
}
