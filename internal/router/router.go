package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/skillcheck/assessment-backend/internal/config"
	"github.com/skillcheck/assessment-backend/internal/handler"
	"github.com/skillcheck/assessment-backend/internal/middleware"
	"github.com/skillcheck/assessment-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Assessment *handler.AssessmentHandler
	Submission *handler.SubmissionHandler
	Candidate  *handler.CandidateHandler
	WS         *handler.WSHandler
	System     *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background work owned by middlewares.
func SetupRouter(ctx context.Context, handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)

	startLimiter := middleware.NewRateLimiter(ctx, cfg.StartRateLimit, time.Minute)

	// ─── 1. Tests ──────────────────────────────────────────────────────
	tests := router.Group("/api/v1/tests")
	{
		tests.GET("", middleware.CacheControl(300), handlers.Assessment.ListTests)
		tests.POST("/:test_type/start", startLimiter.Middleware(), handlers.Assessment.StartTest)
	}

	// ─── 2. Sessions ───────────────────────────────────────────────────
	sessions := router.Group("/api/v1/sessions")
	sessions.Use(middleware.NoStore())
	{
		sessions.GET("/:test_id", handlers.Assessment.GetSession)
		sessions.PUT("/:test_id/answers", handlers.Assessment.SaveAnswer)
		sessions.POST("/:test_id/submit", handlers.Assessment.Submit)
	}

	// ─── 3. Submissions & Candidates ───────────────────────────────────
	api := router.Group("/api/v1")
	api.Use(middleware.NoStore())
	{
		api.GET("/submissions/:test_id", handlers.Submission.GetSubmission)
		api.POST("/submissions/:test_id/retry", handlers.Submission.Retry)
		api.GET("/candidates/:id", handlers.Candidate.GetCandidate)
		api.GET("/candidates/:id/submissions", handlers.Submission.ListByCandidate)
		api.GET("/results", handlers.Candidate.ListResults)
	}

	// ─── 4. WebSocket ──────────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/sessions/:test_id/stream", handlers.WS.SessionStream)
	}

	return router
}
