package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/skillcheck/assessment-backend/internal/assembler"
	"github.com/skillcheck/assessment-backend/internal/blueprint"
	"github.com/skillcheck/assessment-backend/internal/config"
	"github.com/skillcheck/assessment-backend/internal/database"
	"github.com/skillcheck/assessment-backend/internal/handler"
	"github.com/skillcheck/assessment-backend/internal/logger"
	"github.com/skillcheck/assessment-backend/internal/pool"
	"github.com/skillcheck/assessment-backend/internal/repository"
	"github.com/skillcheck/assessment-backend/internal/resultsync"
	"github.com/skillcheck/assessment-backend/internal/router"
	"github.com/skillcheck/assessment-backend/internal/scoring"
	"github.com/skillcheck/assessment-backend/internal/service"
	"github.com/skillcheck/assessment-backend/internal/validator"
	"github.com/skillcheck/assessment-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting assessment backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Load Question Pools & Blueprints ──────────────────────────────
	pools, err := pool.LoadDir(cfg.PoolDir, log)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.PoolDir).Msg("Failed to load question pools")
	}
	blueprints, err := blueprint.LoadDir(cfg.BlueprintDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.BlueprintDir).Msg("Failed to load test blueprints")
	}
	for _, tt := range blueprints.TestTypes() {
		if _, err := pools.GetPool(tt); err != nil {
			log.Warn().Str("test_type", tt).Msg("Blueprint has no question pool; test type disabled")
		}
	}

	thresholds, err := scoring.ParseThresholds(cfg.Thresholds)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid CLASSIFICATION_THRESHOLDS")
	}

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pgPool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pgPool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	sessionRepo := repository.NewSessionRepository(rdb)
	candidateCache := repository.NewCandidateCache(rdb, cfg.CandidateCacheTTL)
	submissionQueue := repository.NewSubmissionQueue(rdb)
	submissionRepo := repository.NewSubmissionRepository(pgPool)

	// ─── Initialize Services ──────────────────────────────────────────
	backend := resultsync.NewClient(cfg.BackendBaseURL, cfg.BackendTimeout)
	syncer := resultsync.NewSyncer(backend, cfg.SyncRetryDelay, resultsync.WithRetention(cfg.SyncRetention))

	// Two delivery attempts plus the pause between them.
	submitTimeout := 2*cfg.BackendTimeout + cfg.SyncRetryDelay + 5*time.Second

	assessmentService := service.NewAssessmentService(service.Dependencies{
		Pools:       pools,
		Blueprints:  blueprints,
		Assembler:   assembler.New(),
		Scorer:      scoring.NewEngine(thresholds),
		Syncer:      syncer,
		Sessions:    sessionRepo,
		Candidates:  candidateCache,
		Queue:       submissionQueue,
		Submissions: submissionRepo,
		Backend:     backend,
		GracePeriod: cfg.TestGracePeriod,
		SyncTimeout: submitTimeout,
		Log:         log,
	})

	// ─── Restore Unsynced Submissions ─────────────────────────────────
	if n, err := assessmentService.RestorePending(ctx); err != nil {
		log.Warn().Err(err).Msg("Restoring pending submissions failed")
	} else if n > 0 {
		log.Info().Int("count", n).Msg("Restored unsynced submissions")
	}

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Assessment: handler.NewAssessmentHandler(assessmentService),
		Submission: handler.NewSubmissionHandler(assessmentService),
		Candidate:  handler.NewCandidateHandler(assessmentService),
		WS:         handler.NewWSHandler(assessmentService, log, cfg.AllowedOrigins, submitTimeout),
		System: handler.NewSystemHandler(
			pgPool,
			database.RedisPinger{Client: rdb},
			database.QueueLength(rdb, config.WorkerKey.PersistSubmissionsQueue),
			pools.TestTypes(),
			log,
		),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	submissionWorker := worker.NewSubmissionWorker(submissionRepo, rdb, log)
	go submissionWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests. In-flight submits may still be syncing.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), submitTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the persistence worker; it flushes its last batch before returning.
	workerCancel()
	time.Sleep(2 * time.Second)

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
