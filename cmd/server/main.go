package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/talentshire/assessment-core/internal/config"
	"github.com/talentshire/assessment-core/internal/database"
	"github.com/talentshire/assessment-core/internal/handler"
	"github.com/talentshire/assessment-core/internal/logger"
	"github.com/talentshire/assessment-core/internal/metrics"
	"github.com/talentshire/assessment-core/internal/middleware"
	"github.com/talentshire/assessment-core/internal/repository"
	"github.com/talentshire/assessment-core/internal/router"
	"github.com/talentshire/assessment-core/internal/service"
	"github.com/talentshire/assessment-core/internal/validator"
	"github.com/talentshire/assessment-core/internal/worker"
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
		Msg("Starting assessment core")

	// ─── Initialize Validator & Metrics ────────────────────────────────
	validator.Setup()
	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	checks := map[string]handler.Pinger{
		"postgres": pool,
		"redis":    handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
	}

	// ─── Connect to MongoDB (optional) ─────────────────────────────────
	// The mirror is assigned only when configured so the interface stays nil otherwise.
	var mirror service.SubmissionMirror
	if cfg.MongoURL != "" {
		mdb, err := database.NewMongoDatabase(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
		}
		defer func() {
			disconnectCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = mdb.Client().Disconnect(disconnectCtx)
		}()

		docs := repository.NewSubmissionDocumentRepository(mdb)
		if err := docs.EnsureIndexes(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to create MongoDB indexes")
		}
		mirror = docs
		checks["mongo"] = handler.PingFunc(func(ctx context.Context) error { return mdb.Client().Ping(ctx, nil) })
	} else {
		log.Warn().Msg("MONGO_URL not set, execution detail is kept in PostgreSQL only")
	}

	// ─── Initialize Repositories ───────────────────────────────────────
	assignmentRepo := repository.NewAssignmentRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	reportRepo := repository.NewReportRepository(pool)
	catalogRepo := repository.NewCatalogRepository(pool)
	txManager := database.NewTxManager(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	catalogService := service.NewCatalogService(catalogRepo, rdb, cfg.CatalogCacheTTL, log)
	reportQueue := service.NewReportQueue(rdb)
	assignmentService := service.NewAssignmentService(txManager, assignmentRepo, catalogService, reportQueue, log)
	answerService := service.NewAnswerService(txManager, assignmentRepo, answerRepo, catalogService, mirror, reportQueue, log)
	reportService := service.NewReportService(txManager, assignmentRepo, answerRepo, reportRepo, catalogService, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	limiter := middleware.NewRateLimiter(cfg.CandidateRatePerSecond, cfg.CandidateRateBurst)
	candidateHandler := handler.NewCandidateHandler(assignmentService, answerService, log)

	handlers := &router.Handlers{
		Health:     handler.NewHealthHandler(checks, rdb, log),
		Assignment: handler.NewAssignmentHandler(assignmentService, answerService, log),
		Candidate:  candidateHandler,
		Report:     handler.NewReportHandler(reportService, log),
		Internal:   handler.NewInternalHandler(answerService, log),
		WS:         handler.NewWSHandler(candidateHandler, limiter, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	startWorker := func(run func(context.Context)) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			run(workerCtx)
		}()
	}

	startWorker(worker.NewReportWorker(reportService, rdb, log).Start)
	startWorker(worker.NewEnrichmentWorker(answerService, rdb, log).Start)
	startWorker(worker.NewExpiryWorker(assignmentService, rdb, cfg.ExpiryScanInterval, cfg.ExpiryBatchSize, log).Start)
	go limiter.StartCleanup(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, limiter, handlers, cfg)

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

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
