// Command server runs the diary bot backend: the LINE webhook endpoint, the
// tiered analysis pipeline behind it, and the operational API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kokorolog/go-diary-backend/internal/config"
	httpapi "github.com/kokorolog/go-diary-backend/internal/http"
	"github.com/kokorolog/go-diary-backend/internal/line"
	"github.com/kokorolog/go-diary-backend/internal/llm"
	"github.com/kokorolog/go-diary-backend/internal/observability"
	"github.com/kokorolog/go-diary-backend/internal/perf"
	"github.com/kokorolog/go-diary-backend/internal/repo"
	"github.com/kokorolog/go-diary-backend/internal/resilience"
	"github.com/kokorolog/go-diary-backend/internal/services"
	"github.com/kokorolog/go-diary-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// Missing .env is fine; containers pass real environment variables.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database open failed")
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			log.Warn().Err(err).Msg("database tracing setup failed")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	res := resilience.NewHandler(
		resilience.RetryPolicy{
			MaxRetries:        cfg.Retry.MaxRetries,
			BaseDelay:         cfg.Retry.BaseDelay,
			MaxDelay:          cfg.Retry.MaxDelay,
			BackoffMultiplier: cfg.Retry.BackoffMultiplier,
		},
		resilience.BreakerPolicy{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			ResetTimeout:     cfg.Breaker.ResetTimeout,
		},
		log.Logger,
	)
	monitor := perf.NewMonitor(cfg.PerfCapacity, cfg.Analysis.Level1Budget, log.Logger)

	llmClient := llm.NewClient(cfg.LLM, log.Logger)
	messenger := line.NewClient(cfg.LINE, log.Logger)

	tasks := services.NewTasks(log.Logger)
	summaries := services.NewSummaryService(db, llmClient, res, cfg.Summary, log.Logger)
	pipeline := services.NewAnalysisService(db, llmClient, summaries, res, monitor, cfg.Analysis, log.Logger)
	async := services.NewAsyncService(db, llmClient, summaries, messenger, res, tasks, cfg.Analysis, log.Logger)
	diary := services.NewDiaryService(db, pipeline, async, messenger, res, log.Logger)
	maint := services.NewMaintenanceService(db, summaries, cfg.Maintenance, log.Logger)

	var cronRunner *cron.Cron
	if cfg.Maintenance.Enabled {
		cronRunner = cron.New()
		if _, err := cronRunner.AddFunc(cfg.Maintenance.Schedule, func() {
			runCtx, cancel := context.WithTimeout(context.Background(), cfg.Maintenance.RunTimeout)
			defer cancel()
			maint.RunOnce(runCtx)
		}); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.Maintenance.Schedule).Msg("invalid maintenance schedule")
		}
		cronRunner.Start()
		log.Info().Str("schedule", cfg.Maintenance.Schedule).Msg("maintenance batch scheduled")
	}

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, httpapi.Deps{
		DB:         db,
		Events:     diary,
		Monitor:    monitor,
		Resilience: res,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if cronRunner != nil {
		// Stop returns a context that is done once a running batch finishes.
		select {
		case <-cronRunner.Stop().Done():
		case <-shutdownCtx.Done():
			log.Warn().Msg("maintenance batch did not finish in time")
		}
	}
	// Let in-flight enrichment pushes finish before the process exits.
	if err := tasks.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("background tasks did not drain in time")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown failed")
	}
	log.Info().Msg("server stopped")
}
