// Package main is the entry point for folio, the portfolio metrics and
// attribution server.
//
// Startup order:
//  1. Load configuration from the environment (.env supported)
//  2. Build the logger
//  3. Wire databases, repositories and services via the DI container
//  4. Start the HTTP API
//  5. Schedule the analytics sweep and database upkeep
//  6. Wait for SIGINT/SIGTERM and shut down gracefully
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/di"
	"github.com/aristath/folio/internal/scheduler"
	"github.com/aristath/folio/internal/server"
	"github.com/aristath/folio/pkg/logger"
)

// walCheckpointSchedule runs at minute 0 of every hour (cron with seconds)
const walCheckpointSchedule = "0 0 * * * *"

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Str("estimator", cfg.Analytics.ScenarioEstimator).
		Msg("Starting folio")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, jobs, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	srv := server.New(server.Config{
		Log:       log,
		Container: container,
		Jobs:      jobs,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	sched := scheduler.New(log)
	if cfg.Sweep.Schedule != "" {
		if err := sched.AddJob(cfg.Sweep.Schedule, jobs.AnalyticsSweep); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule analytics sweep")
		}
	} else {
		log.Info().Msg("Analytics sweep disabled (no SWEEP_SCHEDULE)")
	}
	if err := sched.AddJob(walCheckpointSchedule, jobs.WALCheckpoint); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule WAL checkpoint")
	}
	if cfg.Sweep.MaintenanceSchedule != "" {
		if err := sched.AddJob(cfg.Sweep.MaintenanceSchedule, jobs.Maintenance); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule maintenance")
		}
	}
	if jobs.Backup != nil && cfg.Reports.BackupSchedule != "" {
		if err := sched.AddJob(cfg.Reports.BackupSchedule, jobs.Backup); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule database backup")
		}
	}
	sched.Start()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	// Running jobs finish before the databases close
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
