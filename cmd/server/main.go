// Package main is the entry point for the Wheelhouse options advisory service.
// The application generates option strategy recommendations, snapshots every
// one of them for audit, throttles what reaches the user, and reconciles
// recommendations against the trades that actually executed.
//
// The application follows clean architecture principles:
// - Domain layer is pure (no infrastructure dependencies)
// - Dependency injection via DI container
// - Repository pattern for data access
// - Service layer for business logic
// - HTTP handlers for API endpoints
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mleventi/wheelhouse/internal/config"
	"github.com/mleventi/wheelhouse/internal/di"
	"github.com/mleventi/wheelhouse/internal/scheduler"
	"github.com/mleventi/wheelhouse/internal/server"
	"github.com/mleventi/wheelhouse/pkg/logger"
)

// main orchestrates the startup sequence:
// 1. Load configuration from environment variables
// 2. Initialize logging
// 3. Wire all dependencies via the DI container (databases, repositories, services)
// 4. Register scheduled jobs (advisory runs, reconciliation, maintenance, backups)
// 5. Start the HTTP server
// 6. Wait for a shutdown signal and shut down gracefully
//
// The application uses a 4-database architecture:
// - config.db: Strategy configuration and settings
// - portfolio.db: Current portfolio state (positions, options, cash)
// - ledger.db: Immutable record of executed option trades
// - advisory.db: Recommendation snapshots, throttle tracking, reconciliation matches
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().Msg("Starting Wheelhouse")

	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	sched := scheduler.New(log)
	if err := di.RegisterJobs(sched, container, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to register scheduled jobs")
	}

	srv := server.New(server.Config{
		Port:        cfg.Port,
		Log:         log,
		ConfigDB:    container.ConfigDB,
		PortfolioDB: container.PortfolioDB,
		LedgerDB:    container.LedgerDB,
		AdvisoryDB:  container.AdvisoryDB,
		Config:      cfg,
		DevMode:     cfg.DevMode,
		Container:   container,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	sched.Start()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	// Stop scheduling first so no new run starts mid-shutdown; Stop waits for
	// any in-flight job to finish.
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
