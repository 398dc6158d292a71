package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"flujo/internal/config"
	"flujo/internal/core"
	"flujo/internal/log"
	"flujo/internal/scheduler"
	"flujo/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: log.ComponentScheduler})
	log.SetDefault(logger)

	logger.Info("Starting approval-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	sched := scheduler.New(repo)
	loc := cfg.Location()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Occurrence materializer configured",
		"interval", cfg.MaterializeInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	ticker := time.NewTicker(cfg.MaterializeInterval)
	defer ticker.Stop()

	// Run an initial pass on startup so a long-stopped worker catches up
	// immediately instead of waiting for the first tick.
	logger.Info("Running initial materialization pass...")
	if count, err := sched.ProcessDue(ctx, core.DateOf(time.Now().In(loc))); err != nil {
		logger.Error("Initial materialization failed", "error", err)
	} else {
		logger.Info("Initial materialization complete", "occurrences_created", count)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				count, err := sched.ProcessDue(ctx, core.DateOf(now.In(loc)))
				if err != nil {
					logger.Error("Periodic materialization failed", "error", err)
				} else {
					logger.Info("Periodic materialization complete",
						"occurrences_created", count,
						"next_check", now.Add(cfg.MaterializeInterval).Format("15:04:05"))
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down approval-worker...")
	cancel()
	logger.Info("Approval-worker shutdown complete")
}
