package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"flujo/internal/amqp"
	"flujo/internal/cache"
	"flujo/internal/config"
	flujohttp "flujo/internal/http"
	"flujo/internal/ledger"
	"flujo/internal/log"
	"flujo/internal/rates"
	"flujo/internal/reconcile"
	"flujo/internal/report"
	"flujo/internal/storage"
)

const defaultUserID = "default"

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	logger.Info("Starting flujo API server")

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Rate resolver with its caches and background expiry janitor.
	rateCache := cache.New[decimal.Decimal](cfg.RatesCacheSize, cfg.RatesCacheTTL)
	listCache := cache.New[[]rates.Currency](1, 24*time.Hour)
	rateCache.StartJanitor(ctx, cfg.RatesCacheTTL)
	resolver := rates.NewClient(cfg.RatesBaseURL, cfg.RatesTimeout, rateCache, listCache)

	// AMQP is optional: without a broker, confirmed transactions stay queued
	// in SQLite until the export worker sweeps them.
	var publisher reconcile.Publisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without export notifications", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP client initialized")
		}
	}

	engine := reconcile.New(repo, resolver, publisher, defaultUserID, cfg.DefaultBaseCurrency)
	approvals := ledger.New(repo, engine, cfg.Location())
	reports := report.New(repo, resolver, cfg.Location(), defaultUserID, cfg.DefaultBaseCurrency)

	server := flujohttp.NewServer(":"+cfg.Port, repo, approvals, engine, reports, repo, resolver, cfg.Location())
	server.Handler = log.Middleware(logger.WithComponent(log.ComponentHTTP))(server.Handler)

	go func() {
		logger.Info("HTTP server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			cancel()
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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down API server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server shutdown error", "error", err)
	}
	logger.Info("API server shutdown complete")
}
