package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"pennywise/internal/amqp"
	"pennywise/internal/config"
	"pennywise/internal/services"
	"pennywise/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting recurring-worker")

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

	var events services.OccurrencePublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing in SQLite-only mode", "error", err)
		} else {
			defer amqpClient.Close()
			events = amqpClient
			logger.Info("AMQP client initialized - occurrences will sync via sheets-worker")
		}
	} else {
		logger.Info("AMQP disabled - occurrences will not be exported")
	}

	materializer := services.NewMaterializer(repo, events)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runOnce := func() {
		stats, err := materializer.Run(ctx, time.Now().UTC())
		if err != nil {
			logger.Error("Materialization pass failed", "error", err)
			return
		}
		logger.Info("Materialization pass complete",
			"incomes_created", stats.IncomesCreated,
			"expenses_created", stats.ExpensesCreated,
			"installments_created", stats.InstallmentsCreated)
	}

	// Catch up immediately, then follow the schedule. The engine is
	// idempotent per month, so an extra pass is always safe.
	logger.Info("Running initial materialization pass...")
	runOnce()

	c := cron.New()
	if _, err := c.AddFunc(cfg.MaterializeSchedule, runOnce); err != nil {
		logger.Error("Failed to register materialization schedule",
			"schedule", cfg.MaterializeSchedule, "error", err)
		os.Exit(1)
	}
	c.Start()
	logger.Info("Materialization schedule registered",
		"schedule", cfg.MaterializeSchedule,
		"sqlite_db", cfg.SQLiteDBPath)

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
		logger.Info("Recurring-worker shutdown complete")
	case <-time.After(30 * time.Second):
		logger.Warn("Shutdown timeout reached")
	}
}
