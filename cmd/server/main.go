package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agenthublabs/agenthooks/internal/api"
	"github.com/agenthublabs/agenthooks/internal/config"
	"github.com/agenthublabs/agenthooks/internal/engine"
	"github.com/agenthublabs/agenthooks/internal/store"
	"github.com/agenthublabs/agenthooks/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize PostgreSQL
	ctx := context.Background()
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := pgStore.RunMigrations(ctx, "migrations"); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	// Redis is optional; without it usage telemetry is disabled
	var usage *telemetry.UsageRecorder
	if cfg.RedisURL != "" {
		redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		usage = telemetry.NewUsageRecorder(redisStore.Client(), logger)
		logger.Info("connected to Redis, usage telemetry enabled")
	} else {
		logger.Info("REDIS_URL not set, usage telemetry disabled")
	}

	// Delivery engine
	executor := engine.NewExecutor(cfg.DeliveryTimeout, logger)
	dispatcher := engine.NewDispatcher(pgStore, pgStore, executor, logger, cfg.MaxConcurrentDeliveries)
	retrier := engine.NewRetryCoordinator(pgStore, pgStore, executor, logger)

	// Setup router
	handler := api.NewWebhookHandler(pgStore, dispatcher, retrier, usage)
	router := api.NewRouter(handler, api.MapTokenResolver(cfg.APITokens))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
