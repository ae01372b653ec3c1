package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nuforge/gamesync/internal/api"
	"github.com/nuforge/gamesync/internal/config"
	"github.com/nuforge/gamesync/internal/domain"
	"github.com/nuforge/gamesync/internal/engine"
	"github.com/nuforge/gamesync/internal/publish"
	"github.com/nuforge/gamesync/internal/retry"
	"github.com/nuforge/gamesync/internal/store"
	"github.com/nuforge/gamesync/internal/transform"
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

	// Initialize Redis
	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()
	logger.Info("connected to Redis")

	// Wire the sync pipeline
	policy := domain.RetryPolicy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}
	dlStore := store.NewDeadLetterStore(pgStore, policy)

	publisher := publish.New(publish.Config{
		EndpointURL: cfg.IngestURL,
		Secret:      cfg.IngestSecret,
		TokenIssuer: cfg.TokenIssuer,
		TokenTTL:    cfg.TokenTTL,
		HTTPTimeout: cfg.HTTPTimeout,
	}, logger)
	if !publisher.Configured() {
		logger.Warn("ingestion endpoint not configured, publishes will be rejected until INGEST_URL and INGEST_SECRET are set")
	}

	transformer := transform.New(logger)
	syncer := engine.NewSyncer(transformer, publisher, dlStore, pgStore, logger)

	lease := retry.NewEnvelopeLease(redisStore.Client(), logger)
	limiter := engine.NewPublishLimiter(redisStore.Client(), cfg.PublishPerSecond, logger)
	coordinator := retry.NewCoordinator(dlStore, publisher, pgStore, lease, limiter, logger)

	// Setup router
	router := api.NewRouter(syncer, coordinator, dlStore, pgStore, publisher, cfg.RetryBatchLimit)

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
