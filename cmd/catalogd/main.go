// cmd/catalogd/main.go
// Package main implements the entry point for the catalog service.
// It initializes all components and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sellerhub/sellerhub-catalog-go/internal/cache"
	"github.com/sellerhub/sellerhub-catalog-go/internal/config"
	"github.com/sellerhub/sellerhub-catalog-go/internal/describe"
	"github.com/sellerhub/sellerhub-catalog-go/internal/event"
	"github.com/sellerhub/sellerhub-catalog-go/internal/oidc"
	"github.com/sellerhub/sellerhub-catalog-go/internal/server"
	"github.com/sellerhub/sellerhub-catalog-go/internal/service"
	"github.com/sellerhub/sellerhub-catalog-go/internal/storage"
	"github.com/sellerhub/sellerhub-catalog-go/internal/telemetry"
)

// main is the entry point for the catalog service.
// It initializes all components, starts the HTTP server, and handles graceful shutdown.
func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging for the application
	logLevel := slog.LevelInfo
	if cfg.Env == "dev" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Initialize OpenTelemetry
	shutdownTracer, err := telemetry.Init("catalog-service", cfg.Env)
	if err != nil {
		logger.Error("failed to initialize OpenTelemetry tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		// Flush remaining spans before exit
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTracer(ctx)
	}()

	// Initialize storage backend (PostgreSQL or in-memory)
	var baseStore storage.Store
	if cfg.DatabaseDSN != "" {
		// Use PostgreSQL storage for production
		baseStore, err = storage.NewPostgres(cfg.DatabaseDSN)
		if err != nil {
			logger.Error("failed to initialize postgres storage", "error", err)
			os.Exit(1)
		}
	} else {
		// Use in-memory storage for development/testing
		baseStore = storage.NewMemory()
	}
	store := baseStore

	// Wrap storage with the cache-aside layer when Redis is configured
	entryCache := cache.NewNoop()
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		entryCache, err = cache.NewRedis(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		store = storage.NewCached(store, entryCache, cfg.CacheTTL)
	}
	defer entryCache.Close()

	// Initialize event publisher (NATS JetStream or no-op)
	pub := event.NewPublisher(cfg.NATSURL)
	defer pub.Close() // Ensure publisher is closed on exit

	// Initialize description enrichment client
	var describer describe.Describer
	if cfg.AIURL != "" {
		describer = describe.New(cfg.AIURL, cfg.AIModel)
	}

	// Initialize bearer-token validation when an identity provider is configured
	var validator *oidc.Validator
	if cfg.OpenIDWellKnown != "" {
		keys := oidc.NewKeyProvider(cfg.OpenIDWellKnown)
		validator = oidc.NewValidator(keys, cfg.JWTIssuer)
	}

	svc := service.New(store, describer, pub)

	// Create HTTP mux with all handlers and middleware
	mux := server.NewMux(svc, store, validator, cfg.CORSAllowedOrigins)

	// Create HTTP server with timeout configuration
	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         addr,             // Server address
		Handler:      mux,              // Request handler
		ReadTimeout:  5 * time.Second,  // Read timeout
		WriteTimeout: 30 * time.Second, // Write timeout (enrichment calls are slow)
	}

	// Start server in a separate goroutine
	go func() {
		logger.Info("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Handle graceful shutdown
	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	// Close PostgreSQL storage if used
	if postgresStore, ok := baseStore.(interface{ Close() }); ok {
		postgresStore.Close()
	}

	// Note: pub.Close() is deferred above
	logger.Info("server exited")
}
