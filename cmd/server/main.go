// Package main is the entry point for the stockflow API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockflow/internal/app"
	"stockflow/internal/config"
	"stockflow/internal/core/idempotency"
	"stockflow/internal/core/numerator"
	"stockflow/internal/domain/auth"
	v1 "stockflow/internal/infrastructure/http/v1"
	"stockflow/internal/infrastructure/metrics"
	"stockflow/internal/infrastructure/storage/memory"
	"stockflow/internal/infrastructure/storage/postgres"
	"stockflow/pkg/logger"
)

func main() {
	envFile := flag.String("env", "", "path to .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := context.Background()
	log.Infow("starting stockflow server", "driver", cfg.Storage.Driver, "env", cfg.Server.Env)

	opts := app.Options{
		IdempotencyTTL: cfg.Idempotency.TTL,
		MaxAttempts:    cfg.Receiving.MaxAttempts,
		Numbering: &numerator.Options{
			Strategy:  numerator.ParseStrategy(cfg.Purchasing.NumberingStrategy),
			RangeSize: cfg.Purchasing.NumberingRange,
		},
	}

	// --- Storage ---
	var repos app.Repositories
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		poolCfg := postgres.DefaultPoolConfig(cfg.Storage.DatabaseURL)
		poolCfg.MaxConns = cfg.Storage.MaxConns
		poolCfg.MinConns = cfg.Storage.MinConns

		pool, err := postgres.NewPool(ctx, poolCfg)
		if err != nil {
			log.Fatalw("failed to connect to database", "error", err)
		}
		defer pool.Close()
		log.Info("database connection established")

		repos, err = app.Postgres(pool, opts)
		if err != nil {
			log.Fatalw("failed to initialize repositories", "error", err)
		}
	default:
		log.Warn("using in-memory storage; data is lost on restart")
		repos = app.Memory(memory.NewStore(), opts)
	}

	if repos.LocationNames != nil {
		repos.LocationNames.Start(ctx)
		defer repos.LocationNames.Stop()
	}

	services := app.NewServices(repos, opts)

	// --- JWT Service ---
	jwtConfig := auth.DefaultJWTConfig(cfg.Auth.JWTSecret)
	jwtConfig.Issuer = cfg.Auth.JWTIssuer
	jwtService := auth.NewJWTService(jwtConfig)

	var idempotencyStore idempotency.Store
	if cfg.Idempotency.Enabled {
		idempotencyStore = repos.Idempotency
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:           log,
		Verifier:         jwtService,
		Metrics:          metrics.New(),
		Storage:          repos.Storage,
		Driver:           cfg.Storage.Driver,
		IdempotencyStore: idempotencyStore,
		Services:         services,
		Release:          !cfg.Development(),
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
