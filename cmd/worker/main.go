// Package main is the entry point for the stockflow background worker.
// It relays the transactional outbox and runs housekeeping jobs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockflow/internal/config"
	coreevents "stockflow/internal/core/events"
	"stockflow/internal/infrastructure/events"
	"stockflow/internal/infrastructure/metrics"
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

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Development(),
		Service:     "stockflow-worker",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	if cfg.Storage.Driver != config.DriverPostgres {
		log.Fatalw("worker requires the postgres driver", "driver", cfg.Storage.Driver)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting stockflow worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.Storage.DatabaseURL)
	poolCfg.MaxConns = 5
	poolCfg.MinConns = 1
	poolCfg.ApplicationName = "stockflow-worker"
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	var sink coreevents.Handler = events.LogSink{}
	if cfg.Worker.WebhookURL != "" {
		webhookCfg := events.DefaultWebhookConfig(cfg.Worker.WebhookURL)
		webhookCfg.Secret = cfg.Worker.WebhookSecret
		webhookCfg.Timeout = cfg.Worker.WebhookTimeout
		sink = events.NewWebhookSink(webhookCfg)
		log.Infow("relaying events to webhook", "url", cfg.Worker.WebhookURL)
	}

	m := metrics.New()
	txManager := postgres.NewTxManager(pool)
	worker := NewWorker(
		postgres.NewOutboxRelay(txManager, cfg.Worker.OutboxBatchSize, sink),
		postgres.NewIdempotencyStore(txManager, cfg.Idempotency.TTL),
		pool,
		m,
		cfg.Worker,
		log,
	)
	if err := worker.Start(ctx); err != nil {
		log.Fatalw("failed to schedule jobs", "error", err)
	}

	metricsServer := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("metrics server failed", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()
	worker.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	log.Info("worker stopped")
}
