package main

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"stockflow/internal/config"
	"stockflow/internal/infrastructure/metrics"
	"stockflow/internal/infrastructure/storage/postgres"
	"stockflow/pkg/logger"
)

// Worker schedules the outbox relay and housekeeping jobs.
type Worker struct {
	cron        *cron.Cron
	relay       *postgres.OutboxRelay
	idempotency *postgres.IdempotencyStore
	pool        *postgres.Pool
	metrics     *metrics.Metrics
	cfg         config.WorkerConfig
	log         *logger.Logger
}

func NewWorker(
	relay *postgres.OutboxRelay,
	idempotency *postgres.IdempotencyStore,
	pool *postgres.Pool,
	m *metrics.Metrics,
	cfg config.WorkerConfig,
	log *logger.Logger,
) *Worker {
	log = log.WithComponent("worker")
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	return &Worker{
		cron:        c,
		relay:       relay,
		idempotency: idempotency,
		pool:        pool,
		metrics:     m,
		cfg:         cfg,
		log:         log,
	}
}

// Start registers the jobs and starts the scheduler. Jobs stop picking up
// work once ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	if _, err := w.cron.AddFunc(w.cfg.OutboxSchedule, func() { w.relayOutbox(ctx) }); err != nil {
		return err
	}
	if _, err := w.cron.AddFunc(w.cfg.HousekeepingSchedule, func() { w.housekeeping(ctx) }); err != nil {
		return err
	}
	w.cron.Start()
	w.log.Infow("worker scheduled",
		"outbox", w.cfg.OutboxSchedule,
		"housekeeping", w.cfg.HousekeepingSchedule,
	)
	return nil
}

// Stop waits for running jobs to finish.
func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
}

// relayOutbox drains due outbox messages until a batch comes back short.
func (w *Worker) relayOutbox(ctx context.Context) {
	for ctx.Err() == nil {
		res, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			w.log.Errorw("outbox batch failed", "error", err)
			return
		}
		w.metrics.RecordRelay(res.Published, res.Failed)
		if res.Claimed > 0 {
			w.log.Debugw("outbox batch relayed",
				"claimed", res.Claimed,
				"published", res.Published,
				"failed", res.Failed,
			)
		}
		if res.Claimed < w.cfg.OutboxBatchSize || res.Failed > 0 {
			return
		}
	}
}

func (w *Worker) housekeeping(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if n, err := w.relay.MoveToDLQ(ctx); err != nil {
		w.log.Errorw("failed to move outbox messages to DLQ", "error", err)
	} else if n > 0 {
		w.log.Warnw("outbox messages moved to DLQ", "count", n)
	}

	if n, err := w.relay.PurgePublished(ctx, w.cfg.PublishedRetention); err != nil {
		w.log.Errorw("failed to purge published outbox messages", "error", err)
	} else if n > 0 {
		w.log.Infow("purged published outbox messages", "count", n)
	}

	if n, err := w.idempotency.CleanupExpired(ctx); err != nil {
		w.log.Errorw("failed to clean up idempotency keys", "error", err)
	} else if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", n)
	}

	w.pool.LogStats(ctx)
}
