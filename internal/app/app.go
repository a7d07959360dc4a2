// Package app assembles repositories and domain services for one storage
// driver. The server, the worker and the seed command share it.
package app

import (
	"context"
	"time"

	"stockflow/internal/core/events"
	"stockflow/internal/core/idempotency"
	corenumerator "stockflow/internal/core/numerator"
	"stockflow/internal/core/tx"
	"stockflow/internal/domain/audit"
	"stockflow/internal/domain/balance"
	"stockflow/internal/domain/delivery"
	"stockflow/internal/domain/ledger"
	"stockflow/internal/domain/location"
	"stockflow/internal/domain/purchasing"
	"stockflow/internal/domain/receiving"
	"stockflow/internal/infrastructure/cache"
	"stockflow/internal/infrastructure/numerator"
	"stockflow/internal/infrastructure/storage/memory"
	"stockflow/internal/infrastructure/storage/postgres"
	"stockflow/internal/infrastructure/storage/postgres/delivery_repo"
	"stockflow/internal/infrastructure/storage/postgres/ledger_repo"
	"stockflow/internal/infrastructure/storage/postgres/location_repo"
	"stockflow/internal/infrastructure/storage/postgres/purchasing_repo"
	"stockflow/internal/infrastructure/storage/postgres/receiving_repo"
)

// Pinger reports storage reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Repositories is the storage surface of the engine.
type Repositories struct {
	Movements   ledger.Repository
	Locations   location.Repository
	Orders      purchasing.OrderRepository
	Materials   purchasing.MaterialRepository
	Receipts    receiving.Repository
	Deliveries  delivery.Repository
	TxManager   tx.Manager
	Publisher   events.Publisher
	Auditor     audit.Recorder
	Idempotency idempotency.Store
	Numbers     corenumerator.Generator

	// Storage is nil for the memory driver.
	Storage Pinger

	// LocationNames caches balance location names. Nil reads through to
	// the location service.
	LocationNames *cache.LocationNames
}

// Memory wires every repository to an in-process store.
func Memory(store *memory.Store, opts Options) Repositories {
	return Repositories{
		Movements:   store.Ledger(),
		Locations:   store.Locations(),
		Orders:      store.Orders(),
		Materials:   store.Materials(),
		Receipts:    store.Receipts(),
		Deliveries:  store.Deliveries(),
		TxManager:   store.TxManager(),
		Publisher:   store.Publisher(),
		Auditor:     audit.LogRecorder{},
		Idempotency: memory.NewIdempotencyStore(opts.IdempotencyTTL),
		Numbers:     memory.NewSequences(),
	}
}

// Postgres wires every repository to pool. Events go to sys_outbox inside
// the writing transaction and audit entries to sys_audit.
func Postgres(pool *postgres.Pool, opts Options) (Repositories, error) {
	txManager := postgres.NewTxManager(pool)

	auditor, err := postgres.NewAuditStore(txManager, postgres.DefaultCompressThreshold)
	if err != nil {
		return Repositories{}, err
	}

	locations := location_repo.NewRepo(txManager)

	return Repositories{
		Movements:   ledger_repo.NewRepo(txManager),
		Locations:   locations,
		Orders:      purchasing_repo.NewOrderRepo(txManager),
		Materials:   purchasing_repo.NewMaterialRepo(txManager),
		Receipts:    receiving_repo.NewRepo(txManager),
		Deliveries:  delivery_repo.NewRepo(txManager),
		TxManager:   txManager,
		Publisher:   postgres.NewOutboxPublisher(txManager),
		Auditor:     auditor,
		Idempotency: postgres.NewIdempotencyStore(txManager, opts.IdempotencyTTL),
		Numbers:     numerator.New(txManager, opts.Numbering),
		Storage:     pool,

		LocationNames: cache.NewLocationNames(locations, pool.Pool, location_repo.NotifyChannel),
	}, nil
}

// Options tunes service construction.
type Options struct {
	IdempotencyTTL time.Duration
	// MaxAttempts bounds retries of aborted receiving and delivery
	// transactions. Zero uses the package defaults.
	MaxAttempts int
	// Numbering selects the purchase order numbering strategy. Nil is strict.
	Numbering *corenumerator.Options
}

// Services are the domain entry points used by the transports.
type Services struct {
	Ledger     *ledger.Service
	Balances   *balance.Service
	Locations  *location.Service
	Purchasing *purchasing.Service
	Receiving  *receiving.Coordinator
	Delivery   *delivery.Workflow
}

// NewServices builds the domain services over r.
func NewServices(r Repositories, opts Options) *Services {
	locations := location.NewService(r.Locations)
	var names balance.LocationNamer = locations
	if r.LocationNames != nil {
		names = r.LocationNames
	}

	return &Services{
		Ledger:     ledger.NewService(r.Movements, r.TxManager, r.Publisher, r.Auditor),
		Balances:   balance.NewService(r.Movements, names, r.TxManager),
		Locations:  locations,
		Purchasing: purchasing.NewService(r.Orders, r.Materials, r.TxManager, r.Numbers),
		Receiving: receiving.NewCoordinator(receiving.Deps{
			Orders:    r.Orders,
			Materials: r.Materials,
			Receipts:  r.Receipts,
			Movements: r.Movements,
			TxManager: r.TxManager,
			Publisher: r.Publisher,
			Auditor:   r.Auditor,
		}, opts.MaxAttempts),
		Delivery: delivery.NewWorkflow(delivery.Deps{
			Orders:     r.Orders,
			Materials:  r.Materials,
			Deliveries: r.Deliveries,
			TxManager:  r.TxManager,
			Publisher:  r.Publisher,
			Auditor:    r.Auditor,
		}, opts.MaxAttempts),
	}
}
