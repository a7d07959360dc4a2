// Package memory is an in-process implementation of every repository and
// of tx.Manager. Transactions are serialized and work on a private copy of
// the data that replaces the committed state only on commit, so readers
// outside the transaction never see uncommitted writes. Used by tests and
// by the server when no DATABASE_URL is set.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"stockflow/internal/core/events"
	"stockflow/internal/core/id"
	"stockflow/internal/domain/delivery"
	"stockflow/internal/domain/ledger"
	"stockflow/internal/domain/location"
	"stockflow/internal/domain/purchasing"
	"stockflow/internal/domain/receiving"
)

// Hooks inject failures. Nil hooks are ignored.
type Hooks struct {
	// BeforeCommit runs when the outermost transaction is about to commit.
	// A non-nil error rolls the transaction back.
	BeforeCommit func(ctx context.Context) error
	// AdjustQuantity runs before a material cache write.
	AdjustQuantity func(materialID id.ID) error
}

type state struct {
	movements    []ledger.Movement
	locations    map[id.ID]location.Location
	orders       map[id.ID]purchasing.PurchaseOrder
	lines        map[id.ID]purchasing.Line
	materials    map[id.ID]purchasing.Material
	receipts     map[id.ID]receiving.Receipt
	receiptLines map[id.ID][]receiving.ReceiptLine
	deliveries   map[id.ID]delivery.Delivery
	lineItems    map[id.ID][]delivery.LineItem
	issues       map[id.ID]delivery.Issue
	outbox       []events.Event
}

func newState() *state {
	return &state{
		locations:    make(map[id.ID]location.Location),
		orders:       make(map[id.ID]purchasing.PurchaseOrder),
		lines:        make(map[id.ID]purchasing.Line),
		materials:    make(map[id.ID]purchasing.Material),
		receipts:     make(map[id.ID]receiving.Receipt),
		receiptLines: make(map[id.ID][]receiving.ReceiptLine),
		deliveries:   make(map[id.ID]delivery.Delivery),
		lineItems:    make(map[id.ID][]delivery.LineItem),
		issues:       make(map[id.ID]delivery.Issue),
	}
}

// clone copies every collection. Stored slices inside maps are never
// mutated in place, so a shallow copy of those maps is enough.
func (s *state) clone() *state {
	return &state{
		movements:    slices.Clone(s.movements),
		locations:    maps.Clone(s.locations),
		orders:       maps.Clone(s.orders),
		lines:        maps.Clone(s.lines),
		materials:    maps.Clone(s.materials),
		receipts:     maps.Clone(s.receipts),
		receiptLines: maps.Clone(s.receiptLines),
		deliveries:   maps.Clone(s.deliveries),
		lineItems:    maps.Clone(s.lineItems),
		issues:       maps.Clone(s.issues),
		outbox:       slices.Clone(s.outbox),
	}
}

// Store owns the data shared by all memory repositories.
type Store struct {
	// txMu serializes transactions and writes made outside one.
	txMu sync.Mutex
	// mu guards data, the last committed state.
	mu   sync.RWMutex
	data *state

	hooks Hooks
}

func NewStore() *Store {
	return &Store{data: newState()}
}

// SetHooks replaces the failure hooks.
func (s *Store) SetHooks(h Hooks) {
	s.mu.Lock()
	s.hooks = h
	s.mu.Unlock()
}

func (s *Store) currentHooks() Hooks {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hooks
}

// read runs fn against the transaction's working copy when ctx carries
// one, else against the committed state.
func (s *Store) read(ctx context.Context, fn func(d *state)) {
	if t := txFrom(ctx); t != nil {
		fn(t.data)
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

// write applies fn to the transaction's working copy. Outside a
// transaction it waits for any open transaction and applies fn to a copy
// that is committed only if fn succeeds.
func (s *Store) write(ctx context.Context, fn func(d *state) error) error {
	if t := txFrom(ctx); t != nil {
		return fn(t.data)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	work := s.committed()
	if err := fn(work); err != nil {
		return err
	}
	s.publish(work)
	return nil
}

// committed returns a private copy of the committed state.
func (s *Store) committed() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.clone()
}

func (s *Store) publish(d *state) {
	s.mu.Lock()
	s.data = d
	s.mu.Unlock()
}

// Events returns committed outbox events in publish order.
func (s *Store) Events() []events.Event {
	var out []events.Event
	s.read(context.Background(), func(d *state) { out = slices.Clone(d.outbox) })
	return out
}

// --- Repositories ---

func (s *Store) Ledger() *LedgerRepo { return &LedgerRepo{s: s} }
func (s *Store) Locations() *LocationRepo { return &LocationRepo{s: s} }
func (s *Store) Orders() *OrderRepo { return &OrderRepo{s: s} }
func (s *Store) Materials() *MaterialRepo { return &MaterialRepo{s: s} }
func (s *Store) Receipts() *ReceiptRepo { return &ReceiptRepo{s: s} }
func (s *Store) Deliveries() *DeliveryRepo { return &DeliveryRepo{s: s} }
func (s *Store) Publisher() *Publisher { return &Publisher{s: s} }
func (s *Store) TxManager() *TxManager { return &TxManager{s: s} }
