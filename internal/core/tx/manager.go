// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces; the implementations live in
// infrastructure/storage/postgres and infrastructure/storage/memory.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
type Manager interface {
	// RunInTransaction executes fn within one all-or-nothing transaction.
	// If fn returns an error, every write made through ctx is discarded.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// RunInSavepoint executes fn inside the transaction carried by ctx.
	// If fn fails, only the writes made by fn are undone and the enclosing
	// transaction stays usable. Must be called inside RunInTransaction.
	RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error

	// ReadOnly executes fn against one consistent view of committed data.
	// Writes through ctx are rejected or discarded. Inside an existing
	// transaction fn joins it.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
