package ledger

import (
	"context"
)

// Repository persists movements. There is no update or delete.
type Repository interface {
	// Append stores movements inside the transaction carried by ctx, if any.
	Append(ctx context.Context, movements ...Movement) error

	// Query returns tenant movements matching filter, ordered by
	// created_at then id. The filter is already normalized by the caller.
	Query(ctx context.Context, tenantID string, filter MovementFilter) ([]Movement, error)
}
