package purchasing

import (
	"context"

	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
)

// OrderRepository persists purchase orders and their lines.
type OrderRepository interface {
	// GetOrder returns apperror NotFound when the order does not exist.
	GetOrder(ctx context.Context, orderID id.ID) (*PurchaseOrder, error)
	GetLines(ctx context.Context, orderID id.ID) ([]Line, error)
	CreateOrder(ctx context.Context, order PurchaseOrder, lines []Line) error
	UpdateLines(ctx context.Context, lines ...Line) error
	UpdateOrder(ctx context.Context, order PurchaseOrder) error
}

// MaterialRepository stores the material quantity cache.
type MaterialRepository interface {
	GetMaterial(ctx context.Context, tenantID string, materialID id.ID) (*Material, error)
	CreateMaterial(ctx context.Context, m Material) error
	// AdjustQuantity adds delta to the cached quantity and returns the new
	// value. With clampZero the result is floored at zero.
	AdjustQuantity(ctx context.Context, tenantID string, materialID id.ID, delta types.Quantity, clampZero bool) (types.Quantity, error)
}
