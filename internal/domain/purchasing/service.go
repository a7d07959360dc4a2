package purchasing

import (
	"context"
	"time"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/core/numerator"
	"stockflow/internal/core/tx"
	"stockflow/pkg/logger"
)

// OrderView is an order together with its lines.
type OrderView struct {
	Order PurchaseOrder `json:"order"`
	Lines []Line        `json:"lines"`
}

// LoadOrder reads an order and its lines, checking tenant ownership.
func LoadOrder(ctx context.Context, repo OrderRepository, tenantID string, orderID id.ID) (*PurchaseOrder, []Line, error) {
	order, err := repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order.TenantID != tenantID {
		return nil, nil, apperror.NewForbidden("purchase order belongs to another tenant").
			WithDetail("purchaseOrderId", orderID.String())
	}
	lines, err := repo.GetLines(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, lines, nil
}

// Service exposes purchase order reads and the setup writes used by
// seeding and tests.
type Service struct {
	orders    OrderRepository
	materials MaterialRepository
	txManager tx.Manager
	numbers   numerator.Generator
}

// NewService builds the service. numbers may be nil, in which case orders
// must carry their own poNumber.
func NewService(orders OrderRepository, materials MaterialRepository, txManager tx.Manager, numbers numerator.Generator) *Service {
	return &Service{orders: orders, materials: materials, txManager: txManager, numbers: numbers}
}

// GetOrder returns an order with its lines.
func (s *Service) GetOrder(ctx context.Context, tenantID string, orderID id.ID) (*OrderView, error) {
	order, lines, err := LoadOrder(ctx, s.orders, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderView{Order: *order, Lines: lines}, nil
}

// CreateOrder stores a new order. Line ids, derived quantities, statuses
// and totals are filled in here.
func (s *Service) CreateOrder(ctx context.Context, order PurchaseOrder, lines []Line) (*OrderView, error) {
	now := time.Now().UTC()
	if id.IsNil(order.ID) {
		order.ID = id.New()
	}
	if order.Status == "" {
		order.Status = OrderApproved
	}
	order.CreatedAt, order.UpdatedAt = now, now

	// Numbers are taken outside the order transaction, so a failed create
	// leaves a gap.
	if order.PONumber == "" && s.numbers != nil {
		number, err := s.numbers.Next(ctx, order.TenantID, numerator.DefaultConfig("PO"), now)
		if err != nil {
			return nil, err
		}
		order.PONumber = number
	}

	for i := range lines {
		if id.IsNil(lines[i].ID) {
			lines[i].ID = id.New()
		}
		lines[i].OrderID = order.ID
		lines[i].RemainingQuantity = lines[i].OrderedQuantity - lines[i].ReceivedQuantity
		lines[i].Status = LineOpen
		if lines[i].ReceivedQuantity > 0 {
			lines[i].Status = DeriveLineStatus(lines[i].RemainingQuantity)
		}
		lines[i].UpdatedAt = now
	}
	if err := order.Validate(ctx, lines); err != nil {
		return nil, err
	}
	order.TotalOrderedQuantity, order.TotalReceivedQuantity = Totals(lines)
	order.IsFullyReceived = order.TotalReceivedQuantity >= order.TotalOrderedQuantity

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.orders.CreateOrder(ctx, order, lines)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase order created", "po_id", order.ID, "po_number", order.PONumber, "lines", len(lines))
	return &OrderView{Order: order, Lines: lines}, nil
}

// CreateMaterial registers a material with an initial cached quantity.
func (s *Service) CreateMaterial(ctx context.Context, m Material) (*Material, error) {
	if id.IsNil(m.ID) {
		m.ID = id.New()
	}
	if m.Name == "" {
		return nil, apperror.NewValidation("material name is required").WithDetail("field", "name")
	}
	if m.CurrentQuantity < 0 {
		return nil, apperror.NewValidation("current quantity cannot be negative").WithDetail("field", "currentQuantity")
	}
	m.UpdatedAt = time.Now().UTC()
	if err := s.materials.CreateMaterial(ctx, m); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMaterial returns one material with its cached quantity.
func (s *Service) GetMaterial(ctx context.Context, tenantID string, materialID id.ID) (*Material, error) {
	return s.materials.GetMaterial(ctx, tenantID, materialID)
}
