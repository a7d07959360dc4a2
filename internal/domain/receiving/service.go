package receiving

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/events"
	"stockflow/internal/core/id"
	"stockflow/internal/core/tx"
	"stockflow/internal/domain/audit"
	"stockflow/internal/domain/ledger"
	"stockflow/internal/domain/purchasing"
	"stockflow/pkg/logger"
)

var tracer = otel.Tracer("stockflow/receiving")

// DefaultMaxAttempts bounds retries of transactions aborted by a
// concurrent write.
const DefaultMaxAttempts = 3

// Deps groups the coordinator's collaborators.
type Deps struct {
	Orders    purchasing.OrderRepository
	Materials purchasing.MaterialRepository
	Receipts  Repository
	Movements ledger.Repository
	TxManager tx.Manager
	Publisher events.Publisher
	Auditor   audit.Recorder
}

// Coordinator runs the receiving transaction.
type Coordinator struct {
	deps        Deps
	maxAttempts int
	now         func() time.Time
}

// NewCoordinator creates a receiving coordinator. maxAttempts <= 0 uses
// DefaultMaxAttempts.
func NewCoordinator(deps Deps, maxAttempts int) *Coordinator {
	if deps.Publisher == nil {
		deps.Publisher = events.Nop{}
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Coordinator{
		deps:        deps,
		maxAttempts: maxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ProcessReceipt records a receipt against a purchase order.
//
// Everything (receipt, receipt lines, PO lines, movements, material cache,
// PO status) commits together or not at all. A transaction aborted by a
// concurrent write is retried from scratch up to maxAttempts times.
func (c *Coordinator) ProcessReceipt(ctx context.Context, req Request, actorID string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "receiving.ProcessReceipt")
	defer span.End()
	span.SetAttributes(
		attribute.String("po.id", req.PurchaseOrderID.String()),
		attribute.Int("receipt.items", len(req.Items)),
	)

	log := logger.FromContext(ctx).WithComponent("receiving")

	var plan *Plan
	err := tx.WithRetry(ctx, c.maxAttempts, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			log.Warnw("receipt transaction aborted, retrying",
				"po_id", req.PurchaseOrderID,
				"attempt", attempt,
			)
		}
		var err error
		plan, err = c.commit(ctx, req, actorID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	log.Infow("receipt processed",
		"receipt_id", plan.Receipt.ID,
		"po_id", plan.Order.ID,
		"lines", len(plan.Lines),
		"movements", len(plan.Movements),
		"po_status", plan.Order.Status,
	)

	audit.Emit(ctx, c.deps.Auditor, audit.KindReceiptProcessed, actorID, map[string]any{
		"receiptId":       plan.Receipt.ID,
		"purchaseOrderId": plan.Order.ID,
		"lines":           len(plan.Lines),
	})
	if plan.StatusChanged() {
		audit.Emit(ctx, c.deps.Auditor, audit.KindOrderStatusChanged, actorID, map[string]any{
			"purchaseOrderId": plan.Order.ID,
			"from":            plan.PreviousStatus,
			"to":              plan.Order.Status,
		})
	}

	return &Result{ReceiptID: plan.Receipt.ID}, nil
}

func (c *Coordinator) commit(ctx context.Context, req Request, actorID string) (*Plan, error) {
	var plan *Plan
	err := c.deps.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		order, lines, err := purchasing.LoadOrder(ctx, c.deps.Orders, req.TenantID, req.PurchaseOrderID)
		if err != nil {
			return err
		}
		plan, err = BuildPlan(*order, lines, req, actorID, c.now())
		if err != nil {
			return err
		}
		return c.apply(ctx, plan)
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// apply writes a plan. Must run inside the receipt transaction.
func (c *Coordinator) apply(ctx context.Context, plan *Plan) error {
	if err := c.deps.Receipts.CreateReceipt(ctx, plan.Receipt, plan.Lines); err != nil {
		return err
	}
	if err := c.deps.Orders.UpdateLines(ctx, plan.LineUpdates...); err != nil {
		return err
	}
	if len(plan.Movements) > 0 {
		if err := c.deps.Movements.Append(ctx, plan.Movements...); err != nil {
			return err
		}
	}
	for _, inc := range plan.CacheIncrements {
		if _, err := c.deps.Materials.AdjustQuantity(ctx, plan.Order.TenantID, inc.MaterialID, inc.Delta, false); err != nil {
			return err
		}
	}
	if err := c.deps.Orders.UpdateOrder(ctx, plan.Order); err != nil {
		return err
	}

	evs := make([]events.Event, 0, len(plan.Movements)+1)
	evs = append(evs, events.Event{
		AggregateType: "receipt",
		AggregateID:   plan.Receipt.ID,
		TenantID:      plan.Order.TenantID,
		Type:          events.ReceiptProcessed,
		Payload: map[string]any{
			"receipt":     plan.Receipt,
			"lines":       plan.Lines,
			"orderStatus": plan.Order.Status,
		},
	})
	for _, m := range plan.Movements {
		evs = append(evs, ledger.MovementEvent(m))
	}
	return c.deps.Publisher.Publish(ctx, evs...)
}

// GetReceipt returns a stored receipt with its lines.
func (c *Coordinator) GetReceipt(ctx context.Context, tenantID string, receiptID id.ID) (*Receipt, []ReceiptLine, error) {
	r, lines, err := c.deps.Receipts.GetReceipt(ctx, receiptID)
	if err != nil {
		return nil, nil, err
	}
	if r.TenantID != tenantID {
		return nil, nil, apperror.NewNotFound("receipt", receiptID.String())
	}
	return r, lines, nil
}
