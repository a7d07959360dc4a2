package delivery

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/events"
	"stockflow/internal/core/id"
	"stockflow/internal/core/tx"
	"stockflow/internal/domain/audit"
	"stockflow/internal/domain/purchasing"
	"stockflow/pkg/logger"
)

var tracer = otel.Tracer("stockflow/delivery")

const defaultMaxAttempts = 3

// Deps groups the workflow's collaborators.
type Deps struct {
	Orders     purchasing.OrderRepository
	Materials  purchasing.MaterialRepository
	Deliveries Repository
	TxManager  tx.Manager
	Publisher  events.Publisher
	Auditor    audit.Recorder
}

// Workflow confirms deliveries and manages shipment issues.
type Workflow struct {
	deps        Deps
	maxAttempts int
	now         func() time.Time
}

// NewWorkflow creates a delivery workflow. maxAttempts <= 0 uses the default.
func NewWorkflow(deps Deps, maxAttempts int) *Workflow {
	if deps.Publisher == nil {
		deps.Publisher = events.Nop{}
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Workflow{
		deps:        deps,
		maxAttempts: maxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ConfirmDelivery records a dock confirmation.
//
// The delivery, its line items, any issues and the PO status commit in one
// transaction. Material cache adjustments run afterwards, one savepoint per
// material; a failing adjustment is logged and skipped, and the result
// reports InventoryUpdated=false.
func (w *Workflow) ConfirmDelivery(ctx context.Context, form Form, actorID string) (*ConfirmResult, error) {
	ctx, span := tracer.Start(ctx, "delivery.ConfirmDelivery")
	defer span.End()
	span.SetAttributes(
		attribute.String("po.id", form.PurchaseOrderID.String()),
		attribute.Int("delivery.items", len(form.Items)),
	)

	log := logger.FromContext(ctx).WithComponent("delivery")

	var (
		plan    *Plan
		skipped []id.ID
	)
	err := tx.WithRetry(ctx, w.maxAttempts, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			log.Warnw("delivery transaction aborted, retrying",
				"po_id", form.PurchaseOrderID,
				"attempt", attempt,
			)
		}
		return w.deps.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
			var err error
			plan, err = w.stage(ctx, form, actorID)
			if err != nil {
				return err
			}
			if err := w.applyRequired(ctx, plan); err != nil {
				return err
			}
			skipped = w.applyCache(ctx, plan)
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	req := plan.Required
	log.Infow("delivery confirmed",
		"delivery_id", req.Delivery.ID,
		"po_id", req.Order.ID,
		"delivery_status", req.Delivery.Status,
		"issues", len(req.Issues),
		"cache_skipped", len(skipped),
	)

	audit.Emit(ctx, w.deps.Auditor, audit.KindDeliveryConfirmed, actorID, map[string]any{
		"deliveryId":      req.Delivery.ID,
		"purchaseOrderId": req.Order.ID,
		"status":          req.Delivery.Status,
		"items":           len(req.Items),
	})
	for _, is := range req.Issues {
		audit.Emit(ctx, w.deps.Auditor, audit.KindIssueCreated, actorID, map[string]any{
			"issueId":    is.ID,
			"deliveryId": is.DeliveryID,
			"issueType":  is.IssueType,
		})
	}
	if plan.StatusChanged() {
		audit.Emit(ctx, w.deps.Auditor, audit.KindOrderStatusChanged, actorID, map[string]any{
			"purchaseOrderId": req.Order.ID,
			"from":            req.PreviousStatus,
			"to":              req.Order.Status,
		})
	}

	return &ConfirmResult{
		DeliveryID:       req.Delivery.ID,
		IssuesCreated:    len(req.Issues),
		InventoryUpdated: len(skipped) == 0,
		Issues:           req.Issues,
		SkippedMaterials: skipped,
	}, nil
}

func (w *Workflow) stage(ctx context.Context, form Form, actorID string) (*Plan, error) {
	order, lines, err := purchasing.LoadOrder(ctx, w.deps.Orders, form.TenantID, form.PurchaseOrderID)
	if err != nil {
		return nil, err
	}
	delivered, err := w.deps.Deliveries.DeliveredLineIDs(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return BuildPlan(*order, lines, delivered, form, actorID, w.now())
}

func (w *Workflow) applyRequired(ctx context.Context, plan *Plan) error {
	req := plan.Required
	if err := w.deps.Deliveries.CreateDelivery(ctx, req.Delivery, req.Items); err != nil {
		return err
	}
	if len(req.Issues) > 0 {
		if err := w.deps.Deliveries.CreateIssues(ctx, req.Issues...); err != nil {
			return err
		}
	}
	if plan.StatusChanged() {
		if err := w.deps.Orders.UpdateOrder(ctx, req.Order); err != nil {
			return err
		}
	}
	return w.deps.Publisher.Publish(ctx, events.Event{
		AggregateType: "delivery",
		AggregateID:   req.Delivery.ID,
		TenantID:      req.Delivery.TenantID,
		Type:          events.DeliveryConfirmed,
		Payload: map[string]any{
			"delivery":    req.Delivery,
			"items":       req.Items,
			"issues":      req.Issues,
			"orderStatus": req.Order.Status,
		},
	})
}

// applyCache runs each adjustment in its own savepoint and returns the
// materials whose adjustment was skipped.
func (w *Workflow) applyCache(ctx context.Context, plan *Plan) []id.ID {
	tenantID := plan.Required.Order.TenantID
	var skipped []id.ID
	for _, adj := range plan.CacheAdjustments {
		err := w.deps.TxManager.RunInSavepoint(ctx, func(ctx context.Context) error {
			_, err := w.deps.Materials.AdjustQuantity(ctx, tenantID, adj.MaterialID, adj.Delta, true)
			return err
		})
		if err != nil {
			skipped = append(skipped, adj.MaterialID)
			logger.Warn(ctx, "material quantity not updated",
				"material_id", adj.MaterialID,
				"material", adj.MaterialName,
				"delta", adj.Delta.Display(),
				"error", err,
			)
		}
	}
	return skipped
}

// ResolveIssue moves an open issue to resolved.
func (w *Workflow) ResolveIssue(ctx context.Context, tenantID string, issueID id.ID, notes, actorID string) (*Issue, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, apperror.NewValidation("resolution notes are required").WithDetail("field", "resolutionNotes")
	}

	var resolved *Issue
	err := tx.WithRetry(ctx, w.maxAttempts, func(ctx context.Context, _ int) error {
		return w.deps.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
			issue, err := w.deps.Deliveries.GetIssue(ctx, issueID)
			if err != nil {
				return err
			}
			if issue.TenantID != tenantID {
				return apperror.NewNotFound("shipment issue", issueID.String())
			}
			if issue.Status == IssueResolved {
				return apperror.NewConflict("shipment issue is already resolved").
					WithDetail("issueId", issueID.String())
			}

			now := w.now()
			issue.Status = IssueResolved
			issue.ResolvedBy = audit.ResolveActor(ctx, actorID)
			issue.ResolutionNotes = notes
			issue.ResolvedAt = &now
			if err := w.deps.Deliveries.UpdateIssue(ctx, *issue); err != nil {
				return err
			}
			resolved = issue
			return w.deps.Publisher.Publish(ctx, events.Event{
				AggregateType: "shipment_issue",
				AggregateID:   issue.ID,
				TenantID:      issue.TenantID,
				Type:          events.IssueResolved,
				Payload:       issue,
			})
		})
	})
	if err != nil {
		return nil, err
	}

	audit.Emit(ctx, w.deps.Auditor, audit.KindIssueResolved, actorID, map[string]any{
		"issueId":    resolved.ID,
		"deliveryId": resolved.DeliveryID,
	})
	return resolved, nil
}

// ListIssues returns the tenant's issues, newest first.
func (w *Workflow) ListIssues(ctx context.Context, tenantID string, filter IssueFilter) ([]Issue, error) {
	if filter.Status != "" && filter.Status != IssueOpen && filter.Status != IssueResolved {
		return nil, apperror.NewValidation("unknown issue status").WithDetail("status", string(filter.Status))
	}
	return w.deps.Deliveries.ListIssues(ctx, tenantID, filter)
}
