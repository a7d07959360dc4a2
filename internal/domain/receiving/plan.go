package receiving

import (
	"context"
	"fmt"
	"slices"
	"time"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/ledger"
	"stockflow/internal/domain/purchasing"
)

// CacheIncrement adds Delta to a material's cached quantity.
type CacheIncrement struct {
	MaterialID id.ID
	Delta      types.Quantity
}

// Plan is every write a receipt makes, staged before anything is persisted.
type Plan struct {
	Receipt         Receipt
	Lines           []ReceiptLine
	LineUpdates     []purchasing.Line
	Movements       []ledger.Movement
	CacheIncrements []CacheIncrement
	Order           purchasing.PurchaseOrder
	PreviousStatus  purchasing.OrderStatus
}

// StatusChanged reports whether the receipt moves the order to a new status.
func (p *Plan) StatusChanged() bool {
	return p.PreviousStatus != p.Order.Status
}

// BuildPlan validates req against the order and its current lines and
// stages the resulting writes. It performs no I/O.
func BuildPlan(order purchasing.PurchaseOrder, lines []purchasing.Line, req Request, actorID string, now time.Time) (*Plan, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	plan := &Plan{
		Receipt: Receipt{
			ID:              id.New(),
			TenantID:        order.TenantID,
			PurchaseOrderID: order.ID,
			LocationID:      req.LocationID,
			Status:          ReceiptPending,
			ReceivedBy:      actorID,
			Notes:           req.Notes,
			CreatedAt:       now,
		},
		PreviousStatus: order.Status,
	}

	// Working copies so several items against one line accumulate.
	working := make(map[id.ID]purchasing.Line, len(lines))
	for _, l := range lines {
		working[l.ID] = l
	}
	var touched []id.ID

	for _, item := range req.Items {
		line, ok := working[item.POLineID]
		if !ok {
			return nil, apperror.NewNotFound("purchase order line", item.POLineID.String())
		}

		updated, err := line.Receive(item.ReceivedQuantity)
		if err != nil {
			return nil, err
		}
		updated.UpdatedAt = now
		if !slices.Contains(touched, line.ID) {
			touched = append(touched, line.ID)
		}
		working[line.ID] = updated

		quality := item.QualityStatus
		if quality == "" {
			quality = QualityAccepted
		}

		plan.Lines = append(plan.Lines, ReceiptLine{
			ID:               id.New(),
			ReceiptID:        plan.Receipt.ID,
			POLineID:         line.ID,
			MaterialID:       line.MaterialID,
			MaterialName:     line.MaterialName,
			ReceivedQuantity: item.ReceivedQuantity,
			QualityStatus:    quality,
			Notes:            item.Notes,
			CreatedAt:        now,
		})

		if quality != QualityAccepted {
			continue
		}

		to := req.LocationID
		refID := plan.Receipt.ID
		mv := ledger.Movement{
			ID:            id.New(),
			TenantID:      order.TenantID,
			MaterialID:    line.MaterialID,
			MaterialName:  line.MaterialName,
			Type:          ledger.TypeReceipt,
			Quantity:      item.ReceivedQuantity,
			ToLocationID:  &to,
			ReferenceType: ledger.RefReceipt,
			ReferenceID:   &refID,
			Notes:         fmt.Sprintf("PO %s", order.PONumber),
			CreatedAt:     now,
			UserID:        actorID,
		}
		if err := mv.Validate(context.Background()); err != nil {
			return nil, err
		}
		plan.Movements = append(plan.Movements, mv)
		plan.CacheIncrements = append(plan.CacheIncrements, CacheIncrement{
			MaterialID: line.MaterialID,
			Delta:      item.ReceivedQuantity,
		})
	}

	for _, lineID := range touched {
		plan.LineUpdates = append(plan.LineUpdates, working[lineID])
	}

	final := make([]purchasing.Line, 0, len(lines))
	for _, l := range lines {
		final = append(final, working[l.ID])
	}
	plan.Order = order
	plan.Order.ApplyReceiving(final)
	plan.Order.UpdatedAt = now
	plan.Receipt.Status = ReceiptCompleted

	return plan, nil
}

func validateRequest(req Request) error {
	if len(req.Items) == 0 {
		return apperror.NewValidation("receipt must contain at least one line").WithDetail("field", "items")
	}
	needsLocation := false
	for i, item := range req.Items {
		if !item.ReceivedQuantity.IsPositive() {
			return apperror.NewValidation("received quantity must be positive").
				WithDetail("field", fmt.Sprintf("items[%d].receivedQuantity", i))
		}
		if item.QualityStatus != "" && !item.QualityStatus.Valid() {
			return apperror.NewValidation("unknown quality status").
				WithDetail("field", fmt.Sprintf("items[%d].qualityStatus", i)).
				WithDetail("qualityStatus", string(item.QualityStatus))
		}
		if item.QualityStatus == "" || item.QualityStatus == QualityAccepted {
			needsLocation = true
		}
	}
	if needsLocation && id.IsNil(req.LocationID) {
		return apperror.NewValidation("receiving location is required for accepted lines").
			WithDetail("field", "locationId")
	}
	return nil
}
