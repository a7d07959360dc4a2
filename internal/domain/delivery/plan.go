package delivery

import (
	"fmt"
	"strings"
	"time"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/purchasing"
)

// Required holds the writes that must commit together.
type Required struct {
	Delivery       Delivery
	Items          []LineItem
	Issues         []Issue
	Order          purchasing.PurchaseOrder
	PreviousStatus purchasing.OrderStatus
}

// CacheAdjustment adds the delivered total of one material to its cached
// quantity, floored at zero.
type CacheAdjustment struct {
	MaterialID   id.ID
	MaterialName string
	Delta        types.Quantity
}

// Plan is a confirmation split into its required and best-effort parts.
type Plan struct {
	Required         Required
	CacheAdjustments []CacheAdjustment
}

// StatusChanged reports whether the order moves to a new status.
func (p *Plan) StatusChanged() bool {
	return p.Required.PreviousStatus != p.Required.Order.Status
}

// DeriveStatus is pending while any line lacks a status, issues when any
// line is not ok, confirmed otherwise.
func DeriveStatus(items []LineItem) Status {
	hasIssue := false
	for _, it := range items {
		if it.Status == "" {
			return StatusPending
		}
		if it.Status != LineOK {
			hasIssue = true
		}
	}
	if hasIssue {
		return StatusIssues
	}
	return StatusConfirmed
}

// Describe renders the fixed issue description for a line.
func Describe(status LineStatus, expected, actual types.Quantity, damage string) string {
	switch status {
	case LineShort:
		return fmt.Sprintf("Short delivery: Expected %s, received %s", expected.Display(), actual.Display())
	case LineOver:
		return fmt.Sprintf("Over delivery: Expected %s, received %s", expected.Display(), actual.Display())
	case LineDamaged:
		return fmt.Sprintf("Damaged goods: %s", strings.TrimSpace(damage))
	}
	return ""
}

// BuildPlan validates the form against the order and stages every write.
// Validation happens before anything is staged, so a rejected form leaves
// no partial records. It performs no I/O.
func BuildPlan(
	order purchasing.PurchaseOrder,
	lines []purchasing.Line,
	alreadyDelivered map[id.ID]bool,
	form Form,
	actorID string,
	now time.Time,
) (*Plan, error) {
	if len(form.Items) == 0 {
		return nil, apperror.NewValidation("delivery must contain at least one line").WithDetail("field", "items")
	}

	byID := make(map[id.ID]purchasing.Line, len(lines))
	for _, l := range lines {
		byID[l.ID] = l
	}

	deliveryID := id.New()
	items := make([]LineItem, 0, len(form.Items))
	for i, fi := range form.Items {
		line, ok := byID[fi.POLineID]
		if !ok {
			return nil, apperror.NewNotFound("purchase order line", fi.POLineID.String())
		}
		item := LineItem{
			ID:                id.New(),
			DeliveryID:        deliveryID,
			POLineID:          line.ID,
			MaterialID:        line.MaterialID,
			MaterialName:      line.MaterialName,
			ExpectedQuantity:  line.OrderedQuantity,
			ActualQuantity:    fi.ActualQuantity,
			Status:            fi.Status,
			DamageDescription: strings.TrimSpace(fi.DamageDescription),
		}
		if err := validateItem(i, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	plan := &Plan{
		Required: Required{
			Delivery: Delivery{
				ID:              deliveryID,
				TenantID:        order.TenantID,
				PurchaseOrderID: order.ID,
				Status:          DeriveStatus(items),
				ConfirmedBy:     actorID,
				Notes:           form.Notes,
				CreatedAt:       now,
			},
			Items:          items,
			Order:          order,
			PreviousStatus: order.Status,
		},
	}

	delivered := make(map[id.ID]bool, len(alreadyDelivered)+len(items))
	for k, v := range alreadyDelivered {
		delivered[k] = v
	}

	totals := make(map[id.ID]*CacheAdjustment)
	var materialOrder []id.ID
	for _, it := range items {
		if it.Delivered() {
			delivered[it.POLineID] = true
		}

		if it.Status != "" && it.Status != LineOK {
			plan.Required.Issues = append(plan.Required.Issues, Issue{
				ID:                 id.New(),
				TenantID:           order.TenantID,
				DeliveryID:         deliveryID,
				DeliveryLineItemID: it.ID,
				PurchaseOrderID:    order.ID,
				MaterialID:         it.MaterialID,
				MaterialName:       it.MaterialName,
				IssueType:          IssueType(it.Status),
				ExpectedQuantity:   it.ExpectedQuantity,
				ActualQuantity:     it.ActualQuantity,
				QuantityDifference: it.ActualQuantity - it.ExpectedQuantity,
				Description:        Describe(it.Status, it.ExpectedQuantity, it.ActualQuantity, it.DamageDescription),
				Status:             IssueOpen,
				CreatedBy:          actorID,
				CreatedAt:          now,
			})
		}

		adj, ok := totals[it.MaterialID]
		if !ok {
			adj = &CacheAdjustment{MaterialID: it.MaterialID, MaterialName: it.MaterialName}
			totals[it.MaterialID] = adj
			materialOrder = append(materialOrder, it.MaterialID)
		}
		adj.Delta += it.ActualQuantity
	}

	for _, mid := range materialOrder {
		plan.CacheAdjustments = append(plan.CacheAdjustments, *totals[mid])
	}

	next := purchasing.DeriveDeliveryStatus(order.Status, lines, delivered)
	if next != order.Status {
		plan.Required.Order.Status = next
		plan.Required.Order.UpdatedAt = now
	}

	return plan, nil
}

func validateItem(i int, it LineItem) error {
	field := func(name string) string { return fmt.Sprintf("items[%d].%s", i, name) }

	if it.ActualQuantity.IsNegative() {
		return apperror.NewValidation("actual quantity cannot be negative").
			WithDetail("field", field("actualQuantity"))
	}
	if it.Status != "" && !it.Status.Valid() {
		return apperror.NewValidation("unknown delivery line status").
			WithDetail("field", field("status")).
			WithDetail("status", string(it.Status))
	}

	switch it.Status {
	case LineDamaged:
		if it.DamageDescription == "" {
			return apperror.NewValidation("damaged lines require a damage description").
				WithDetail("field", field("damageDescription"))
		}
	case LineShort:
		if it.ActualQuantity >= it.ExpectedQuantity {
			return apperror.NewValidation("short lines require actual quantity below expected").
				WithDetail("field", field("actualQuantity")).
				WithDetail("expected", it.ExpectedQuantity.Display()).
				WithDetail("actual", it.ActualQuantity.Display())
		}
	case LineOver:
		if it.ActualQuantity <= it.ExpectedQuantity {
			return apperror.NewValidation("over lines require actual quantity above expected").
				WithDetail("field", field("actualQuantity")).
				WithDetail("expected", it.ExpectedQuantity.Display()).
				WithDetail("actual", it.ActualQuantity.Display())
		}
	}
	return nil
}
