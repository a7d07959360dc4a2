// Package purchasing holds the purchase-order aggregate and the material
// quantity cache. Both are mutated only by the receiving coordinator and the
// delivery workflow.
package purchasing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
)

// OrderStatus is the purchase order lifecycle state.
type OrderStatus string

const (
	OrderDraft             OrderStatus = "draft"
	OrderPendingApproval   OrderStatus = "pending_approval"
	OrderApproved          OrderStatus = "approved"
	OrderSent              OrderStatus = "sent"
	OrderPartiallyReceived OrderStatus = "partially_received"
	OrderFullyReceived     OrderStatus = "fully_received"
	OrderDelivered         OrderStatus = "delivered"
	OrderPartial           OrderStatus = "partial"
	OrderCancelled         OrderStatus = "cancelled"
)

// LineStatus is the receiving state of one order line.
type LineStatus string

const (
	LineOpen              LineStatus = "open"
	LinePartiallyReceived LineStatus = "partially_received"
	LineFullyReceived     LineStatus = "fully_received"
)

// PurchaseOrder is the mutable order header. Totals and status are derived
// from the lines after every receipt.
type PurchaseOrder struct {
	ID                    id.ID          `json:"id"`
	TenantID              string         `json:"tenantId"`
	PONumber              string         `json:"poNumber"`
	Status                OrderStatus    `json:"status"`
	TotalOrderedQuantity  types.Quantity `json:"totalOrderedQuantity"`
	TotalReceivedQuantity types.Quantity `json:"totalReceivedQuantity"`
	IsFullyReceived       bool           `json:"isFullyReceived"`
	CreatedAt             time.Time      `json:"createdAt"`
	UpdatedAt             time.Time      `json:"updatedAt"`
}

// Line tracks ordered vs. received quantity for one material.
// Invariant: ReceivedQuantity <= OrderedQuantity and
// RemainingQuantity = OrderedQuantity - ReceivedQuantity.
type Line struct {
	ID                id.ID          `json:"id"`
	OrderID           id.ID          `json:"orderId"`
	MaterialID        id.ID          `json:"materialId"`
	MaterialName      string         `json:"materialName"`
	OrderedQuantity   types.Quantity `json:"orderedQuantity"`
	ReceivedQuantity  types.Quantity `json:"receivedQuantity"`
	RemainingQuantity types.Quantity `json:"remainingQuantity"`
	Status            LineStatus     `json:"status"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// Receive returns the line after adding qty, or OverReceipt when the
// result would exceed the ordered quantity.
func (l Line) Receive(qty types.Quantity) (Line, error) {
	newReceived := l.ReceivedQuantity + qty
	if newReceived > l.OrderedQuantity {
		return l, apperror.NewOverReceipt(
			l.MaterialName,
			l.OrderedQuantity.Display(),
			l.ReceivedQuantity.Display(),
			qty.Display(),
		).WithDetail("poLineId", l.ID.String())
	}
	l.ReceivedQuantity = newReceived
	l.RemainingQuantity = l.OrderedQuantity - newReceived
	l.Status = DeriveLineStatus(l.RemainingQuantity)
	return l, nil
}

// DeriveLineStatus is fully_received iff nothing remains.
func DeriveLineStatus(remaining types.Quantity) LineStatus {
	if remaining == 0 {
		return LineFullyReceived
	}
	return LinePartiallyReceived
}

// DeriveReceivingStatus computes the order status from accumulated totals.
func DeriveReceivingStatus(totalOrdered, totalReceived types.Quantity) OrderStatus {
	switch {
	case totalReceived == 0:
		return OrderApproved
	case totalReceived >= totalOrdered:
		return OrderFullyReceived
	default:
		return OrderPartiallyReceived
	}
}

// Totals sums ordered and received quantities across lines.
func Totals(lines []Line) (ordered, received types.Quantity) {
	for _, l := range lines {
		ordered += l.OrderedQuantity
		received += l.ReceivedQuantity
	}
	return ordered, received
}

// ApplyReceiving recomputes totals and status from lines.
func (o *PurchaseOrder) ApplyReceiving(lines []Line) {
	o.TotalOrderedQuantity, o.TotalReceivedQuantity = Totals(lines)
	o.Status = DeriveReceivingStatus(o.TotalOrderedQuantity, o.TotalReceivedQuantity)
	o.IsFullyReceived = o.Status == OrderFullyReceived
}

// DeriveDeliveryStatus is delivered when every line has been delivered,
// partial when some have, and unchanged otherwise.
func DeriveDeliveryStatus(current OrderStatus, lines []Line, delivered map[id.ID]bool) OrderStatus {
	if len(lines) == 0 {
		return current
	}
	count := 0
	for _, l := range lines {
		if delivered[l.ID] {
			count++
		}
	}
	switch {
	case count == len(lines):
		return OrderDelivered
	case count > 0:
		return OrderPartial
	default:
		return current
	}
}

// Validate checks a new order and its lines.
func (o *PurchaseOrder) Validate(_ context.Context, lines []Line) error {
	if strings.TrimSpace(o.PONumber) == "" {
		return apperror.NewValidation("po number is required").WithDetail("field", "poNumber")
	}
	if len(lines) == 0 {
		return apperror.NewValidation("order must have at least one line").WithDetail("field", "lines")
	}
	for i, l := range lines {
		if id.IsNil(l.MaterialID) {
			return apperror.NewValidation("material is required").
				WithDetail("field", fmt.Sprintf("lines[%d].materialId", i))
		}
		if !l.OrderedQuantity.IsPositive() {
			return apperror.NewValidation("ordered quantity must be positive").
				WithDetail("field", fmt.Sprintf("lines[%d].orderedQuantity", i))
		}
		if l.ReceivedQuantity < 0 || l.ReceivedQuantity > l.OrderedQuantity {
			return apperror.NewValidation("received quantity out of range").
				WithDetail("field", fmt.Sprintf("lines[%d].receivedQuantity", i))
		}
	}
	return nil
}

// Material carries the cached on-hand quantity used by the purchasing UI.
// The ledger, not this cache, is the source of truth for stock.
type Material struct {
	ID              id.ID          `json:"id"`
	TenantID        string         `json:"tenantId"`
	Name            string         `json:"name"`
	CurrentQuantity types.Quantity `json:"currentQuantity"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}
