// Package delivery reconciles physical deliveries against purchase orders.
//
// A confirmation has two outcomes. The required one (delivery, line items,
// issues, PO status) commits atomically. The optional one (material cache
// adjustments) is applied per material and may fail independently without
// losing the delivery record.
package delivery

import (
	"context"
	"time"

	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
)

// LineStatus is the dock outcome for one delivered line.
type LineStatus string

const (
	LineOK      LineStatus = "ok"
	LineShort   LineStatus = "short"
	LineOver    LineStatus = "over"
	LineDamaged LineStatus = "damaged"
)

func (s LineStatus) Valid() bool {
	switch s {
	case LineOK, LineShort, LineOver, LineDamaged:
		return true
	}
	return false
}

// Status is derived from the line statuses and never set directly.
type Status string

const (
	StatusPending   Status = "pending"
	StatusIssues    Status = "issues"
	StatusConfirmed Status = "confirmed"
)

// IssueType mirrors the non-ok line statuses.
type IssueType string

const (
	IssueShort   IssueType = "short"
	IssueOver    IssueType = "over"
	IssueDamaged IssueType = "damaged"
)

// IssueStatus is the resolution lifecycle: open -> resolved.
type IssueStatus string

const (
	IssueOpen     IssueStatus = "open"
	IssueResolved IssueStatus = "resolved"
)

// Delivery is the immutable record of a dock confirmation.
type Delivery struct {
	ID              id.ID     `json:"id"`
	TenantID        string    `json:"tenantId"`
	PurchaseOrderID id.ID     `json:"purchaseOrderId"`
	Status          Status    `json:"status"`
	ConfirmedBy     string    `json:"confirmedBy"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// LineItem pairs an expected quantity with what actually arrived.
type LineItem struct {
	ID                id.ID          `json:"id"`
	DeliveryID        id.ID          `json:"deliveryId"`
	POLineID          id.ID          `json:"poLineItemId"`
	MaterialID        id.ID          `json:"materialId"`
	MaterialName      string         `json:"materialName"`
	ExpectedQuantity  types.Quantity `json:"expectedQuantity"`
	ActualQuantity    types.Quantity `json:"actualQuantity"`
	Status            LineStatus     `json:"status,omitempty"`
	DamageDescription string         `json:"damageDescription,omitempty"`
}

// Delivered reports whether the item counts toward the order being delivered.
// An item needs a status and a positive actual quantity; a line reported
// with nothing received (for example short with actual 0) does not count.
func (li LineItem) Delivered() bool {
	return li.Status != "" && li.ActualQuantity.IsPositive()
}

// Issue records a discrepancy on one delivered line.
type Issue struct {
	ID                 id.ID          `json:"id"`
	TenantID           string         `json:"tenantId"`
	DeliveryID         id.ID          `json:"deliveryId"`
	DeliveryLineItemID id.ID          `json:"deliveryLineItemId"`
	PurchaseOrderID    id.ID          `json:"purchaseOrderId"`
	MaterialID         id.ID          `json:"materialId"`
	MaterialName       string         `json:"materialName"`
	IssueType          IssueType      `json:"issueType"`
	ExpectedQuantity   types.Quantity `json:"expectedQuantity"`
	ActualQuantity     types.Quantity `json:"actualQuantity"`
	QuantityDifference types.Quantity `json:"quantityDifference"`
	Description        string         `json:"description"`
	Status             IssueStatus    `json:"status"`
	CreatedBy          string         `json:"createdBy"`
	CreatedAt          time.Time      `json:"createdAt"`
	ResolvedBy         string         `json:"resolvedBy,omitempty"`
	ResolutionNotes    string         `json:"resolutionNotes,omitempty"`
	ResolvedAt         *time.Time     `json:"resolvedAt,omitempty"`
}

// Form is a delivery confirmation submitted from the dock.
type Form struct {
	TenantID        string
	PurchaseOrderID id.ID
	Notes           string
	Items           []FormItem
}

// FormItem reports one PO line. An empty Status leaves the delivery pending.
type FormItem struct {
	POLineID          id.ID
	ActualQuantity    types.Quantity
	Status            LineStatus
	DamageDescription string
}

// ConfirmResult is returned after the required commit.
// InventoryUpdated is false if any cache adjustment was skipped.
type ConfirmResult struct {
	DeliveryID       id.ID `json:"deliveryId"`
	IssuesCreated    int   `json:"issuesCreated"`
	InventoryUpdated bool  `json:"inventoryUpdated"`

	// Issues are the discrepancies opened by this delivery.
	Issues []Issue `json:"issues,omitempty"`
	// SkippedMaterials lists materials whose cached quantity was not adjusted.
	SkippedMaterials []id.ID `json:"skippedMaterials,omitempty"`
}

// IssueFilter selects issues for listing.
type IssueFilter struct {
	Status          IssueStatus
	PurchaseOrderID *id.ID
}

// Repository stores deliveries and issues.
type Repository interface {
	CreateDelivery(ctx context.Context, d Delivery, items []LineItem) error
	CreateIssues(ctx context.Context, issues ...Issue) error
	// DeliveredLineIDs returns PO line ids that already have a delivered
	// line item in an earlier delivery of the order.
	DeliveredLineIDs(ctx context.Context, orderID id.ID) (map[id.ID]bool, error)
	GetIssue(ctx context.Context, issueID id.ID) (*Issue, error)
	UpdateIssue(ctx context.Context, issue Issue) error
	ListIssues(ctx context.Context, tenantID string, filter IssueFilter) ([]Issue, error)
}
