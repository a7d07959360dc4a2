// Package receiving implements the PO receiving transaction.
//
// A receipt is planned as an explicit set of staged writes (Plan) from a
// consistent read of the order, then applied inside one serializable
// transaction. Any failure discards every write of the receipt.
package receiving

import (
	"context"
	"time"

	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
)

// QualityStatus is the inspection outcome of a received line.
// Only accepted lines reach the stock ledger.
type QualityStatus string

const (
	QualityAccepted          QualityStatus = "accepted"
	QualityRejected          QualityStatus = "rejected"
	QualityPendingInspection QualityStatus = "pending_inspection"
)

func (q QualityStatus) Valid() bool {
	switch q {
	case QualityAccepted, QualityRejected, QualityPendingInspection:
		return true
	}
	return false
}

// ReceiptStatus tracks the receipt header.
type ReceiptStatus string

const (
	ReceiptPending   ReceiptStatus = "pending"
	ReceiptCompleted ReceiptStatus = "completed"
)

// Receipt is the immutable record of one receiving event against a PO.
type Receipt struct {
	ID              id.ID         `json:"id"`
	TenantID        string        `json:"tenantId"`
	PurchaseOrderID id.ID         `json:"purchaseOrderId"`
	LocationID      id.ID         `json:"locationId"`
	Status          ReceiptStatus `json:"status"`
	ReceivedBy      string        `json:"receivedBy"`
	Notes           string        `json:"notes,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// ReceiptLine references exactly one PO line.
type ReceiptLine struct {
	ID               id.ID          `json:"id"`
	ReceiptID        id.ID          `json:"receiptId"`
	POLineID         id.ID          `json:"poLineId"`
	MaterialID       id.ID          `json:"materialId"`
	MaterialName     string         `json:"materialName"`
	ReceivedQuantity types.Quantity `json:"receivedQuantity"`
	QualityStatus    QualityStatus  `json:"qualityStatus"`
	Notes            string         `json:"notes,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// Request is a receipt submission against one purchase order.
type Request struct {
	TenantID        string
	PurchaseOrderID id.ID
	// LocationID is where accepted goods are put away.
	LocationID id.ID
	Notes      string
	Items      []RequestItem
}

// RequestItem receives a quantity against one PO line.
// An empty QualityStatus means accepted.
type RequestItem struct {
	POLineID         id.ID
	ReceivedQuantity types.Quantity
	QualityStatus    QualityStatus
	Notes            string
}

// Result is returned by a committed receipt.
type Result struct {
	ReceiptID id.ID `json:"receiptId"`
}

// Repository stores receipts.
type Repository interface {
	CreateReceipt(ctx context.Context, receipt Receipt, lines []ReceiptLine) error
	GetReceipt(ctx context.Context, receiptID id.ID) (*Receipt, []ReceiptLine, error)
}
