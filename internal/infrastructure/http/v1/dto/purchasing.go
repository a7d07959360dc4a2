package dto

import (
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/delivery"
	"stockflow/internal/domain/receiving"
)

// ReceiptRequest is posted to /purchase-orders/:id/receipts.
type ReceiptRequest struct {
	LocationID string               `json:"locationId" validate:"required,uuid"`
	Notes      string               `json:"notes" validate:"max=2000"`
	Items      []ReceiptItemRequest `json:"items" validate:"required,min=1,dive"`
}

// ReceiptItemRequest receives against one PO line.
type ReceiptItemRequest struct {
	POLineID         string         `json:"poLineId" validate:"required,uuid"`
	ReceivedQuantity types.Quantity `json:"receivedQuantity" validate:"positive_qty"`
	QualityStatus    string         `json:"qualityStatus" validate:"omitempty,oneof=accepted rejected pending_inspection"`
	Notes            string         `json:"notes" validate:"max=2000"`
}

// ToRequest maps the body. Validate must have passed.
func (r ReceiptRequest) ToRequest(tenantID string, orderID id.ID) receiving.Request {
	req := receiving.Request{
		TenantID:        tenantID,
		PurchaseOrderID: orderID,
		LocationID:      id.MustParse(r.LocationID),
		Notes:           r.Notes,
		Items:           make([]receiving.RequestItem, len(r.Items)),
	}
	for i, it := range r.Items {
		req.Items[i] = receiving.RequestItem{
			POLineID:         id.MustParse(it.POLineID),
			ReceivedQuantity: it.ReceivedQuantity,
			QualityStatus:    receiving.QualityStatus(it.QualityStatus),
			Notes:            it.Notes,
		}
	}
	return req
}

// DeliveryRequest is posted to /purchase-orders/:id/deliveries.
type DeliveryRequest struct {
	Notes string                `json:"notes" validate:"max=2000"`
	Items []DeliveryItemRequest `json:"items" validate:"required,min=1,dive"`
}

// DeliveryItemRequest reports one PO line. An empty status leaves the
// delivery pending.
type DeliveryItemRequest struct {
	POLineItemID      string         `json:"poLineItemId" validate:"required,uuid"`
	ActualQuantity    types.Quantity `json:"actualQuantity" validate:"nonneg_qty"`
	Status            string         `json:"status" validate:"omitempty,oneof=ok short over damaged"`
	DamageDescription string         `json:"damageDescription" validate:"max=2000"`
}

// ToForm maps the body. Validate must have passed.
func (r DeliveryRequest) ToForm(tenantID string, orderID id.ID) delivery.Form {
	form := delivery.Form{
		TenantID:        tenantID,
		PurchaseOrderID: orderID,
		Notes:           r.Notes,
		Items:           make([]delivery.FormItem, len(r.Items)),
	}
	for i, it := range r.Items {
		form.Items[i] = delivery.FormItem{
			POLineID:          id.MustParse(it.POLineItemID),
			ActualQuantity:    it.ActualQuantity,
			Status:            delivery.LineStatus(it.Status),
			DamageDescription: it.DamageDescription,
		}
	}
	return form
}

// ResolveIssueRequest resolves a shipment issue.
type ResolveIssueRequest struct {
	ResolutionNotes string `json:"resolutionNotes" validate:"required,max=2000"`
}
