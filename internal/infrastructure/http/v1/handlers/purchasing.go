package handlers

import (
	"github.com/gin-gonic/gin"

	"stockflow/internal/core/apperror"
	"stockflow/internal/domain/delivery"
	"stockflow/internal/domain/purchasing"
	"stockflow/internal/domain/receiving"
	"stockflow/internal/infrastructure/http/v1/dto"
	"stockflow/internal/infrastructure/metrics"
)

// PurchasingHandler serves purchase orders, receipts, deliveries and
// shipment issues.
type PurchasingHandler struct {
	*BaseHandler
	orders    *purchasing.Service
	receiving *receiving.Coordinator
	delivery  *delivery.Workflow
	metrics   *metrics.Metrics
}

// NewPurchasingHandler creates a new purchasing handler. m may be nil.
func NewPurchasingHandler(
	base *BaseHandler,
	orders *purchasing.Service,
	coordinator *receiving.Coordinator,
	workflow *delivery.Workflow,
	m *metrics.Metrics,
) *PurchasingHandler {
	return &PurchasingHandler{
		BaseHandler: base,
		orders:      orders,
		receiving:   coordinator,
		delivery:    workflow,
		metrics:     m,
	}
}

// GetOrder handles GET /purchase-orders/:id
func (h *PurchasingHandler) GetOrder(c *gin.Context) {
	orderID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	view, err := h.orders.GetOrder(c.Request.Context(), h.GetTenantID(c), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, view)
}

// GetMaterial handles GET /materials/:id
func (h *PurchasingHandler) GetMaterial(c *gin.Context) {
	materialID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	m, err := h.orders.GetMaterial(c.Request.Context(), h.GetTenantID(c), materialID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, m)
}

// CreateReceipt handles POST /purchase-orders/:id/receipts
func (h *PurchasingHandler) CreateReceipt(c *gin.Context) {
	orderID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var body dto.ReceiptRequest
	if !h.BindJSON(c, &body) {
		return
	}

	result, err := h.receiving.ProcessReceipt(c.Request.Context(), body.ToRequest(h.GetTenantID(c), orderID), h.GetUserID(c))
	if err != nil {
		h.metrics.RecordReceipt(receiptResult(err))
		h.Error(c, err)
		return
	}
	h.metrics.RecordReceipt(metrics.ResultSuccess)
	h.Created(c, result)
}

func receiptResult(err error) string {
	switch {
	case apperror.IsOverReceipt(err):
		return metrics.ResultOverReceipt
	case apperror.IsTransactionAborted(err):
		return metrics.ResultAborted
	default:
		return metrics.ResultError
	}
}

// GetReceipt handles GET /receipts/:id
func (h *PurchasingHandler) GetReceipt(c *gin.Context) {
	receiptID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	receipt, lines, err := h.receiving.GetReceipt(c.Request.Context(), h.GetTenantID(c), receiptID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"receipt": receipt, "lines": lines})
}

// ConfirmDelivery handles POST /purchase-orders/:id/deliveries
func (h *PurchasingHandler) ConfirmDelivery(c *gin.Context) {
	orderID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var body dto.DeliveryRequest
	if !h.BindJSON(c, &body) {
		return
	}

	result, err := h.delivery.ConfirmDelivery(c.Request.Context(), body.ToForm(h.GetTenantID(c), orderID), h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	for _, is := range result.Issues {
		h.metrics.RecordIssue(string(is.IssueType))
	}
	h.metrics.RecordCacheFailures(len(result.SkippedMaterials))
	h.Created(c, result)
}

// ListIssues handles GET /shipment-issues
func (h *PurchasingHandler) ListIssues(c *gin.Context) {
	filter := delivery.IssueFilter{Status: delivery.IssueStatus(c.Query("status"))}
	if raw := c.Query("purchase_order_id"); raw != "" {
		ids, ok := h.ParseIDs(c, "purchase_order_id", []string{raw})
		if !ok {
			return
		}
		filter.PurchaseOrderID = &ids[0]
	}

	issues, err := h.delivery.ListIssues(c.Request.Context(), h.GetTenantID(c), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(issues))
}

// ResolveIssue handles POST /shipment-issues/:id/resolve
func (h *PurchasingHandler) ResolveIssue(c *gin.Context) {
	issueID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var body dto.ResolveIssueRequest
	if !h.BindJSON(c, &body) {
		return
	}

	issue, err := h.delivery.ResolveIssue(c.Request.Context(), h.GetTenantID(c), issueID, body.ResolutionNotes, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, issue)
}
