package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/domain/balance"
	"stockflow/internal/domain/ledger"
	"stockflow/internal/domain/purchasing"
	"stockflow/internal/infrastructure/http/v1/dto"
)

// MaterialLookup resolves material names for manual movements.
type MaterialLookup interface {
	GetMaterial(ctx context.Context, tenantID string, materialID id.ID) (*purchasing.Material, error)
}

// InventoryHandler serves balances and the movement log.
type InventoryHandler struct {
	*BaseHandler
	ledger    *ledger.Service
	balances  *balance.Service
	materials MaterialLookup
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(base *BaseHandler, ledgerSvc *ledger.Service, balances *balance.Service, materials MaterialLookup) *InventoryHandler {
	return &InventoryHandler{
		BaseHandler: base,
		ledger:      ledgerSvc,
		balances:    balances,
		materials:   materials,
	}
}

// GetBalances handles GET /inventory/balances
func (h *InventoryHandler) GetBalances(c *gin.Context) {
	var q dto.BalanceQuery
	if !h.BindQuery(c, &q) {
		return
	}
	locationIDs, ok := h.ParseIDs(c, "location_id", q.LocationIDs)
	if !ok {
		return
	}
	materialIDs, ok := h.ParseIDs(c, "material_id", q.MaterialIDs)
	if !ok {
		return
	}

	result, err := h.balances.Calculate(c.Request.Context(), h.GetTenantID(c), balance.Filter{
		LocationIDs:      locationIDs,
		MaterialIDs:      materialIDs,
		Search:           q.Search,
		ShowZeroQuantity: q.ShowZero,
		Expression:       q.Expr,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewBalanceResponse(result))
}

// GetMovements handles GET /inventory/movements
func (h *InventoryHandler) GetMovements(c *gin.Context) {
	var q dto.MovementQuery
	if !h.BindQuery(c, &q) {
		return
	}
	materialIDs, ok := h.ParseIDs(c, "material_id", q.MaterialIDs)
	if !ok {
		return
	}
	locationIDs, ok := h.ParseIDs(c, "location_id", q.LocationIDs)
	if !ok {
		return
	}
	movementTypes := make([]ledger.MovementType, 0, len(q.Types))
	for _, raw := range q.Types {
		t, err := ledger.ParseMovementType(raw)
		if err != nil {
			h.Error(c, err)
			return
		}
		movementTypes = append(movementTypes, t)
	}

	filter := ledger.MovementFilter{
		MaterialIDs: materialIDs,
		LocationIDs: locationIDs,
		Types:       movementTypes,
		From:        q.From,
		To:          q.To,
		Limit:       q.Limit,
		Offset:      q.Offset,
	}
	movements, err := h.ledger.Query(c.Request.Context(), h.GetTenantID(c), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	if movements == nil {
		movements = []ledger.Movement{}
	}

	page := filter.Normalize()
	h.OK(c, dto.PageResponse[ledger.Movement]{Items: movements, Limit: page.Limit, Offset: page.Offset})
}

// CreateMovement handles POST /inventory/movements
func (h *InventoryHandler) CreateMovement(c *gin.Context) {
	var req dto.CreateMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	m := req.ToMovement()
	m.TenantID = h.GetTenantID(c)
	m.UserID = h.GetUserID(c)
	if m.MaterialName == "" {
		material, err := h.materials.GetMaterial(ctx, m.TenantID, m.MaterialID)
		if err != nil {
			if apperror.IsNotFound(err) {
				err = apperror.NewValidation("unknown material").WithDetail("materialId", m.MaterialID.String())
			}
			h.Error(c, err)
			return
		}
		m.MaterialName = material.Name
	}

	movementID, err := h.ledger.Append(ctx, m)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.NewIDResponse(movementID))
}
