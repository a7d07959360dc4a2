package dto

import (
	"time"

	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/balance"
	"stockflow/internal/domain/ledger"
)

// CreateMovementRequest appends a manual movement. Receipts are recorded
// through the receiving endpoint only.
type CreateMovementRequest struct {
	MaterialID     string         `json:"materialId" validate:"required,uuid"`
	MaterialName   string         `json:"materialName" validate:"max=200"`
	MovementType   string         `json:"movementType" validate:"required,oneof=transfer adjustment usage return loss sale"`
	Quantity       types.Quantity `json:"quantity" validate:"positive_qty"`
	FromLocationID string         `json:"fromLocationId" validate:"omitempty,uuid"`
	ToLocationID   string         `json:"toLocationId" validate:"omitempty,uuid"`
	Notes          string         `json:"notes" validate:"max=2000"`
}

// ToMovement maps the request. Validate must have passed.
func (r CreateMovementRequest) ToMovement() ledger.Movement {
	return ledger.Movement{
		MaterialID:     id.MustParse(r.MaterialID),
		MaterialName:   r.MaterialName,
		Type:           ledger.MovementType(r.MovementType),
		Quantity:       r.Quantity,
		FromLocationID: optionalID(r.FromLocationID),
		ToLocationID:   optionalID(r.ToLocationID),
		Notes:          r.Notes,
	}
}

// MovementQuery is bound from GET /inventory/movements.
type MovementQuery struct {
	MaterialIDs []string   `form:"material_id"`
	LocationIDs []string   `form:"location_id"`
	Types       []string   `form:"type"`
	From        *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To          *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit       int        `form:"limit"`
	Offset      int        `form:"offset"`
}

// BalanceResponse lists projected balances. Truncated reports that only
// the oldest movements fit under the replay cap.
type BalanceResponse struct {
	ListResponse[balance.MaterialBalance]
	Truncated bool `json:"truncated"`
}

func NewBalanceResponse(r balance.Result) BalanceResponse {
	return BalanceResponse{
		ListResponse: NewListResponse(r.Balances),
		Truncated:    r.Truncated,
	}
}

// BalanceQuery is bound from GET /inventory/balances.
type BalanceQuery struct {
	LocationIDs []string `form:"location_id"`
	MaterialIDs []string `form:"material_id"`
	Search      string   `form:"search"`
	ShowZero    bool     `form:"show_zero"`
	Expr        string   `form:"expr"`
}

func optionalID(s string) *id.ID {
	if s == "" {
		return nil
	}
	v := id.MustParse(s)
	return &v
}
