// Package ledger implements the append-only inventory movement log.
//
// Movements are immutable. Stock levels are never stored here; they are
// derived by replaying movements (see package balance).
package ledger

import (
	"context"
	"fmt"
	"time"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
)

// MovementType is the closed set of stock-affecting event kinds.
type MovementType string

const (
	TypeReceipt    MovementType = "receipt"
	TypeTransfer   MovementType = "transfer"
	TypeAdjustment MovementType = "adjustment"
	TypeUsage      MovementType = "usage"
	TypeReturn     MovementType = "return"
	TypeLoss       MovementType = "loss"
	TypeSale       MovementType = "sale"
)

// MovementTypes lists every movement type in a stable order.
func MovementTypes() []MovementType {
	return []MovementType{
		TypeReceipt, TypeTransfer, TypeAdjustment,
		TypeUsage, TypeReturn, TypeLoss, TypeSale,
	}
}

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	_, ok := directions[t]
	return ok
}

// ParseMovementType converts a stored or submitted value.
func ParseMovementType(s string) (MovementType, error) {
	t := MovementType(s)
	if !t.Valid() {
		return "", apperror.NewValidation("unknown movement type").WithDetail("movementType", s)
	}
	return t, nil
}

// Reference types used by the engine itself.
const (
	RefReceipt  = "receipt"
	RefDelivery = "delivery"
	RefManual   = "manual"
)

// Movement is one immutable, quantity-affecting event.
type Movement struct {
	ID             id.ID          `json:"id"`
	TenantID       string         `json:"tenantId"`
	MaterialID     id.ID          `json:"materialId"`
	MaterialName   string         `json:"materialName"`
	Type           MovementType   `json:"movementType"`
	Quantity       types.Quantity `json:"quantity"`
	FromLocationID *id.ID         `json:"fromLocationId,omitempty"`
	ToLocationID   *id.ID         `json:"toLocationId,omitempty"`
	ReferenceType  string         `json:"referenceType,omitempty"`
	ReferenceID    *id.ID         `json:"referenceId,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UserID         string         `json:"userId"`
}

// Validate checks the movement's own invariants: positive quantity, a known
// type and the location sides its type requires.
func (m *Movement) Validate(_ context.Context) error {
	if !m.Type.Valid() {
		return apperror.NewValidation("unknown movement type").
			WithDetail("movementType", string(m.Type))
	}
	if !m.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("quantity", m.Quantity.Display())
	}
	if id.IsNil(m.MaterialID) {
		return apperror.NewValidation("material is required").WithDetail("field", "materialId")
	}

	d := directions[m.Type]
	hasFrom := m.FromLocationID != nil && !id.IsNil(*m.FromLocationID)
	hasTo := m.ToLocationID != nil && !id.IsNil(*m.ToLocationID)

	if d.anyOf {
		if !hasFrom && !hasTo {
			return apperror.NewValidation(fmt.Sprintf("%s requires a from or to location", m.Type)).
				WithDetail("movementType", string(m.Type))
		}
	} else {
		if d.from && !hasFrom {
			return apperror.NewValidation(fmt.Sprintf("%s requires a from location", m.Type)).
				WithDetail("field", "fromLocationId")
		}
		if d.to && !hasTo {
			return apperror.NewValidation(fmt.Sprintf("%s requires a to location", m.Type)).
				WithDetail("field", "toLocationId")
		}
	}

	if d.from && d.to && hasFrom && hasTo && *m.FromLocationID == *m.ToLocationID {
		return apperror.NewValidation("from and to locations must differ").
			WithDetail("movementType", string(m.Type)).
			WithDetail("locationId", m.FromLocationID.String())
	}

	return nil
}
