package ledger

import (
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
)

// direction says which location sides a movement type touches.
// from: quantity leaves FromLocationID. to: quantity arrives at ToLocationID.
// anyOf: at least one enabled side must be set (instead of all of them).
type direction struct {
	from  bool
	to    bool
	anyOf bool
}

// An adjustment with both sides set is applied two-sided (-from, +to).
var directions = map[MovementType]direction{
	TypeReceipt:    {to: true},
	TypeReturn:     {to: true},
	TypeUsage:      {from: true},
	TypeLoss:       {from: true},
	TypeSale:       {from: true},
	TypeTransfer:   {from: true, to: true},
	TypeAdjustment: {from: true, to: true, anyOf: true},
}

// Effect is a signed change to one (material, location) balance.
type Effect struct {
	LocationID id.ID
	Delta      types.Quantity
}

// Effects returns the signed per-location changes of m.
// Sides the movement type does not touch are ignored even when set.
func (m Movement) Effects() []Effect {
	d, ok := directions[m.Type]
	if !ok {
		return nil
	}

	effects := make([]Effect, 0, 2)
	if d.from && m.FromLocationID != nil && !id.IsNil(*m.FromLocationID) {
		effects = append(effects, Effect{LocationID: *m.FromLocationID, Delta: m.Quantity.Neg()})
	}
	if d.to && m.ToLocationID != nil && !id.IsNil(*m.ToLocationID) {
		effects = append(effects, Effect{LocationID: *m.ToLocationID, Delta: m.Quantity})
	}
	return effects
}
