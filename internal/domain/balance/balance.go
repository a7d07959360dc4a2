// Package balance derives stock levels by replaying ledger movements.
//
// Balances are never stored. Project is a pure function of the movement
// list, the location names and the filter, so the same input always yields
// the same output.
package balance

import (
	"time"

	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
)

// UnknownLocation labels balances whose location is missing from the registry.
const UnknownLocation = "Unknown location"

// MaterialBalance is the derived quantity of one material at one location.
// Quantity may be negative when the movement log is inconsistent; that is a
// data-quality signal and is never clamped.
type MaterialBalance struct {
	MaterialID       id.ID          `json:"materialId"`
	MaterialName     string         `json:"materialName"`
	LocationID       id.ID          `json:"locationId"`
	LocationName     string         `json:"locationName"`
	Quantity         types.Quantity `json:"quantity"`
	LastMovementDate time.Time      `json:"lastMovementDate"`
}

// Filter narrows projected balances. Empty sets match everything.
type Filter struct {
	LocationIDs []id.ID
	MaterialIDs []id.ID
	// Search is a case-insensitive substring of material or location name.
	Search string
	// ShowZeroQuantity keeps balances with quantity <= 0.
	ShowZeroQuantity bool
	// Expression is an optional CEL predicate, see CompileExpression.
	Expression string
}
