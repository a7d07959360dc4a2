package ledger

import (
	"slices"
	"time"

	"stockflow/internal/core/id"
)

// DefaultQueryLimit caps unpaged queries to bound projection cost.
// Callers needing exact totals over larger logs must page.
const DefaultQueryLimit = 1000

// MovementFilter selects movements. Empty sets match everything.
type MovementFilter struct {
	MaterialIDs []id.ID
	// LocationIDs matches movements touching a location on either side.
	LocationIDs []id.ID
	Types       []MovementType
	From        *time.Time
	To          *time.Time

	Limit  int
	Offset int
}

// Normalize applies the default limit and clamps out-of-range paging values.
func (f MovementFilter) Normalize() MovementFilter {
	if f.Limit <= 0 || f.Limit > DefaultQueryLimit {
		f.Limit = DefaultQueryLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Matches reports whether m passes the filter (paging is not considered).
func (f MovementFilter) Matches(m Movement) bool {
	if len(f.MaterialIDs) > 0 && !slices.Contains(f.MaterialIDs, m.MaterialID) {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, m.Type) {
		return false
	}
	if len(f.LocationIDs) > 0 {
		fromHit := m.FromLocationID != nil && slices.Contains(f.LocationIDs, *m.FromLocationID)
		toHit := m.ToLocationID != nil && slices.Contains(f.LocationIDs, *m.ToLocationID)
		if !fromHit && !toHit {
			return false
		}
	}
	if f.From != nil && m.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && m.CreatedAt.After(*f.To) {
		return false
	}
	return true
}
