package memory

import (
	"context"
	"slices"

	"stockflow/internal/domain/ledger"
)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	s *Store
}

func (r *LedgerRepo) Append(ctx context.Context, movements ...ledger.Movement) error {
	return r.s.write(ctx, func(d *state) error {
		d.movements = append(d.movements, movements...)
		return nil
	})
}

func (r *LedgerRepo) Query(ctx context.Context, tenantID string, filter ledger.MovementFilter) ([]ledger.Movement, error) {
	var out []ledger.Movement
	r.s.read(ctx, func(d *state) {
		for _, m := range d.movements {
			if m.TenantID == tenantID && filter.Matches(m) {
				out = append(out, m)
			}
		}
	})

	slices.SortStableFunc(out, func(a, b ledger.Movement) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})

	if filter.Offset >= len(out) {
		return []ledger.Movement{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
