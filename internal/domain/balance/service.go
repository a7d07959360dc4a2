package balance

import (
	"context"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/core/tx"
	"stockflow/internal/domain/ledger"
	"stockflow/pkg/logger"
)

// MovementSource is the read side of the movement store.
type MovementSource interface {
	Query(ctx context.Context, tenantID string, filter ledger.MovementFilter) ([]ledger.Movement, error)
}

// LocationNamer resolves location display names.
type LocationNamer interface {
	Names(ctx context.Context, tenantID string) (map[id.ID]string, error)
}

// Service computes balances on demand.
type Service struct {
	movements MovementSource
	locations LocationNamer
	txManager tx.Manager
	limit     int
}

func NewService(movements MovementSource, locations LocationNamer, txManager tx.Manager) *Service {
	return &Service{
		movements: movements,
		locations: locations,
		txManager: txManager,
		limit:     ledger.DefaultQueryLimit,
	}
}

// WithMovementLimit lowers the replay cap. Values outside
// (0, ledger.DefaultQueryLimit] keep the default.
func (s *Service) WithMovementLimit(n int) *Service {
	if n > 0 && n <= ledger.DefaultQueryLimit {
		s.limit = n
	}
	return s
}

// Result is one balance projection.
type Result struct {
	Balances []MaterialBalance
	// Truncated is set when the tenant has more matching movements than the
	// replay cap. Balances then cover only the oldest movements.
	Truncated bool
}

// Calculate replays the tenant's movement log into balances.
//
// At most the movement limit (ledger.DefaultQueryLimit unless lowered with
// WithMovementLimit) is replayed, oldest first. When more movements match,
// the result is marked Truncated and a warning is logged. The movement read
// and the location lookup share one read-only view of committed data.
func (s *Service) Calculate(ctx context.Context, tenantID string, f Filter) (Result, error) {
	if tenantID == "" {
		return Result{}, apperror.NewUnauthorized("tenant is required")
	}
	if f.Expression != "" {
		if _, err := CompileExpression(f.Expression); err != nil {
			return Result{}, err
		}
	}

	var (
		movements []ledger.Movement
		names     map[id.ID]string
		truncated bool
	)
	err := s.txManager.ReadOnly(ctx, func(ctx context.Context) error {
		filter := ledger.MovementFilter{
			MaterialIDs: f.MaterialIDs,
			LocationIDs: f.LocationIDs,
			Limit:       s.limit,
		}
		var err error
		movements, err = s.movements.Query(ctx, tenantID, filter.Normalize())
		if err != nil {
			return err
		}
		if len(movements) >= s.limit {
			filter.Offset = s.limit
			filter.Limit = 1
			rest, err := s.movements.Query(ctx, tenantID, filter.Normalize())
			if err != nil {
				return err
			}
			truncated = len(rest) > 0
		}

		names, err = s.locations.Names(ctx, tenantID)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	if truncated {
		logger.Warn(ctx, "balance projection hit movement cap",
			"tenant_id", tenantID,
			"limit", s.limit,
		)
	}

	balances, err := Project(movements, names, f)
	if err != nil {
		return Result{}, err
	}
	return Result{Balances: balances, Truncated: truncated}, nil
}
