package ledger

import (
	"context"
	"time"

	"stockflow/internal/core/apperror"
	appctx "stockflow/internal/core/context"
	"stockflow/internal/core/events"
	"stockflow/internal/core/id"
	"stockflow/internal/core/tx"
	"stockflow/internal/domain/audit"
	"stockflow/pkg/logger"
)

// Service is the movement record store.
type Service struct {
	repo      Repository
	txManager tx.Manager
	publisher events.Publisher
	auditor   audit.Recorder
	now       func() time.Time
}

// NewService creates a movement store service. A nil auditor disables
// audit records.
func NewService(repo Repository, txManager tx.Manager, publisher events.Publisher, auditor audit.Recorder) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		repo:      repo,
		txManager: txManager,
		publisher: publisher,
		auditor:   auditor,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Append validates and stores a single movement, returning its id.
// Tenant and user default to the request actor.
func (s *Service) Append(ctx context.Context, m Movement) (id.ID, error) {
	if m.TenantID == "" {
		m.TenantID = appctx.GetTenantID(ctx)
	}
	if m.UserID == "" {
		m.UserID = appctx.GetUserID(ctx)
	}
	if m.TenantID == "" {
		return id.Nil(), apperror.NewUnauthorized("tenant is required")
	}
	if id.IsNil(m.ID) {
		m.ID = id.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	if m.ReferenceType == "" {
		m.ReferenceType = RefManual
	}

	if err := m.Validate(ctx); err != nil {
		return id.Nil(), err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Append(ctx, m); err != nil {
			return err
		}
		return s.publisher.Publish(ctx, MovementEvent(m))
	})
	if err != nil {
		return id.Nil(), err
	}

	logger.Info(ctx, "movement appended",
		"movement_id", m.ID,
		"movement_type", m.Type,
		"material_id", m.MaterialID,
		"quantity", m.Quantity.String(),
	)
	audit.Emit(ctx, s.auditor, audit.KindMovementAppended, m.UserID, map[string]any{
		"movement_id":   m.ID.String(),
		"movement_type": string(m.Type),
		"material_id":   m.MaterialID.String(),
		"quantity":      m.Quantity.String(),
	})

	return m.ID, nil
}

// Query returns movements for a tenant. Unpaged queries are capped at
// DefaultQueryLimit.
func (s *Service) Query(ctx context.Context, tenantID string, filter MovementFilter) ([]Movement, error) {
	if tenantID == "" {
		return nil, apperror.NewUnauthorized("tenant is required")
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, apperror.NewValidation("date range is inverted").
			WithDetail("from", filter.From).
			WithDetail("to", filter.To)
	}
	for _, t := range filter.Types {
		if !t.Valid() {
			return nil, apperror.NewValidation("unknown movement type").WithDetail("movementType", string(t))
		}
	}
	return s.repo.Query(ctx, tenantID, filter.Normalize())
}

// MovementEvent builds the outbox event for a recorded movement.
func MovementEvent(m Movement) events.Event {
	return events.Event{
		AggregateType: "inventory_movement",
		AggregateID:   m.ID,
		TenantID:      m.TenantID,
		Type:          events.MovementRecorded,
		Payload:       m,
	}
}
