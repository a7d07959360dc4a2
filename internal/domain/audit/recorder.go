// Package audit defines the audit emitter the engine reports to after commit.
//
// The engine never depends on the audit sink for correctness: Emit logs a
// failed write and carries on, so a committed receipt or delivery is never
// reported to the caller as failed because of auditing.
package audit

import (
	"context"

	appctx "stockflow/internal/core/context"
	"stockflow/pkg/logger"
)

// Kind names an audited event.
type Kind string

const (
	KindReceiptProcessed   Kind = "receipt.processed"
	KindOrderStatusChanged Kind = "purchase_order.status_changed"
	KindDeliveryConfirmed  Kind = "delivery.confirmed"
	KindIssueCreated       Kind = "shipment_issue.created"
	KindIssueResolved      Kind = "shipment_issue.resolved"
	KindMovementAppended   Kind = "inventory.movement_appended"
)

// Recorder is the audit sink.
type Recorder interface {
	RecordEvent(ctx context.Context, kind Kind, actorID string, payload any) error
}

// Emit records an event and swallows any failure after logging it.
func Emit(ctx context.Context, r Recorder, kind Kind, actorID string, payload any) {
	if r == nil {
		return
	}
	if err := r.RecordEvent(ctx, kind, ResolveActor(ctx, actorID), payload); err != nil {
		logger.Warn(ctx, "audit event not recorded",
			"event_kind", kind,
			"actor_id", actorID,
			"error", err,
		)
	}
}

// ResolveActor falls back to the request user when actorID is empty.
func ResolveActor(ctx context.Context, actorID string) string {
	if actorID != "" {
		return actorID
	}
	return appctx.GetUserID(ctx)
}

// LogRecorder writes audit events to the application log.
type LogRecorder struct{}

func (LogRecorder) RecordEvent(ctx context.Context, kind Kind, actorID string, payload any) error {
	logger.Info(ctx, "audit event", "event_kind", kind, "actor_id", actorID, "payload", payload)
	return nil
}
