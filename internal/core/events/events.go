// Package events defines domain events written through the transactional outbox.
package events

import (
	"context"
	"time"

	"stockflow/internal/core/id"
)

// Event types emitted by the engine.
const (
	MovementRecorded  = "inventory.movement_recorded"
	ReceiptProcessed  = "receipt.processed"
	DeliveryConfirmed = "delivery.confirmed"
	IssueResolved     = "shipment_issue.resolved"
)

// Event is a fact about a committed change, delivered at least once.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	TenantID      string
	Type          string
	Payload       any
}

// Publisher stages events in the caller's transaction.
// Events become visible only if that transaction commits.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, ...Event) error { return nil }

// Message is a stored event handed to a Handler by the outbox relay.
type Message struct {
	ID            id.ID
	AggregateType string
	AggregateID   id.ID
	TenantID      string
	Type          string
	Payload       []byte
	Attempt       int
	CreatedAt     time.Time
}

// Handler delivers a message downstream. A returned error schedules a retry.
type Handler interface {
	Handle(ctx context.Context, msg Message) error
}
