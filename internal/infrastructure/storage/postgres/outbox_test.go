package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stockflow/internal/core/id"
)

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Minute, backoff(0))
	assert.Equal(t, 3*time.Minute, backoff(2))
	assert.Equal(t, time.Hour, backoff(500))
}

func TestOutboxMessage_ToEvent(t *testing.T) {
	msg := OutboxMessage{
		ID:          id.New(),
		TenantID:    "t1",
		EventType:   "receipt.processed",
		AggregateID: id.New(),
		Payload:     []byte(`{}`),
		RetryCount:  2,
	}
	ev := msg.toEvent()
	assert.Equal(t, 3, ev.Attempt)
	assert.Equal(t, "t1", ev.TenantID)
	assert.Equal(t, msg.EventType, ev.Type)
}
