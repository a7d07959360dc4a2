package events

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreevents "stockflow/internal/core/events"
	"stockflow/internal/core/id"
)

func testMessage() coreevents.Message {
	return coreevents.Message{
		ID:            id.New(),
		AggregateType: "receipt",
		AggregateID:   id.New(),
		TenantID:      "t1",
		Type:          coreevents.ReceiptProcessed,
		Payload:       []byte(`{"receiptId":"r1"}`),
		Attempt:       1,
		CreatedAt:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestWebhookSink_Delivers(t *testing.T) {
	var got envelope
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("X-Event-Type")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := NewWebhookSink(DefaultWebhookConfig(srv.URL))
	msg := testMessage()

	require.NoError(t, sink.Handle(context.Background(), msg))
	assert.Equal(t, coreevents.ReceiptProcessed, header)
	assert.Equal(t, msg.ID.String(), got.ID)
	assert.Equal(t, "t1", got.TenantID)
	assert.JSONEq(t, `{"receiptId":"r1"}`, string(got.Data))
}

func TestWebhookSink_OpensBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := DefaultWebhookConfig(srv.URL)
	cfg.FailureThreshold = 2
	cfg.OpenTimeout = time.Minute
	sink := NewWebhookSink(cfg)
	ctx := context.Background()

	assert.Error(t, sink.Handle(ctx, testMessage()))
	assert.Error(t, sink.Handle(ctx, testMessage()))
	assert.Equal(t, gobreaker.StateOpen, sink.State())

	err := sink.Handle(ctx, testMessage())
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLogSink(t *testing.T) {
	assert.NoError(t, LogSink{}.Handle(context.Background(), testMessage()))
}
