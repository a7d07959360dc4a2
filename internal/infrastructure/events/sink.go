// Package events delivers relayed outbox messages to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	coreevents "stockflow/internal/core/events"
	"stockflow/pkg/logger"
)

// ErrCircuitOpen is returned while the webhook breaker rejects calls.
var ErrCircuitOpen = errors.New("event webhook circuit breaker is open")

// WebhookConfig configures the webhook sink.
type WebhookConfig struct {
	URL     string
	Secret  string
	Timeout time.Duration
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
}

// DefaultWebhookConfig returns defaults for url.
func DefaultWebhookConfig(url string) WebhookConfig {
	return WebhookConfig{
		URL:              url,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

type envelope struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	TenantID      string          `json:"tenantId"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Attempt       int             `json:"attempt"`
	Data          json.RawMessage `json:"data"`
}

// WebhookSink POSTs each message as JSON. Calls go through a circuit
// breaker so a dead endpoint fails fast instead of holding relay batches.
type WebhookSink struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
	url     string
}

var _ coreevents.Handler = (*WebhookSink)(nil)

func NewWebhookSink(cfg WebhookConfig) *WebhookSink {
	client := resty.New().
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)
	if cfg.Secret != "" {
		client.SetAuthToken(cfg.Secret)
	}

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "event-webhook",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &WebhookSink{client: client, breaker: breaker, url: cfg.URL}
}

// Handle delivers msg. Any non-2xx response is an error so the relay retries.
func (s *WebhookSink) Handle(ctx context.Context, msg coreevents.Message) error {
	body := envelope{
		ID:            msg.ID.String(),
		Type:          msg.Type,
		TenantID:      msg.TenantID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID.String(),
		OccurredAt:    msg.CreatedAt,
		Attempt:       msg.Attempt,
		Data:          json.RawMessage(msg.Payload),
	}

	_, err := s.breaker.Execute(func() (any, error) {
		resp, err := s.client.R().
			SetContext(ctx).
			SetHeader("X-Event-ID", body.ID).
			SetHeader("X-Event-Type", body.Type).
			SetBody(body).
			Post(s.url)
		if err != nil {
			return nil, fmt.Errorf("post event: %w", err)
		}
		if resp.StatusCode() >= http.StatusMultipleChoices {
			return nil, fmt.Errorf("event webhook returned %d", resp.StatusCode())
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// State reports the breaker state.
func (s *WebhookSink) State() gobreaker.State {
	return s.breaker.State()
}

// LogSink writes messages to the application log. Used when no webhook
// is configured.
type LogSink struct{}

var _ coreevents.Handler = LogSink{}

func (LogSink) Handle(ctx context.Context, msg coreevents.Message) error {
	logger.Info(ctx, "event relayed",
		"event_id", msg.ID,
		"event_type", msg.Type,
		"tenant_id", msg.TenantID,
		"aggregate_type", msg.AggregateType,
		"aggregate_id", msg.AggregateID,
		"attempt", msg.Attempt,
	)
	return nil
}
