package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"stockflow/internal/core/events"
	"stockflow/internal/core/id"
	"stockflow/pkg/logger"
)

var _ events.Publisher = (*OutboxPublisher)(nil)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// MaxOutboxRetries is the number of failed deliveries after which a
// message is marked failed and becomes eligible for the DLQ.
const MaxOutboxRetries = 5

var outboxColumns = []string{
	"id", "tenant_id", "aggregate_type", "aggregate_id", "event_type", "payload", "status", "created_at",
}

// OutboxMessage is one row of sys_outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	TenantID      string       `db:"tenant_id"`
	AggregateType string       `db:"aggregate_type"`
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"`
	Payload       []byte       `db:"payload"`
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

func (m *OutboxMessage) toEvent() events.Message {
	return events.Message{
		ID:            m.ID,
		AggregateType: m.AggregateType,
		AggregateID:   m.AggregateID,
		TenantID:      m.TenantID,
		Type:          m.EventType,
		Payload:       m.Payload,
		Attempt:       m.RetryCount + 1,
		CreatedAt:     m.CreatedAt,
	}
}

// OutboxPublisher writes events to the outbox table in the caller's
// transaction.
type OutboxPublisher struct {
	batch *BatchWriter
}

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{batch: NewBatchWriter(txManager)}
}

// Publish implements events.Publisher. MUST be called inside a transaction.
func (p *OutboxPublisher) Publish(ctx context.Context, evs ...events.Event) error {
	if len(evs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([][]any, 0, len(evs))
	for _, ev := range evs {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", ev.Type, err)
		}
		rows = append(rows, []any{
			id.New(), ev.TenantID, ev.AggregateType, ev.AggregateID, ev.Type, payload, OutboxStatusPending, now,
		})
	}
	_, err := p.batch.CopyRows(ctx, "sys_outbox", outboxColumns, rows)
	return err
}

// OutboxRelay claims pending messages and hands them to a handler.
// Used by the background worker.
type OutboxRelay struct {
	txManager *TxManager
	batchSize int
	lease     time.Duration
	handler   events.Handler
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(txManager *TxManager, batchSize int, handler events.Handler) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		txManager: txManager,
		batchSize: batchSize,
		lease:     5 * time.Minute,
		handler:   handler,
	}
}

// RelayResult summarizes one ProcessBatch run.
type RelayResult struct {
	Claimed   int
	Published int
	Failed    int
}

// ProcessBatch claims up to batchSize due messages and delivers them.
// Claimed rows get a lease so concurrent workers skip them.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (RelayResult, error) {
	var (
		res      RelayResult
		messages []*OutboxMessage
	)

	err := r.txManager.RunInTransactionWithOptions(ctx, readCommitted(r.txManager.opts), func(ctx context.Context) error {
		q := r.txManager.GetQuerier(ctx)
		if err := pgxscan.Select(ctx, q, &messages, `
			SELECT id, tenant_id, aggregate_type, aggregate_id, event_type, payload, status,
			       retry_count, last_error, next_retry_at, created_at, published_at
			FROM sys_outbox
			WHERE status = $1
			  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		`, OutboxStatusPending, r.batchSize); err != nil {
			return fmt.Errorf("fetch outbox messages: %w", err)
		}
		if len(messages) == 0 {
			return nil
		}
		ids := make([]id.ID, len(messages))
		for i, m := range messages {
			ids[i] = m.ID
		}
		_, err := q.Exec(ctx, `UPDATE sys_outbox SET next_retry_at = $1 WHERE id = ANY($2)`,
			time.Now().UTC().Add(r.lease), ids)
		return err
	})
	if err != nil {
		return res, TranslateError(err)
	}
	res.Claimed = len(messages)

	for _, msg := range messages {
		if err := r.processMessage(ctx, msg); err != nil {
			res.Failed++
			logger.Warn(ctx, "outbox delivery failed",
				"message_id", msg.ID,
				"event_type", msg.EventType,
				"attempt", msg.RetryCount+1,
				"error", err,
			)
			continue
		}
		res.Published++
	}
	return res, nil
}

// processMessage handles a single outbox message.
func (r *OutboxRelay) processMessage(ctx context.Context, msg *OutboxMessage) error {
	q := r.txManager.GetQuerier(ctx)
	handleErr := r.handler.Handle(ctx, msg.toEvent())
	if handleErr != nil {
		nextRetry := time.Now().UTC().Add(backoff(msg.RetryCount))
		_, err := q.Exec(ctx, `
			UPDATE sys_outbox
			SET retry_count = retry_count + 1,
			    last_error = $1,
			    next_retry_at = $2,
			    status = CASE WHEN retry_count + 1 >= $3 THEN $4 ELSE status END
			WHERE id = $5
		`, handleErr.Error(), nextRetry, MaxOutboxRetries, OutboxStatusFailed, msg.ID)
		if err != nil {
			return fmt.Errorf("update failed message: %w", err)
		}
		return handleErr
	}

	_, err := q.Exec(ctx, `
		UPDATE sys_outbox
		SET status = $1, published_at = $2, next_retry_at = NULL
		WHERE id = $3
	`, OutboxStatusPublished, time.Now().UTC(), msg.ID)
	return err
}

// backoff grows linearly with the attempt count, capped at one hour.
func backoff(retries int) time.Duration {
	d := time.Duration(retries+1) * time.Minute
	if d > time.Hour {
		return time.Hour
	}
	return d
}

func readCommitted(opts TxOptions) TxOptions {
	opts.IsolationLevel = pgx.ReadCommitted
	return opts
}

// MoveToDLQ moves failed messages to the dead letter table.
func (r *OutboxRelay) MoveToDLQ(ctx context.Context) (int64, error) {
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		WITH moved AS (
			DELETE FROM sys_outbox
			WHERE status = $1
			RETURNING *
		)
		INSERT INTO sys_outbox_dlq
		SELECT *, NOW() AS failed_at, last_error AS failure_reason FROM moved
	`, OutboxStatusFailed)
	if err != nil {
		return 0, TranslateError(fmt.Errorf("move to DLQ: %w", err))
	}
	return result.RowsAffected(), nil
}

// PurgePublished deletes published messages older than age.
func (r *OutboxRelay) PurgePublished(ctx context.Context, age time.Duration) (int64, error) {
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_outbox WHERE status = $1 AND published_at < $2
	`, OutboxStatusPublished, time.Now().UTC().Add(-age))
	if err != nil {
		return 0, TranslateError(err)
	}
	return result.RowsAffected(), nil
}
