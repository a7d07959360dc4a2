package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "stockflow/internal/core/context"
	"stockflow/internal/core/id"
	"stockflow/internal/domain/audit"
)

var _ audit.Recorder = (*AuditStore)(nil)

// CompressionAlgo specifies the compression algorithm used for a payload.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the payload size above which payloads are
// stored zstd-compressed.
const DefaultCompressThreshold = 4 * 1024

// AuditEntry is one row of sys_audit.
type AuditEntry struct {
	ID                id.ID           `db:"id"`
	TenantID          string          `db:"tenant_id"`
	Kind              audit.Kind      `db:"kind"`
	ActorID           string          `db:"actor_id"`
	RequestID         string          `db:"request_id"`
	Payload           json.RawMessage `db:"payload"`
	PayloadCompressed []byte          `db:"payload_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditStore writes audit events to sys_audit.
type AuditStore struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewAuditStore creates an audit store. threshold <= 0 uses
// DefaultCompressThreshold.
func NewAuditStore(txManager *TxManager, threshold int) (*AuditStore, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	return &AuditStore{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: threshold,
	}, nil
}

// RecordEvent implements audit.Recorder. It runs after the audited
// transaction has committed, so it writes through the pool.
func (s *AuditStore) RecordEvent(ctx context.Context, kind audit.Kind, actorID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	entry := AuditEntry{
		ID:        id.New(),
		TenantID:  appctx.GetTenantID(ctx),
		Kind:      kind,
		ActorID:   actorID,
		RequestID: appctx.GetRequestID(ctx),
		CreatedAt: time.Now().UTC(),
	}
	s.encode(&entry, raw)

	_, err = s.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_audit (
			id, tenant_id, kind, actor_id, request_id,
			payload, payload_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		entry.ID, entry.TenantID, entry.Kind, entry.ActorID, entry.RequestID,
		entry.Payload, entry.PayloadCompressed, entry.CompressionAlgo, entry.CreatedAt,
	)
	return TranslateError(err)
}

func (s *AuditStore) encode(entry *AuditEntry, raw []byte) {
	entry.CompressionAlgo = CompressionNone
	if len(raw) > s.compressThreshold {
		entry.PayloadCompressed = s.encoder.EncodeAll(raw, nil)
		entry.CompressionAlgo = CompressionZstd
		return
	}
	entry.Payload = raw
}

func (s *AuditStore) decode(entry *AuditEntry) error {
	if entry.CompressionAlgo != CompressionZstd || len(entry.PayloadCompressed) == 0 {
		return nil
	}
	raw, err := s.decoder.DecodeAll(entry.PayloadCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress audit payload: %w", err)
	}
	entry.Payload = raw
	entry.PayloadCompressed = nil
	return nil
}

// History returns the latest audit entries of a tenant, newest first.
// An empty kind matches every kind.
func (s *AuditStore) History(ctx context.Context, tenantID string, kind audit.Kind, limit int) ([]AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, `
		SELECT id, tenant_id, kind, actor_id, request_id,
		       payload, payload_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE tenant_id = $1 AND ($2::text = '' OR kind = $2::text)
		ORDER BY created_at DESC
		LIMIT $3
	`, tenantID, string(kind), limit)
	if err != nil {
		return nil, TranslateError(fmt.Errorf("query audit history: %w", err))
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(
			&e.ID, &e.TenantID, &e.Kind, &e.ActorID, &e.RequestID,
			&e.Payload, &e.PayloadCompressed, &e.CompressionAlgo, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if err := s.decode(&e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
