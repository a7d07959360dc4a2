// Package idempotency defines the key store behind the X-Idempotency-Key
// header. A key binds one user, one operation and one request body; a
// repeated request replays the stored response instead of running again.
package idempotency

import (
	"context"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Status of an idempotent operation.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// StaleAfter is how long a pending key may be held before another request
// may reclaim it.
const StaleAfter = time.Minute

// Replay is a stored HTTP response.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store persists idempotency keys.
type Store interface {
	// AcquireKey returns (nil, nil) when the caller now owns the key,
	// a Replay when the operation already finished, and an
	// IdempotencyConflict/Mismatch error otherwise.
	AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*Replay, error)
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
	FailKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
	// ReleaseKey forgets a pending key so the request can be retried.
	ReleaseKey(ctx context.Context, key string) error
}

// HashRequest fingerprints a request body.
func HashRequest(body []byte) string {
	sum := blake2b.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// NormalizeReplay fills defaults for records stored without metadata.
func NormalizeReplay(r *Replay) *Replay {
	if r.StatusCode == 0 {
		r.StatusCode = 200
	}
	if r.ContentType == "" {
		r.ContentType = "application/json"
	}
	return r
}
