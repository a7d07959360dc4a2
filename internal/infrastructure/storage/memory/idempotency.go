package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/idempotency"
)

var _ idempotency.Store = (*IdempotencyStore)(nil)

type idempotencyRecord struct {
	userID, operation, hash string
	status                  idempotency.Status
	replay                  idempotency.Replay
	updatedAt               time.Time
	expiresAt               time.Time
}

// IdempotencyStore keeps idempotency keys in memory.
type IdempotencyStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	keys map[string]*idempotencyRecord
	now  func() time.Time
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		ttl:  ttl,
		keys: make(map[string]*idempotencyRecord),
		now:  time.Now,
	}
}

func (s *IdempotencyStore) AcquireKey(_ context.Context, key, userID, operation, requestHash string) (*idempotency.Replay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, ok := s.keys[key]
	if ok && now.After(rec.expiresAt) {
		delete(s.keys, key)
		ok = false
	}
	if !ok {
		s.keys[key] = &idempotencyRecord{
			userID:    userID,
			operation: operation,
			hash:      requestHash,
			status:    idempotency.StatusPending,
			updatedAt: now,
			expiresAt: now.Add(s.ttl),
		}
		return nil, nil
	}

	if rec.userID != userID || rec.operation != operation || rec.hash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key)
	}
	if rec.status != idempotency.StatusPending {
		r := rec.replay
		r.Body = slices.Clone(r.Body)
		return idempotency.NormalizeReplay(&r), nil
	}
	if now.Sub(rec.updatedAt) <= idempotency.StaleAfter {
		return nil, apperror.NewIdempotencyConflict(key)
	}
	rec.updatedAt = now
	return nil, nil
}

func (s *IdempotencyStore) CompleteKey(_ context.Context, key string, statusCode int, contentType string, body []byte) error {
	s.finish(key, idempotency.StatusSuccess, statusCode, contentType, body)
	return nil
}

func (s *IdempotencyStore) FailKey(_ context.Context, key string, statusCode int, contentType string, body []byte) error {
	s.finish(key, idempotency.StatusFailed, statusCode, contentType, body)
	return nil
}

func (s *IdempotencyStore) finish(key string, status idempotency.Status, statusCode int, contentType string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.keys[key]; ok {
		rec.status = status
		rec.replay = idempotency.Replay{StatusCode: statusCode, ContentType: contentType, Body: slices.Clone(body)}
		rec.updatedAt = s.now()
	}
}

func (s *IdempotencyStore) ReleaseKey(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.keys[key]; ok && rec.status == idempotency.StatusPending {
		delete(s.keys, key)
	}
	return nil
}
