// Package numerator provides PostgreSQL implementation of document auto-numbering.
// This is the infrastructure layer - it implements core/numerator.Generator interface.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "stockflow/internal/core/numerator"
	"stockflow/internal/infrastructure/storage/postgres"
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type cachedRange struct {
	current int64
	max     int64
}

// Service provides document numbering functionality using PostgreSQL.
type Service struct {
	querier func(ctx context.Context) Querier
	opts    corenumerator.Options

	// cacheMu protects ranges map
	cacheMu sync.Mutex
	// ranges stores active ranges keyed by tenant and sequence key
	ranges map[string]*cachedRange
}

// Ensure compile-time interface compliance.
var _ corenumerator.Generator = (*Service)(nil)

// New creates a numerator that runs on the transaction in ctx, or on the
// pool outside one. Nil opts means strict numbering.
func New(txManager *postgres.TxManager, opts *corenumerator.Options) *Service {
	return newService(func(ctx context.Context) Querier { return txManager.GetQuerier(ctx) }, opts)
}

// NewWithQuerier creates a numerator over a fixed querier.
func NewWithQuerier(q Querier, opts *corenumerator.Options) *Service {
	return newService(func(context.Context) Querier { return q }, opts)
}

func newService(querier func(ctx context.Context) Querier, opts *corenumerator.Options) *Service {
	if opts == nil {
		opts = corenumerator.DefaultOptions()
	}
	return &Service{
		querier: querier,
		opts:    *opts,
		ranges:  make(map[string]*cachedRange),
	}
}

// Next generates the next number for tenantID.
// Pattern: PREFIX-YEAR-XXXXX (e.g., PO-2026-00001)
func (s *Service) Next(ctx context.Context, tenantID string, cfg corenumerator.Config, period time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}

	key := corenumerator.Key(cfg, period)
	var (
		num int64
		err error
	)
	switch s.opts.Strategy {
	case corenumerator.StrategyCached:
		num, err = s.nextCached(ctx, tenantID, key)
	default:
		num, err = s.reserve(ctx, tenantID, key, 1)
	}
	if err != nil {
		return "", err
	}
	return corenumerator.Format(cfg, period, num), nil
}

// reserve bumps the stored sequence by n and returns the new last value.
func (s *Service) reserve(ctx context.Context, tenantID, key string, n int64) (int64, error) {
	var last int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (tenant_id, key, current_val)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, key) DO UPDATE SET current_val = sys_sequences.current_val + $3
		RETURNING current_val
	`, tenantID, key, n).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("reserve sequence %s: %w", key, postgres.TranslateError(err))
	}
	return last, nil
}

// nextCached serves numbers from memory, reserving a new range when the
// current one is used up. Numbers of an unused range are lost on restart.
func (s *Service) nextCached(ctx context.Context, tenantID, key string) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	cacheKey := tenantID + ":" + key
	rng, exists := s.ranges[cacheKey]
	if !exists {
		rng = &cachedRange{}
		s.ranges[cacheKey] = rng
	}

	if rng.current >= rng.max {
		size := s.opts.RangeSize
		if size <= 0 {
			size = 50
		}
		newMax, err := s.reserve(ctx, tenantID, key, size)
		if err != nil {
			return 0, err
		}
		// The reserved range is (newMax-size, newMax].
		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}
