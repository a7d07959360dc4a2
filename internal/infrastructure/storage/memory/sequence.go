package memory

import (
	"context"
	"sync"
	"time"

	"stockflow/internal/core/numerator"
)

var _ numerator.Generator = (*Sequences)(nil)

// Sequences numbers documents in memory. Numbers are not rolled back with
// transactions.
type Sequences struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewSequences() *Sequences {
	return &Sequences{values: make(map[string]int64)}
}

func (s *Sequences) Next(_ context.Context, tenantID string, cfg numerator.Config, period time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := tenantID + ":" + numerator.Key(cfg, period)
	s.values[k]++
	return numerator.Format(cfg, period, s.values[k]), nil
}
