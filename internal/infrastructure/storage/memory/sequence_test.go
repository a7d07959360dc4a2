package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/core/numerator"
)

func TestSequences_Next(t *testing.T) {
	ctx := context.Background()
	s := NewSequences()
	cfg := numerator.DefaultConfig("PO")
	period := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	n, err := s.Next(ctx, "t1", cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "PO-2026-00001", n)

	n, _ = s.Next(ctx, "t1", cfg, period)
	assert.Equal(t, "PO-2026-00002", n)

	n, _ = s.Next(ctx, "t2", cfg, period)
	assert.Equal(t, "PO-2026-00001", n)

	n, _ = s.Next(ctx, "t1", cfg, period.AddDate(1, 0, 0))
	assert.Equal(t, "PO-2027-00001", n)
}
