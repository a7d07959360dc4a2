package numerator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corenumerator "stockflow/internal/core/numerator"
)

type mockRow struct {
	val int64
}

func (m *mockRow) Scan(dest ...any) error {
	if ptr, ok := dest[0].(*int64); ok {
		*ptr = m.val
	}
	return nil
}

// mockQuerier simulates sys_sequences: one counter per (tenant, key).
type mockQuerier struct {
	mu     sync.Mutex
	values map[string]int64
	calls  int
}

func (m *mockQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	k := args[0].(string) + "/" + args[1].(string)
	m.values[k] += args[2].(int64)
	return &mockRow{val: m.values[k]}
}

func newMock() *mockQuerier { return &mockQuerier{values: map[string]int64{}} }

var period = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

func TestNext_Strict(t *testing.T) {
	q := newMock()
	svc := NewWithQuerier(q, nil)
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("PO")

	num, err := svc.Next(ctx, "t1", cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "PO-2026-00001", num)

	num, err = svc.Next(ctx, "t1", cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "PO-2026-00002", num)

	num, err = svc.Next(ctx, "t2", cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "PO-2026-00001", num, "sequences are per tenant")
}

func TestNext_Cached(t *testing.T) {
	q := newMock()
	svc := NewWithQuerier(q, &corenumerator.Options{Strategy: corenumerator.StrategyCached, RangeSize: 10})
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("PO")

	num, err := svc.Next(ctx, "t1", cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "PO-2026-00001", num)
	assert.Equal(t, int64(10), q.values["t1/PO_2026"])

	for i := 0; i < 9; i++ {
		_, err = svc.Next(ctx, "t1", cfg, period)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, q.calls, "range served from memory")

	num, err = svc.Next(ctx, "t1", cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "PO-2026-00011", num)
	assert.Equal(t, 2, q.calls)
	assert.Equal(t, int64(20), q.values["t1/PO_2026"])
}
