package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/core/apperror"
)

func TestIdempotencyStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewIdempotencyStore(time.Hour)

	replay, err := s.AcquireKey(ctx, "k1", "u1", "POST /receipts", "h1")
	require.NoError(t, err)
	assert.Nil(t, replay)

	_, err = s.AcquireKey(ctx, "k1", "u1", "POST /receipts", "h1")
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.CodeIdempotency, appErr.Code)

	_, err = s.AcquireKey(ctx, "k1", "u1", "POST /receipts", "other-body")
	assert.Error(t, err)

	require.NoError(t, s.CompleteKey(ctx, "k1", 201, "", []byte(`{"receiptId":"x"}`)))
	replay, err = s.AcquireKey(ctx, "k1", "u1", "POST /receipts", "h1")
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, 201, replay.StatusCode)
	assert.Equal(t, "application/json", replay.ContentType)
	assert.JSONEq(t, `{"receiptId":"x"}`, string(replay.Body))
}

func TestIdempotencyStore_ReleaseAndStale(t *testing.T) {
	ctx := context.Background()
	s := NewIdempotencyStore(time.Hour)
	clock := time.Now()
	s.now = func() time.Time { return clock }

	_, err := s.AcquireKey(ctx, "k", "u", "op", "h")
	require.NoError(t, err)
	require.NoError(t, s.ReleaseKey(ctx, "k"))

	replay, err := s.AcquireKey(ctx, "k", "u", "op", "h")
	require.NoError(t, err)
	assert.Nil(t, replay)

	clock = clock.Add(2 * time.Minute)
	replay, err = s.AcquireKey(ctx, "k", "u", "op", "h")
	require.NoError(t, err)
	assert.Nil(t, replay)

	clock = clock.Add(2 * time.Hour)
	_, err = s.AcquireKey(ctx, "k", "u2", "op", "h")
	assert.NoError(t, err)
}
