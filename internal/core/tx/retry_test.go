package tx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"stockflow/internal/core/apperror"
)

func TestWithRetry_RetriesAbortsOnly(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 3, func(_ context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return apperror.NewTransactionAborted(errors.New("40001"))
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = WithRetry(context.Background(), 3, func(context.Context, int) error {
		calls++
		return apperror.NewValidation("bad")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_GivesUp(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 2, func(context.Context, int) error {
		calls++
		return apperror.NewTransactionAborted(errors.New("conflict"))
	})
	assert.True(t, apperror.IsTransactionAborted(err))
	assert.Equal(t, 2, calls)
}

func TestWithRetry_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithRetry(ctx, 3, func(context.Context, int) error {
		t.Fatal("fn must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
