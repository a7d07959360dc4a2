package tx

import (
	"context"

	"stockflow/internal/core/apperror"
)

// WithRetry runs fn until it succeeds, fails with a non-retryable error or
// attempts are exhausted. Only transaction aborts are retried: they
// guarantee nothing was persisted.
func WithRetry(ctx context.Context, attempts int, fn func(ctx context.Context, attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = fn(ctx, attempt)
		if err == nil || !apperror.IsTransactionAborted(err) {
			return err
		}
	}
	return err
}
