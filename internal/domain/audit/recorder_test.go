package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	appctx "stockflow/internal/core/context"
)

type captureRecorder struct {
	kinds  []Kind
	actors []string
	err    error
}

func (c *captureRecorder) RecordEvent(_ context.Context, kind Kind, actorID string, _ any) error {
	c.kinds = append(c.kinds, kind)
	c.actors = append(c.actors, actorID)
	return c.err
}

func TestEmit_SwallowsFailures(t *testing.T) {
	rec := &captureRecorder{err: errors.New("sink down")}

	assert.NotPanics(t, func() {
		Emit(context.Background(), rec, KindIssueCreated, "u-1", map[string]any{"issue": 1})
	})
	assert.Equal(t, []Kind{KindIssueCreated}, rec.kinds)
}

func TestEmit_ResolvesActorFromContext(t *testing.T) {
	rec := &captureRecorder{}
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "ctx-user"})

	Emit(ctx, rec, KindReceiptProcessed, "", nil)
	Emit(ctx, rec, KindReceiptProcessed, "explicit", nil)

	assert.Equal(t, []string{"ctx-user", "explicit"}, rec.actors)
}

func TestEmit_NilRecorder(t *testing.T) {
	assert.NotPanics(t, func() {
		Emit(context.Background(), nil, KindIssueResolved, "u", nil)
	})
}
