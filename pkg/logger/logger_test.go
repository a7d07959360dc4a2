package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	appctx "stockflow/internal/core/context"
)

func TestFromContext_EnrichesEntries(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &Logger{zap.New(core).Sugar()}

	ctx := WithLogger(context.Background(), l)
	ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: "dock-1", TenantID: "t1"})
	ctx = appctx.WithTrace(ctx, &appctx.TraceContext{TraceID: "tr", RequestID: "rq"})

	Info(ctx, "receipt processed", "receipt_id", "r1")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "receipt processed", entries[0].Message)
	assert.Equal(t, "dock-1", fields["user_id"])
	assert.Equal(t, "t1", fields["tenant_id"])
	assert.Equal(t, "rq", fields["request_id"])
	assert.Equal(t, "r1", fields["receipt_id"])
}

func TestSetDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	core, logs := observer.New(zapcore.InfoLevel)
	SetDefault(&Logger{zap.New(core).Sugar()})

	Warn(context.Background(), "cache update skipped")
	Debug(context.Background(), "below level")
	require.Equal(t, 1, logs.Len())

	SetDefault(nil)
	assert.NotNil(t, Default())

	FromContext(context.Background()).WithComponent("delivery").Infow("x")
	assert.Equal(t, "delivery", logs.All()[1].ContextMap()["component"])
}
