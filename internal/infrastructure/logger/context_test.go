package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return zap.New(core), recorded
}

func sampledSpanContext(t *testing.T) trace.SpanContext {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	return trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
}

func TestFromContext(t *testing.T) {
	log, _ := observed()
	assert.Same(t, log, FromContext(WithContext(context.Background(), log)))

	assert.NotNil(t, FromContext(context.Background()))
	wrong := context.WithValue(context.Background(), LoggerKey, "not a logger")
	assert.NotPanics(t, func() { FromContext(wrong).Info("dropped") })
}

func TestWithFields_TagOnce(t *testing.T) {
	base, recorded := observed()

	ctx, _ := WithRequestID(context.Background(), base, "req-1")
	ctx, _ = WithActorID(ctx, FromContext(ctx), "clerk-1")
	ctx, _ = WithBranchID(ctx, FromContext(ctx), "branch-1")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "clerk-1", GetActorID(ctx))
	assert.Equal(t, "branch-1", GetBranchID(ctx))

	L(ctx).Info("counted", zap.String("inventory_id", "inv-1"))

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Len(t, logs[0].Context, 4, "each context field appears once")
	assert.Equal(t, map[string]any{
		"request_id":   "req-1",
		"actor_id":     "clerk-1",
		"branch_id":    "branch-1",
		"inventory_id": "inv-1",
	}, logs[0].ContextMap())
}

func TestGetters_Empty(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetActorID(ctx))
	assert.Empty(t, GetBranchID(ctx))
}

func TestL_TraceCorrelation(t *testing.T) {
	t.Run("valid span", func(t *testing.T) {
		base, recorded := observed()
		ctx := WithContext(trace.ContextWithSpanContext(context.Background(), sampledSpanContext(t)), base)

		L(ctx).Info("traced")

		fields := recorded.All()[0].ContextMap()
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
		assert.Equal(t, "00f067aa0ba902b7", fields["span_id"])
	})

	t.Run("noop tracer", func(t *testing.T) {
		ctx, span := noop.NewTracerProvider().Tracer("test").Start(context.Background(), "noop")
		defer span.End()

		assert.Nil(t, TraceFields(ctx))
		base, _ := observed()
		assert.Same(t, base, L(WithContext(ctx, base)))
	})
}
