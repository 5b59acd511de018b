package telemetry

import (
	"context"
	"testing"

	"github.com/erp/stockcore/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetup_Disabled(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)

	p, err := Setup(context.Background(), config.TelemetryConfig{Enabled: false, MetricsEnabled: true}, zap.New(core))
	require.NoError(t, err)

	assert.Nil(t, p.Tracer)
	assert.Nil(t, p.Meter)
	assert.Nil(t, p.Logs)
	assert.NotNil(t, p.MeterFor("stockcore"))
	assert.Equal(t, 1, recorded.FilterMessage("Telemetry disabled, using no-op providers").Len())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestProviders_WrapLogger(t *testing.T) {
	base := zap.NewNop()

	disabled := &Providers{}
	assert.Same(t, base, disabled.WrapLogger(base))

	logs := sdklog.NewLoggerProvider()
	enabled := &Providers{Logs: logs, serviceName: "stockcore"}
	wrapped := enabled.WrapLogger(base)
	assert.NotSame(t, base, wrapped)
	assert.NotPanics(t, func() { wrapped.Info("bridged entry") })
	assert.NoError(t, enabled.Shutdown(context.Background()))
}
