package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/stockcore/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func TestCounter_SplitsByAttributes(t *testing.T) {
	reader, provider := newTestMeter()
	ctx := context.Background()

	counter, err := telemetry.NewCounter(provider.Meter("test"), "stock_test_total", "Test counter", "1")
	require.NoError(t, err)

	counter.Add(ctx, 5, telemetry.AttrLedger.String("ingredient"))
	counter.Inc(ctx, telemetry.AttrLedger.String("product"))
	counter.Inc(ctx, telemetry.AttrLedger.String("product"))

	sum, ok := collect(t, reader)["stock_test_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 2)
	byLedger := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(telemetry.AttrLedger)
		byLedger[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"ingredient": 5, "product": 2}, byLedger)
}

func TestHistogram_Boundaries(t *testing.T) {
	reader, provider := newTestMeter()
	ctx := context.Background()

	histogram, err := telemetry.NewHistogram(provider.Meter("test"), telemetry.HistogramOpts{
		Name:       "http_server_request_duration_seconds",
		Unit:       "s",
		Boundaries: telemetry.HTTPDurationBuckets,
	})
	require.NoError(t, err)

	histogram.Record(ctx, 0.05, telemetry.AttrHTTPMethod.String("POST"))
	histogram.RecordDuration(ctx, 2*time.Second, telemetry.AttrHTTPMethod.String("POST"))

	hist, ok := collect(t, reader)["http_server_request_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	dp := hist.DataPoints[0]
	assert.Equal(t, telemetry.HTTPDurationBuckets, dp.Bounds)
	assert.Equal(t, uint64(2), dp.Count)
	assert.InDelta(t, 2.05, dp.Sum, 1e-9)
}

func TestGauge_KeepsLastValue(t *testing.T) {
	reader, provider := newTestMeter()
	ctx := context.Background()

	gauge, err := telemetry.NewGauge(provider.Meter("test"), "stock_outbox_entries", "Outbox entries", "{entries}")
	require.NoError(t, err)

	pending := attribute.String(string(telemetry.AttrOutboxStatus), "PENDING")
	gauge.Record(ctx, 7, pending)
	gauge.Record(ctx, 3, pending)

	g, ok := collect(t, reader)["stock_outbox_entries"].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, g.DataPoints, 1)
	assert.Equal(t, int64(3), g.DataPoints[0].Value)
}

func TestLedgerAttributes(t *testing.T) {
	assert.Equal(t, "branch_id", string(telemetry.AttrBranchID))
	assert.Equal(t, "movement_type", string(telemetry.AttrMovementType))
	assert.Equal(t, "outbox_status", string(telemetry.AttrOutboxStatus))
}
