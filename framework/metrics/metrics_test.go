package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	result := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			result[m.Name] = m
		}
	}
	return result
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewMetricsWithProvider(provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordAllocation(ctx, "allocated", 10*time.Millisecond)
	m.RecordAllocation(ctx, "depleted", 5*time.Millisecond)
	m.RecordBatchRecord(ctx, "retry")
	m.RecordEventAppend(ctx, "OrderStockAllocated", "appended")
	m.RecordTransport(ctx, "kafka", "publish", false)

	collected := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, collected["allocations_total"]))
	assert.Equal(t, int64(1), sumOf(t, collected["batch_records_total"]))
	assert.Equal(t, int64(1), sumOf(t, collected["event_appends_total"]))
	assert.Equal(t, int64(1), sumOf(t, collected["transport_messages_total"]))
	assert.Equal(t, int64(1), sumOf(t, collected["errors_total"]))

	_, ok := collected["allocation_duration_seconds"]
	assert.True(t, ok)
}

func TestSetupMetrics_UnknownExporter(t *testing.T) {
	_, err := SetupMetrics(&MetricsConfig{ExporterType: "statsd"})
	assert.Error(t, err)
}
