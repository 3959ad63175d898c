package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/apertium/apertium-stats-service/internal/observability"
)

func newTestMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() { require.NoError(t, mp.Shutdown(context.Background())) })

	return mp, reader
}

func collectedMetricNames(t *testing.T, reader *sdkmetric.ManualReader) []string {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var names []string
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			names = append(names, m.Name)
		}
	}

	return names
}

func TestServiceMetrics_RecordsInstruments(t *testing.T) {
	t.Parallel()

	mp, reader := newTestMeter(t)

	metrics, err := observability.NewServiceMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()

	metrics.RecordRequest(ctx, "ready")
	metrics.RecordCacheLookup(ctx, observability.CacheHit)

	done := metrics.ComputationStarted(ctx, "bidix")
	done("success")

	names := collectedMetricNames(t, reader)
	assert.Contains(t, names, "apertium_stats.requests.total")
	assert.Contains(t, names, "apertium_stats.cache.lookups.total")
	assert.Contains(t, names, "apertium_stats.computations.total")
	assert.Contains(t, names, "apertium_stats.computation.duration.seconds")
	assert.Contains(t, names, "apertium_stats.inflight.flights")
}

func TestServiceMetrics_NilReceiverIsSafe(t *testing.T) {
	t.Parallel()

	var metrics *observability.ServiceMetrics

	ctx := context.Background()

	// All methods must be no-ops on a nil receiver so tests and partial
	// wiring can skip metrics entirely.
	metrics.RecordRequest(ctx, "error")
	metrics.RecordCacheLookup(ctx, observability.CacheMiss)

	done := metrics.ComputationStarted(ctx, "monodix")
	done("failure")
}
