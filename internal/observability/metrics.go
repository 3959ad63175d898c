package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal       = "apertium_stats.requests.total"
	metricCacheLookupsTotal   = "apertium_stats.cache.lookups.total"
	metricComputationsTotal   = "apertium_stats.computations.total"
	metricComputationDuration = "apertium_stats.computation.duration.seconds"
	metricInflightFlights     = "apertium_stats.inflight.flights"

	attrStatus = "status"
	attrResult = "result"
	attrKind   = "file_kind"
)

// Cache lookup results.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// durationBucketBoundaries covers 100ms to 10min: computations span quick
// tree listings to multi-minute dictionary downloads.
var durationBucketBoundaries = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// ServiceMetrics holds the OTel instruments for the coordination core. A
// nil *ServiceMetrics is valid and records nothing, so wiring metrics stays
// optional in tests.
type ServiceMetrics struct {
	requestsTotal       metric.Int64Counter
	cacheLookupsTotal   metric.Int64Counter
	computationsTotal   metric.Int64Counter
	computationDuration metric.Float64Histogram
	inflightFlights     metric.Int64UpDownCounter
}

// NewServiceMetrics creates the service instruments from the given meter.
func NewServiceMetrics(mt metric.Meter) (*ServiceMetrics, error) {
	b := newMetricBuilder(mt)

	sm := &ServiceMetrics{
		requestsTotal:       b.counter(metricRequestsTotal, "Total stat requests by response status", "{request}"),
		cacheLookupsTotal:   b.counter(metricCacheLookupsTotal, "Entry store lookups by result", "{lookup}"),
		computationsTotal:   b.counter(metricComputationsTotal, "Computations dispatched, by terminal result", "{computation}"),
		computationDuration: b.histogram(metricComputationDuration, "Computation duration in seconds", "s", durationBucketBoundaries...),
		inflightFlights:     b.upDownCounter(metricInflightFlights, "Computations currently in flight", "{flight}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return sm, nil
}

// RecordRequest counts one request with its response status
// (ready/pending/error).
func (sm *ServiceMetrics) RecordRequest(ctx context.Context, status string) {
	if sm == nil {
		return
	}

	sm.requestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
}

// RecordCacheLookup counts one entry-store lookup as hit or miss.
func (sm *ServiceMetrics) RecordCacheLookup(ctx context.Context, result string) {
	if sm == nil {
		return
	}

	sm.cacheLookupsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// ComputationStarted increments the in-flight gauge and returns a function
// that records the terminal result and duration.
func (sm *ServiceMetrics) ComputationStarted(ctx context.Context, fileKind string) func(result string) {
	if sm == nil {
		return func(string) {}
	}

	start := time.Now()
	kindAttr := attribute.String(attrKind, fileKind)

	sm.inflightFlights.Add(ctx, 1, metric.WithAttributes(kindAttr))

	return func(result string) {
		sm.inflightFlights.Add(ctx, -1, metric.WithAttributes(kindAttr))
		sm.computationsTotal.Add(ctx, 1, metric.WithAttributes(kindAttr, attribute.String(attrResult, result)))
		sm.computationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(kindAttr))
	}
}
