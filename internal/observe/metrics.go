// Package observe provides application-wide observability primitives for
// lectern: OpenTelemetry metrics, tracing, structured logging helpers, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all lectern metrics.
const meterName = "github.com/lecternhq/lectern"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// LocateDuration tracks snippet-location query latency.
	LocateDuration metric.Float64Histogram

	// IndexDuration tracks book preprocessing latency.
	IndexDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ---

	// LocateTotal counts locate queries. Use with attribute:
	//   attribute.String("outcome", "match"|"no_match")
	LocateTotal metric.Int64Counter

	// IndexTotal counts book indexing operations.
	IndexTotal metric.Int64Counter

	// SnapshotErrors counts snapshot store failures. Use with attribute:
	//   attribute.String("op", ...)
	SnapshotErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveFollowers tracks the number of open follow WebSocket sessions.
	ActiveFollowers metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for sub-second locate queries while still resolving slow indexing runs.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.LocateDuration, err = m.Float64Histogram("lectern.locate.duration",
		metric.WithDescription("Latency of snippet location queries."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.IndexDuration, err = m.Float64Histogram("lectern.index.duration",
		metric.WithDescription("Latency of book preprocessing."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("lectern.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.LocateTotal, err = m.Int64Counter("lectern.locate.total",
		metric.WithDescription("Total locate queries by outcome."),
	); err != nil {
		return nil, err
	}
	if met.IndexTotal, err = m.Int64Counter("lectern.index.total",
		metric.WithDescription("Total book indexing operations."),
	); err != nil {
		return nil, err
	}
	if met.SnapshotErrors, err = m.Int64Counter("lectern.snapshot.errors",
		metric.WithDescription("Total snapshot store failures by operation."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveFollowers, err = m.Int64UpDownCounter("lectern.followers.active",
		metric.WithDescription("Number of open follow WebSocket sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordLocate records one locate query: its latency and an outcome-tagged
// counter increment.
func (m *Metrics) RecordLocate(ctx context.Context, took time.Duration, matched bool) {
	outcome := "no_match"
	if matched {
		outcome = "match"
	}
	m.LocateDuration.Record(ctx, took.Seconds())
	m.LocateTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordIndex records one book indexing operation.
func (m *Metrics) RecordIndex(ctx context.Context, took time.Duration) {
	m.IndexDuration.Record(ctx, took.Seconds())
	m.IndexTotal.Add(ctx, 1)
}

// RecordSnapshotError records a snapshot store failure for the given
// operation ("save", "load", "list", "delete").
func (m *Metrics) RecordSnapshotError(ctx context.Context, op string) {
	m.SnapshotErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("op", op)),
	)
}
