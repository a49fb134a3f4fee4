// Package observe provides application-wide observability primitives for
// Lectern: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Lectern metrics.
const meterName = "github.com/MrWong99/lectern"

// Segment fetch outcomes recorded by [Metrics.RecordSegmentFetch].
const (
	FetchHit   = "hit"
	FetchMiss  = "miss"
	FetchJoin  = "join"
	FetchError = "error"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// LLMDuration tracks text generation latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks one speech synthesis attempt.
	TTSDuration metric.Float64Histogram

	// ImageDuration tracks image generation latency.
	ImageDuration metric.Float64Histogram

	// SegmentFetchDuration tracks a full segment fetch including retries and
	// WAV encoding.
	SegmentFetchDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Attributes: provider, kind,
	// status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// SegmentFetches counts fetcher lookups. Attribute: outcome.
	SegmentFetches metric.Int64Counter

	// SegmentSkips counts segments skipped after a failed buffering wait.
	SegmentSkips metric.Int64Counter

	// CacheEvictions counts response cache entries dropped. Attributes:
	// namespace, reason.
	CacheEvictions metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live playback sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	// method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries in seconds. Hosted model
// calls routinely take several seconds, so the range extends to a minute.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histogram := func(name, desc string) (metric.Float64Histogram, error) {
		return m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
	}

	if met.LLMDuration, err = histogram("lectern.llm.duration", "Latency of text generation."); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = histogram("lectern.tts.duration", "Latency of one speech synthesis attempt."); err != nil {
		return nil, err
	}
	if met.ImageDuration, err = histogram("lectern.image.duration", "Latency of image generation."); err != nil {
		return nil, err
	}
	if met.SegmentFetchDuration, err = histogram("lectern.segment.fetch.duration", "Latency of a segment fetch including retries."); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("lectern.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("lectern.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.SegmentFetches, err = m.Int64Counter("lectern.segment.fetches",
		metric.WithDescription("Segment fetcher lookups by outcome."),
	); err != nil {
		return nil, err
	}
	if met.SegmentSkips, err = m.Int64Counter("lectern.segment.skips",
		metric.WithDescription("Segments skipped after synthesis failed."),
	); err != nil {
		return nil, err
	}
	if met.CacheEvictions, err = m.Int64Counter("lectern.cache.evictions",
		metric.WithDescription("Response cache entries evicted by namespace and reason."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("lectern.active_sessions",
		metric.WithDescription("Number of live playback sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("lectern.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails, which does not happen with the global provider.
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records one provider call with the standard
// attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records one provider error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordSegmentFetch records one fetcher lookup; outcome is one of the Fetch*
// constants.
func (m *Metrics) RecordSegmentFetch(ctx context.Context, outcome string) {
	m.SegmentFetches.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordCacheEviction records n evicted cache entries.
func (m *Metrics) RecordCacheEviction(ctx context.Context, namespace, reason string, n int) {
	if n <= 0 {
		return
	}
	m.CacheEvictions.Add(ctx, int64(n),
		metric.WithAttributes(
			attribute.String("namespace", namespace),
			attribute.String("reason", reason),
		),
	)
}
