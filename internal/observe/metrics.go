// Package observe provides application-wide observability primitives for
// ordervox: OpenTelemetry metrics, tracing, trace-aware structured logging,
// and the HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported to
// Prometheus by [InitProvider], to be scraped from /metrics. [DefaultMetrics]
// is a package-level instance for convenience; tests should use [NewMetrics]
// with their own [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all ordervox metrics.
const meterName = "github.com/MrWong99/ordervox"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// ScanDuration tracks automaton scans of one listening round's text.
	ScanDuration metric.Float64Histogram

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// --- Counters ---

	// Sessions counts finished sessions by attribute "outcome".
	Sessions metric.Int64Counter

	// Rounds counts listen/confirm rounds.
	Rounds metric.Int64Counter

	// RecognitionMisses counts listening attempts that produced no menu
	// item, by attribute "reason" (no_match, no_speech, timeout,
	// transcription, transient_io).
	RecognitionMisses metric.Int64Counter

	// ItemsRecognised counts phrases newly added to orders.
	ItemsRecognised metric.Int64Counter

	// Recommendations counts recommended phrases handed to customers.
	Recommendations metric.Int64Counter

	// MenuReloads counts menu reload attempts by attribute "status".
	MenuReloads metric.Int64Counter

	// ProviderRequests counts provider API calls by "provider", "kind" and
	// "status".
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors by "provider" and "kind".
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live ordering sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time by "method"
	// and "path".
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds for provider calls.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// scanBuckets are histogram boundaries in seconds for automaton scans, which
// run in microseconds.
var scanBuckets = []float64{
	0.000005, 0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.005,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ScanDuration, err = m.Float64Histogram("ordervox.scan.duration",
		metric.WithDescription("Latency of scanning transcribed text for menu items."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(scanBuckets...),
	); err != nil {
		return nil, err
	}
	if met.STTDuration, err = m.Float64Histogram("ordervox.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("ordervox.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Sessions, err = m.Int64Counter("ordervox.sessions",
		metric.WithDescription("Finished ordering sessions by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Rounds, err = m.Int64Counter("ordervox.rounds",
		metric.WithDescription("Listen and confirm rounds across all sessions."),
	); err != nil {
		return nil, err
	}
	if met.RecognitionMisses, err = m.Int64Counter("ordervox.recognition.misses",
		metric.WithDescription("Listening attempts that recognised no menu item, by reason."),
	); err != nil {
		return nil, err
	}
	if met.ItemsRecognised, err = m.Int64Counter("ordervox.items.recognised",
		metric.WithDescription("Menu items added to orders."),
	); err != nil {
		return nil, err
	}
	if met.Recommendations, err = m.Int64Counter("ordervox.recommendations",
		metric.WithDescription("Recommended menu items handed to customers."),
	); err != nil {
		return nil, err
	}
	if met.MenuReloads, err = m.Int64Counter("ordervox.menu.reloads",
		metric.WithDescription("Menu reload attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("ordervox.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("ordervox.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("ordervox.active_sessions",
		metric.WithDescription("Number of live ordering sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("ordervox.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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
// pointer. Panics if instrument creation fails.
//
// Call it only after [InitProvider] so that the instruments bind to the
// exporting provider.
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

// RecordProviderRequest records a provider request with the standard
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

// RecordProviderError records a provider error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordMiss records a listening attempt that recognised nothing.
func (m *Metrics) RecordMiss(ctx context.Context, reason string) {
	m.RecognitionMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordSession records a finished session.
func (m *Metrics) RecordSession(ctx context.Context, outcome string) {
	m.Sessions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordMenuReload records a menu reload attempt.
func (m *Metrics) RecordMenuReload(ctx context.Context, status string) {
	m.MenuReloads.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
