// Package observe provides application-wide observability primitives for
// Elektron: OpenTelemetry metrics and tracing, trace-aware structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and scraped via
// the Prometheus bridge set up by [InitProvider]. Tests should use
// [NewMetrics] with their own [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Elektron metrics.
const meterName = "github.com/MrWong99/elektron"

// Metrics holds all OpenTelemetry metric instruments for the application.
type Metrics struct {
	// --- Latency histograms ---

	// SynthesisDuration tracks end-to-end note synthesis. Attribute: strategy.
	SynthesisDuration metric.Float64Histogram

	// SectionDuration tracks a single section generation. Attributes:
	// section, source.
	SectionDuration metric.Float64Histogram

	// STTDuration tracks batch transcription latency. Attribute: model.
	STTDuration metric.Float64Histogram

	// --- Quality ---

	// TranscriptConfidence records estimated transcription confidence.
	TranscriptConfidence metric.Float64Histogram

	// --- Counters ---

	// NotesGenerated counts synthesized notes. Attribute: strategy.
	NotesGenerated metric.Int64Counter

	// NotesRefined counts refinement calls. Attribute: strategy.
	NotesRefined metric.Int64Counter

	// SectionFallbacks counts sections that fell back to the template.
	// Attributes: section, reason.
	SectionFallbacks metric.Int64Counter

	// ConfidenceUnavailable counts transcripts without usable segment data.
	ConfidenceUnavailable metric.Int64Counter

	// ProviderRequests counts provider API calls. Attributes: provider,
	// kind, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// EventsPublished counts activity events. Attributes: type, status.
	EventsPublished metric.Int64Counter

	// --- Gauges ---

	// BreakerState reports the circuit breaker state per backend:
	// 0 closed, 1 open, 2 half-open. Attribute: name.
	BreakerState metric.Int64Gauge

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	// method, route, status.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets (seconds) cover sub-second template runs up to multi-minute
// transcriptions of long encounters.
var latencyBuckets = []float64{
	0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45, 90, 180,
}

var confidenceBuckets = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}

// NewMetrics creates a fully initialised [Metrics] struct using mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histogram := func(name, desc, unit string, buckets []float64) (metric.Float64Histogram, error) {
		return m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit(unit),
			metric.WithExplicitBucketBoundaries(buckets...),
		)
	}

	if met.SynthesisDuration, err = histogram("elektron.synthesis.duration",
		"Latency of SOAP note synthesis.", "s", latencyBuckets); err != nil {
		return nil, err
	}
	if met.SectionDuration, err = histogram("elektron.section.duration",
		"Latency of a single SOAP section generation.", "s", latencyBuckets); err != nil {
		return nil, err
	}
	if met.STTDuration, err = histogram("elektron.stt.duration",
		"Latency of batch speech-to-text transcription.", "s", latencyBuckets); err != nil {
		return nil, err
	}
	if met.TranscriptConfidence, err = histogram("elektron.transcript.confidence",
		"Estimated transcription confidence.", "1", confidenceBuckets); err != nil {
		return nil, err
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&met.NotesGenerated, "elektron.notes.generated", "Total synthesized SOAP notes by strategy."},
		{&met.NotesRefined, "elektron.notes.refined", "Total refined SOAP notes by strategy."},
		{&met.SectionFallbacks, "elektron.section.fallbacks", "Sections produced by the template after a model failure."},
		{&met.ConfidenceUnavailable, "elektron.transcript.confidence_unavailable", "Transcripts without segment log-probabilities."},
		{&met.ProviderRequests, "elektron.provider.requests", "Total provider API requests by provider, kind, and status."},
		{&met.ProviderErrors, "elektron.provider.errors", "Total provider errors by provider and kind."},
		{&met.EventsPublished, "elektron.events.published", "Activity events by type and delivery status."},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	if met.BreakerState, err = m.Int64Gauge("elektron.breaker.state",
		metric.WithDescription("Circuit breaker state per backend (0 closed, 1 open, 2 half-open)."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("elektron.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
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
// first call using [otel.GetMeterProvider].
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

// RecordProviderRequest records one provider call.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		Attr("provider", provider), Attr("kind", kind), Attr("status", status),
	))
}

// RecordProviderError records one provider error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		Attr("provider", provider), Attr("kind", kind),
	))
}

// RecordSection records one section generation and, when source is not the
// model, the fallback that produced it.
func (m *Metrics) RecordSection(ctx context.Context, section, source, fallbackReason string, seconds float64) {
	m.SectionDuration.Record(ctx, seconds, metric.WithAttributes(
		Attr("section", section), Attr("source", source),
	))
	if fallbackReason != "" {
		m.SectionFallbacks.Add(ctx, 1, metric.WithAttributes(
			Attr("section", section), Attr("reason", fallbackReason),
		))
	}
}

// RecordBreakerState sets the breaker gauge for name.
func (m *Metrics) RecordBreakerState(ctx context.Context, name string, state int64) {
	m.BreakerState.Record(ctx, state, metric.WithAttributes(Attr("name", name)))
}

// RecordEvent records one activity event with its delivery status.
func (m *Metrics) RecordEvent(ctx context.Context, eventType, status string) {
	m.EventsPublished.Add(ctx, 1, metric.WithAttributes(
		Attr("type", eventType), Attr("status", status),
	))
}
