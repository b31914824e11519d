package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns Metrics backed by a ManualReader.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumWhere returns the value of the int64 sum data point carrying key=value.
func sumWhere(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", name)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(Attr(key, "").Key); ok && v.AsString() == value {
			return dp.Value
		}
	}
	t.Fatalf("metric %q: no data point with %s=%s", name, key, value)
	return 0
}

func TestHistograms(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"elektron.synthesis.duration", m.SynthesisDuration},
		{"elektron.section.duration", m.SectionDuration},
		{"elektron.stt.duration", m.STTDuration},
		{"elektron.transcript.confidence", m.TranscriptConfidence},
	}
	for _, tc := range histograms {
		tc.h.Record(ctx, 0.7)
		tc.h.Record(ctx, 0.3)
	}

	rm := collect(t, reader)
	for _, tc := range histograms {
		met := findMetric(rm, tc.name)
		if met == nil {
			t.Fatalf("metric %q not found", tc.name)
		}
		hist, ok := met.Data.(metricdata.Histogram[float64])
		if !ok || len(hist.DataPoints) == 0 {
			t.Fatalf("metric %q has no histogram data", tc.name)
		}
		if got := hist.DataPoints[0].Count; got != 2 {
			t.Errorf("%s: sample count = %d, want 2", tc.name, got)
		}
	}
}

func TestRecordProviderRequest(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.RecordProviderRequest(ctx, "openai", "llm", "ok")
	m.RecordProviderRequest(ctx, "openai", "llm", "ok")
	m.RecordProviderRequest(ctx, "openai", "llm", "error")
	m.RecordProviderError(ctx, "whisper", "stt")

	rm := collect(t, reader)
	if got := sumWhere(t, rm, "elektron.provider.requests", "status", "ok"); got != 2 {
		t.Errorf("ok requests = %d, want 2", got)
	}
	if got := sumWhere(t, rm, "elektron.provider.errors", "kind", "stt"); got != 1 {
		t.Errorf("stt errors = %d, want 1", got)
	}
}

func TestRecordSection(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.RecordSection(ctx, "assessment", "template", "timeout", 0.01)
	m.RecordSection(ctx, "plan", "model", "", 1.2)

	rm := collect(t, reader)
	if got := sumWhere(t, rm, "elektron.section.fallbacks", "section", "assessment"); got != 1 {
		t.Errorf("assessment fallbacks = %d, want 1", got)
	}
	met := findMetric(rm, "elektron.section.fallbacks")
	if n := len(met.Data.(metricdata.Sum[int64]).DataPoints); n != 1 {
		t.Errorf("fallback data points = %d, want 1 (plan came from the model)", n)
	}
}

func TestRecordBreakerState(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	m.RecordBreakerState(context.Background(), "openai", 1)

	met := findMetric(collect(t, reader), "elektron.breaker.state")
	if met == nil {
		t.Fatal("metric not found")
	}
	g, ok := met.Data.(metricdata.Gauge[int64])
	if !ok || len(g.DataPoints) != 1 || g.DataPoints[0].Value != 1 {
		t.Fatalf("unexpected gauge data: %+v", met.Data)
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics must return the same instance")
	}
}
