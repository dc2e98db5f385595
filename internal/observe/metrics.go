// Package observe provides Hearth's observability primitives: OpenTelemetry
// metrics with a Prometheus exporter bridge so the standard /metrics endpoint
// keeps working.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope name used for all Hearth metrics.
const meterName = "github.com/hushlabs/hearth"

// Metrics holds all OpenTelemetry metric instruments for the engine. All
// fields are safe for concurrent use; the underlying OTel types handle their
// own synchronisation.
type Metrics struct {
	// ASRDuration tracks the wall time of one utterance from first frame to
	// terminal transcript.
	ASRDuration metric.Float64Histogram

	// NLUDuration tracks intent-resolution latency.
	NLUDuration metric.Float64Histogram

	// FrameDrops counts audio frames discarded by the queue's backpressure
	// policy.
	FrameDrops metric.Int64Counter

	// HotwordDetections counts wake-word firings.
	HotwordDetections metric.Int64Counter

	// SessionTerminations counts ended sessions. Use with attribute:
	//   attribute.String("kind", ...)
	SessionTerminations metric.Int64Counter

	// Injections counts committed vocabulary injection operations. Use with
	// attribute: attribute.String("operation", ...)
	Injections metric.Int64Counter

	// ActiveSessions tracks the number of live dialogue sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for recognition latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ASRDuration, err = m.Float64Histogram("hearth.asr.duration",
		metric.WithDescription("Wall time of one utterance from first frame to terminal transcript."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.NLUDuration, err = m.Float64Histogram("hearth.nlu.duration",
		metric.WithDescription("Latency of intent resolution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FrameDrops, err = m.Int64Counter("hearth.audio.frame_drops",
		metric.WithDescription("Audio frames discarded by queue backpressure."),
	); err != nil {
		return nil, err
	}
	if met.HotwordDetections, err = m.Int64Counter("hearth.hotword.detections",
		metric.WithDescription("Wake-word detections."),
	); err != nil {
		return nil, err
	}
	if met.SessionTerminations, err = m.Int64Counter("hearth.session.terminations",
		metric.WithDescription("Ended dialogue sessions by termination kind."),
	); err != nil {
		return nil, err
	}
	if met.Injections, err = m.Int64Counter("hearth.vocab.injections",
		metric.WithDescription("Committed vocabulary injection operations."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("hearth.session.active",
		metric.WithDescription("Live dialogue sessions."),
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
// first use from the global meter provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			// Instrument creation only fails on malformed names; fall back to
			// a no-op meter so callers never nil-check.
			m, _ = NewMetrics(noop.NewMeterProvider())
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// RecordTermination counts one ended session with its termination kind.
func (m *Metrics) RecordTermination(ctx context.Context, kind string) {
	m.SessionTerminations.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordInjection counts one committed injection operation.
func (m *Metrics) RecordInjection(ctx context.Context, operation string) {
	m.Injections.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}
