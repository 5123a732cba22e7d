// Package observe provides the observability primitives shared by the
// transcriber, the CLI and the HTTP server: OpenTelemetry metrics, tracing,
// structured logging and HTTP middleware that ties them together.
//
// Tests should use [NewMetrics] with their own [metric.MeterProvider]
// rather than [DefaultMetrics] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/ieee0824/melody-go"

// Pipeline stage names used with [Metrics.RecordStage].
const (
	StageTuning     = "tuning"
	StageEmission   = "emission"
	StageTransition = "transition"
	StageDecode     = "decode"
	StageSegment    = "segment"
)

// Metrics holds the metric instruments of the transcription pipeline.
type Metrics struct {
	// TranscribeDuration tracks the wall time of a whole transcription.
	TranscribeDuration metric.Float64Histogram

	// StageDuration tracks per-stage latency. Use with attribute
	// attribute.String("stage", ...).
	StageDuration metric.Float64Histogram

	// Transcriptions counts finished transcriptions by status
	// ("ok" or an error class).
	Transcriptions metric.Int64Counter

	// Notes counts emitted note events.
	Notes metric.Int64Counter

	// Frames counts decoded feature frames.
	Frames metric.Int64Counter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes method, path and status.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram bounds in seconds. Decoding a few minutes of
// frames over a wide note range takes tens to hundreds of milliseconds.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TranscribeDuration, err = m.Float64Histogram("melody.transcribe.duration",
		metric.WithDescription("Latency of a full transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StageDuration, err = m.Float64Histogram("melody.stage.duration",
		metric.WithDescription("Latency of a single pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Transcriptions, err = m.Int64Counter("melody.transcriptions",
		metric.WithDescription("Finished transcriptions by status."),
	); err != nil {
		return nil, err
	}
	if met.Notes, err = m.Int64Counter("melody.notes",
		metric.WithDescription("Note events emitted."),
	); err != nil {
		return nil, err
	}
	if met.Frames, err = m.Int64Counter("melody.frames",
		metric.WithDescription("Feature frames decoded."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("melody.http.request.duration",
		metric.WithDescription("HTTP request processing time."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
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
// first call from [otel.GetMeterProvider]. Panics if instrument creation
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

// RecordStage records the latency of one pipeline stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, seconds float64) {
	m.StageDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordTranscription records the outcome of one transcription.
func (m *Metrics) RecordTranscription(ctx context.Context, status string, seconds float64, frames, notes int) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.Transcriptions.Add(ctx, 1, attrs)
	m.TranscribeDuration.Record(ctx, seconds, attrs)
	if frames > 0 {
		m.Frames.Add(ctx, int64(frames))
	}
	if notes > 0 {
		m.Notes.Add(ctx, int64(notes))
	}
}
