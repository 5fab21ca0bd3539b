// Package observe provides application-wide observability primitives for
// Towncrier: OpenTelemetry metrics, tracing helpers, and structured-log
// enrichment.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution. All convenience recording methods are nil-receiver
// safe so that unit tests can pass a nil *Metrics.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Towncrier metrics.
const meterName = "github.com/quillback/towncrier"

// ClipStatus labels the outcome of one delivery queue entry.
type ClipStatus string

const (
	// ClipPlayed means the transcode/transmit operation completed.
	ClipPlayed ClipStatus = "played"

	// ClipDropped means no voice connection existed and the clip was
	// discarded without playback.
	ClipDropped ClipStatus = "dropped"

	// ClipFailed means the transcode/transmit operation errored.
	ClipFailed ClipStatus = "failed"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// SynthesisDuration tracks TTS synthesis latency per provider.
	SynthesisDuration metric.Float64Histogram

	// TranscodeDuration tracks clip transcode/transmit latency.
	TranscodeDuration metric.Float64Histogram

	// --- Counters ---

	// Clips counts delivery queue entries by outcome (played/dropped/failed).
	Clips metric.Int64Counter

	// VoiceConnects counts voice channel join attempts by status.
	VoiceConnects metric.Int64Counter

	// VoiceDisconnects counts voice channel departures.
	VoiceDisconnects metric.Int64Counter

	// MessagesSpoken counts accepted messages that produced a clip.
	MessagesSpoken metric.Int64Counter

	// --- Gauges ---

	// ActiveLinks tracks the number of live voice connections.
	ActiveLinks metric.Int64UpDownCounter

	// QueueDepth tracks pending clips across all guild queues.
	QueueDepth metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// synthesis and playback latencies.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SynthesisDuration, err = m.Float64Histogram("towncrier.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscodeDuration, err = m.Float64Histogram("towncrier.transcode.duration",
		metric.WithDescription("Latency of the clip transcode/transmit operation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Clips, err = m.Int64Counter("towncrier.clips",
		metric.WithDescription("Delivery queue entries by outcome."),
	); err != nil {
		return nil, err
	}
	if met.VoiceConnects, err = m.Int64Counter("towncrier.voice.connects",
		metric.WithDescription("Voice channel join attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.VoiceDisconnects, err = m.Int64Counter("towncrier.voice.disconnects",
		metric.WithDescription("Voice channel departures."),
	); err != nil {
		return nil, err
	}
	if met.MessagesSpoken, err = m.Int64Counter("towncrier.messages.spoken",
		metric.WithDescription("Accepted messages that produced a clip."),
	); err != nil {
		return nil, err
	}

	if met.ActiveLinks, err = m.Int64UpDownCounter("towncrier.voice.active_links",
		metric.WithDescription("Number of live voice connections."),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64UpDownCounter("towncrier.queue.depth",
		metric.WithDescription("Pending clips across all guild queues."),
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

// CountClip records one delivery queue entry outcome.
func (m *Metrics) CountClip(ctx context.Context, status ClipStatus) {
	if m == nil {
		return
	}
	m.Clips.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", string(status))),
	)
}

// CountConnect records one voice join attempt.
func (m *Metrics) CountConnect(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.VoiceConnects.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// CountDisconnect records one voice departure.
func (m *Metrics) CountDisconnect(ctx context.Context) {
	if m == nil {
		return
	}
	m.VoiceDisconnects.Add(ctx, 1)
}

// CountMessageSpoken records one accepted message that produced a clip.
func (m *Metrics) CountMessageSpoken(ctx context.Context, guildID string) {
	if m == nil {
		return
	}
	m.MessagesSpoken.Add(ctx, 1,
		metric.WithAttributes(attribute.String("guild_id", guildID)),
	)
}

// AddActiveLinks adjusts the live-connection gauge.
func (m *Metrics) AddActiveLinks(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.ActiveLinks.Add(ctx, delta)
}

// AddQueueDepth adjusts the pending-clip gauge.
func (m *Metrics) AddQueueDepth(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.QueueDepth.Add(ctx, delta)
}

// ObserveTranscode records one transcode/transmit duration.
func (m *Metrics) ObserveTranscode(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.TranscodeDuration.Record(ctx, d.Seconds())
}

// ObserveSynthesis records one synthesis duration for a provider.
func (m *Metrics) ObserveSynthesis(ctx context.Context, provider string, d time.Duration) {
	if m == nil {
		return
	}
	m.SynthesisDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}
