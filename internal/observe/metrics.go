// Package observe provides application-wide observability primitives for
// tailbot: OpenTelemetry metrics, distributed tracing, trace-aware logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all tailbot metrics.
const meterName = "github.com/MrWong99/tailbot"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Commands ---

	// CommandsDispatched counts handled slash commands. Use with attributes:
	//   attribute.String("command", ...), attribute.String("status", ...)
	CommandsDispatched metric.Int64Counter

	// CommandDuration tracks handler latency. Use with attribute:
	//   attribute.String("command", ...)
	CommandDuration metric.Float64Histogram

	// TargetUpdates counts successful set_target invocations.
	TargetUpdates metric.Int64Counter

	// --- Voice ---

	// VoiceEvents counts multiplexed voice events. Use with attribute:
	//   attribute.String("kind", ...)
	VoiceEvents metric.Int64Counter

	// VoiceAudioBytes counts decoded PCM bytes received from all speakers.
	VoiceAudioBytes metric.Int64Counter

	// VoiceAudioSamples counts decoded PCM samples received from all speakers.
	VoiceAudioSamples metric.Int64Counter

	// VoiceJoins counts join attempts. Use with attribute:
	//   attribute.String("status", ...)
	VoiceJoins metric.Int64Counter

	// JoinDuration tracks how long establishing a voice connection takes.
	JoinDuration metric.Float64Histogram

	// ActiveSessions tracks the number of live voice sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- Playback ---

	// PlaybackStarts counts playback requests. Use with attribute:
	//   attribute.String("status", ...)
	PlaybackStarts metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) covering
// both instant replies and slow voice handshakes.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Commands.
	if met.CommandsDispatched, err = m.Int64Counter("tailbot.commands.dispatched",
		metric.WithDescription("Total slash commands handled by command and status."),
	); err != nil {
		return nil, err
	}
	if met.CommandDuration, err = m.Float64Histogram("tailbot.command.duration",
		metric.WithDescription("Latency of slash command handlers."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TargetUpdates, err = m.Int64Counter("tailbot.target.updates",
		metric.WithDescription("Total changes of the followed user."),
	); err != nil {
		return nil, err
	}

	// Voice.
	if met.VoiceEvents, err = m.Int64Counter("tailbot.voice.events",
		metric.WithDescription("Total voice events by kind."),
	); err != nil {
		return nil, err
	}
	if met.VoiceAudioBytes, err = m.Int64Counter("tailbot.voice.audio.bytes",
		metric.WithDescription("Decoded PCM bytes received."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.VoiceAudioSamples, err = m.Int64Counter("tailbot.voice.audio.samples",
		metric.WithDescription("Decoded PCM samples received."),
	); err != nil {
		return nil, err
	}
	if met.VoiceJoins, err = m.Int64Counter("tailbot.voice.joins",
		metric.WithDescription("Total voice join attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.JoinDuration, err = m.Float64Histogram("tailbot.voice.join.duration",
		metric.WithDescription("Latency of establishing a voice connection."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("tailbot.active_sessions",
		metric.WithDescription("Number of live voice sessions."),
	); err != nil {
		return nil, err
	}

	// Playback.
	if met.PlaybackStarts, err = m.Int64Counter("tailbot.playback.starts",
		metric.WithDescription("Total playback requests by status."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("tailbot.http.request.duration",
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

// RecordCommand records one handled command with its outcome and latency.
func (m *Metrics) RecordCommand(ctx context.Context, command, status string, d time.Duration) {
	m.CommandsDispatched.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("command", command),
			attribute.String("status", status),
		),
	)
	m.CommandDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("command", command)),
	)
}

// RecordVoiceEvent records one multiplexed voice event.
func (m *Metrics) RecordVoiceEvent(ctx context.Context, kind string) {
	m.VoiceEvents.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordAudio records the size of one decoded audio payload.
func (m *Metrics) RecordAudio(ctx context.Context, samples int) {
	m.VoiceAudioSamples.Add(ctx, int64(samples))
	m.VoiceAudioBytes.Add(ctx, int64(samples)*2)
}

// RecordJoin records the outcome and latency of one join attempt.
func (m *Metrics) RecordJoin(ctx context.Context, status string, d time.Duration) {
	m.VoiceJoins.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	m.JoinDuration.Record(ctx, d.Seconds())
}

// RecordPlayback records the outcome of one playback request.
func (m *Metrics) RecordPlayback(ctx context.Context, status string) {
	m.PlaybackStarts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
