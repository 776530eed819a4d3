// Package playback starts audio playback in a voice session. A [Decoder]
// turns a locator (file path or URL) into 48 kHz stereo s16le PCM, and the
// [Controller] hands that stream to the session.
package playback

import (
	"context"
	"errors"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/tailbot/internal/observe"
	"github.com/MrWong99/tailbot/internal/session"
)

// DefaultOpenTimeout bounds how long opening a source may take.
const DefaultOpenTimeout = 5 * time.Second

// Decoder opens an audio source as raw PCM: signed 16-bit little-endian,
// 48 kHz, two interleaved channels. Implementations must honour ctx while
// opening; the returned stream outlives ctx.
type Decoder interface {
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
}

// DecoderFunc adapts a function to the [Decoder] interface.
type DecoderFunc func(ctx context.Context, locator string) (io.ReadCloser, error)

// Open implements [Decoder].
func (f DecoderFunc) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	return f(ctx, locator)
}

// Controller plays audio sources into voice sessions. It is safe for
// concurrent use.
type Controller struct {
	decoder     Decoder
	openTimeout time.Duration
	metrics     *observe.Metrics
}

// Option configures a [Controller].
type Option func(*Controller)

// WithOpenTimeout overrides [DefaultOpenTimeout]. Non-positive values are
// ignored.
func WithOpenTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.openTimeout = d
		}
	}
}

// WithMetrics sets the metrics recorder. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// New returns a Controller that opens sources with decoder.
func New(decoder Decoder, opts ...Option) *Controller {
	c := &Controller{
		decoder:     decoder,
		openTimeout: DefaultOpenTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Play opens locator and starts playing it in sess, replacing any current
// track. It returns as soon as playback has started.
//
// Errors are always [*Error]. The session is left untouched on failure.
func (c *Controller) Play(ctx context.Context, locator string, sess *session.Session) (err error) {
	ctx, span := observe.StartSpan(ctx, "playback.play")
	defer span.End()
	span.SetAttributes(attribute.String("locator", locator))

	defer func() {
		status := "ok"
		if err != nil {
			var pe *Error
			if errors.As(err, &pe) && errors.Is(pe.Reason, ErrNotConnected) {
				status = "not_connected"
			} else {
				status = "source_unavailable"
			}
			observe.SpanError(span, err)
		}
		c.metrics.RecordPlayback(ctx, status)
	}()

	if sess == nil || sess.State() != session.Connected {
		return &Error{Reason: ErrNotConnected, Locator: locator}
	}

	octx, cancel := context.WithTimeout(ctx, c.openTimeout)
	defer cancel()

	src, err := c.decoder.Open(octx, locator)
	if err != nil {
		return &Error{Reason: ErrSourceUnavailable, Locator: locator, Err: err}
	}

	if err := sess.Play(src); err != nil {
		if errors.Is(err, session.ErrNotConnected) {
			return &Error{Reason: ErrNotConnected, Locator: locator}
		}
		return &Error{Reason: ErrNotConnected, Locator: locator, Err: err}
	}

	observe.Logger(ctx).Info("playback: started",
		"guild_id", sess.GuildID, "channel_id", sess.ChannelID, "locator", locator)
	return nil
}
