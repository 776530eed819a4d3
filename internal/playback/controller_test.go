package playback

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/tailbot/internal/observe"
	"github.com/MrWong99/tailbot/internal/session"
	"github.com/MrWong99/tailbot/pkg/voice"
	"github.com/MrWong99/tailbot/pkg/voice/mock"
)

type nopEvents struct{}

func (nopEvents) OnEvent(voice.Event) {}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// connectedSession joins a mock platform and returns the session and its link.
func connectedSession(t *testing.T) (*session.Manager, *session.Session, *mock.Link) {
	t.Helper()
	link := mock.NewLink()
	mgr := session.NewManager(&mock.Platform{JoinResult: link}, nopEvents{}, session.WithMetrics(testMetrics(t)))
	t.Cleanup(mgr.Close)
	sess, err := mgr.Join(context.Background(), "g1", "c1")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	return mgr, sess, link
}

// staticDecoder returns a fixed reader for every locator.
func staticDecoder(data string) DecoderFunc {
	return func(context.Context, string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(data)), nil
	}
}

func TestController_Play(t *testing.T) {
	t.Parallel()

	_, sess, link := connectedSession(t)
	var gotLocator string
	dec := DecoderFunc(func(_ context.Context, locator string) (io.ReadCloser, error) {
		gotLocator = locator
		return io.NopCloser(strings.NewReader("pcm")), nil
	})
	c := New(dec, WithMetrics(testMetrics(t)))

	if err := c.Play(context.Background(), "assets/stream.mp3", sess); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if gotLocator != "assets/stream.mp3" {
		t.Errorf("decoder locator = %q", gotLocator)
	}
	if len(link.Played) != 1 {
		t.Fatalf("played = %d, want 1", len(link.Played))
	}
	if sess.State() != session.Connected {
		t.Errorf("state = %v, want connected", sess.State())
	}
}

func TestController_PlayReplacesTrack(t *testing.T) {
	t.Parallel()

	_, sess, link := connectedSession(t)
	c := New(staticDecoder("pcm"), WithMetrics(testMetrics(t)))

	for range 2 {
		if err := c.Play(context.Background(), "a.mp3", sess); err != nil {
			t.Fatalf("Play: %v", err)
		}
	}
	if len(link.Played) != 2 {
		t.Errorf("played = %d, want 2", len(link.Played))
	}
}

func TestController_NotConnected(t *testing.T) {
	t.Parallel()

	opened := false
	dec := DecoderFunc(func(context.Context, string) (io.ReadCloser, error) {
		opened = true
		return io.NopCloser(strings.NewReader("")), nil
	})
	c := New(dec, WithMetrics(testMetrics(t)))

	mgr, sess, _ := connectedSession(t)
	_ = mgr.Leave("g1")

	tests := []struct {
		name string
		sess *session.Session
	}{
		{name: "nil session", sess: nil},
		{name: "left session", sess: sess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Play(context.Background(), "a.mp3", tt.sess)
			var pe *Error
			if !errors.As(err, &pe) {
				t.Fatalf("error = %v, want *Error", err)
			}
			if !errors.Is(err, ErrNotConnected) {
				t.Errorf("reason = %v, want ErrNotConnected", pe.Reason)
			}
		})
	}
	if opened {
		t.Error("decoder opened without a connected session")
	}
}

func TestController_SourceUnavailable(t *testing.T) {
	t.Parallel()

	_, sess, link := connectedSession(t)
	cause := errors.New("no such file")
	dec := DecoderFunc(func(context.Context, string) (io.ReadCloser, error) {
		return nil, cause
	})
	c := New(dec, WithMetrics(testMetrics(t)))

	err := c.Play(context.Background(), "missing.mp3", sess)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("error = %v, want ErrSourceUnavailable", err)
	}
	if !errors.Is(err, cause) {
		t.Error("error does not wrap the decoder cause")
	}
	if !strings.Contains(err.Error(), "missing.mp3") {
		t.Errorf("Error() = %q, want the locator in it", err.Error())
	}
	if len(link.Played) != 0 {
		t.Error("session received a stream despite the failure")
	}
	if sess.State() != session.Connected {
		t.Errorf("state = %v, want connected", sess.State())
	}
}

func TestController_OpenTimeout(t *testing.T) {
	t.Parallel()

	_, sess, _ := connectedSession(t)
	dec := DecoderFunc(func(ctx context.Context, _ string) (io.ReadCloser, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	c := New(dec, WithOpenTimeout(20*time.Millisecond), WithMetrics(testMetrics(t)))

	start := time.Now()
	err := c.Play(context.Background(), "slow://stream", sess)
	if !errors.Is(err, ErrSourceUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want source unavailable after deadline", err)
	}
	if time.Since(start) > time.Second {
		t.Error("open timeout not applied")
	}
}

func TestController_LinkRejectsStream(t *testing.T) {
	t.Parallel()

	_, sess, link := connectedSession(t)
	link.PlayError = errors.New("link closed")
	c := New(staticDecoder("pcm"), WithMetrics(testMetrics(t)))

	err := c.Play(context.Background(), "a.mp3", sess)
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("error = %v, want ErrNotConnected", err)
	}
}

func TestError_Message(t *testing.T) {
	t.Parallel()

	e := &Error{Reason: ErrNotConnected, Locator: "a.mp3"}
	if got, want := e.Error(), "playback: a.mp3: not connected to a voice channel"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
