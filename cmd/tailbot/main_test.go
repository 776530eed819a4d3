package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/tailbot/internal/config"
	"github.com/MrWong99/tailbot/internal/health"
	"github.com/MrWong99/tailbot/internal/observe"
	"github.com/MrWong99/tailbot/internal/resilience"
)

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

func TestNewMux_Routes(t *testing.T) {
	t.Parallel()

	var (
		ready  atomic.Bool
		paused atomic.Bool
	)
	joins := func() error {
		if paused.Load() {
			return resilience.ErrCircuitOpen
		}
		return nil
	}
	h := newMux(opsProbes(ready.Load, joins), testMetrics(t))

	tests := []struct {
		path       string
		ready      bool
		paused     bool
		want       int
		wantStatus string
	}{
		{path: "/healthz", want: http.StatusOK, wantStatus: health.StatusOK},
		{path: "/readyz", want: http.StatusServiceUnavailable, wantStatus: health.StatusFail},
		{path: "/readyz", ready: true, want: http.StatusOK, wantStatus: health.StatusOK},
		{path: "/readyz", ready: true, paused: true, want: http.StatusOK, wantStatus: health.StatusDegraded},
		{path: "/metrics", want: http.StatusOK},
		{path: "/nope", ready: true, want: http.StatusNotFound},
	}

	for _, tt := range tests {
		ready.Store(tt.ready)
		paused.Store(tt.paused)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("GET %s (ready=%v paused=%v) = %d, want %d", tt.path, tt.ready, tt.paused, rec.Code, tt.want)
		}
		if tt.wantStatus == "" {
			continue
		}
		var body health.Report
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("GET %s: decode: %v", tt.path, err)
		}
		if body.Status != tt.wantStatus {
			t.Errorf("GET %s status = %q, want %q", tt.path, body.Status, tt.wantStatus)
		}
	}
}

func TestApplyReload(t *testing.T) {
	t.Parallel()

	var level slog.LevelVar
	var source atomic.Pointer[string]
	initial := "assets/stream.mp3"
	source.Store(&initial)

	applyReload(config.ConfigDiff{
		LogLevelChanged: true,
		NewLogLevel:     config.LogDebug,
		SourceChanged:   true,
		NewSource:       "https://example.com/radio.mp3",
		RestartRequired: []string{"discord.token"},
	}, &level, &source)

	if level.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", level.Level())
	}
	if got := *source.Load(); got != "https://example.com/radio.mp3" {
		t.Errorf("source = %q", got)
	}

	applyReload(config.ConfigDiff{}, &level, &source)
	if level.Level() != slog.LevelDebug {
		t.Errorf("empty diff changed level to %v", level.Level())
	}
}

func TestExitStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "clean", err: nil, want: 0},
		{name: "signal", err: context.Canceled, want: 0},
		{name: "register failed", err: fmt.Errorf("discord: register commands: %w", errors.New("50035 invalid form body")), want: 1},
		{name: "deadline", err: context.DeadlineExceeded, want: 1},
	}
	for _, tt := range tests {
		if got := exitStatus(tt.err); got != tt.want {
			t.Errorf("%s: exitStatus(%v) = %d, want %d", tt.name, tt.err, got, tt.want)
		}
	}
}
