package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
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

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
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

// sumByAttr returns the value of the data point of an int64 sum whose
// attribute key equals value.
func sumByAttr(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	t.Fatalf("metric %q has no data point with %s=%s", name, key, value)
	return 0
}

func TestRecordCommand(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCommand(ctx, "id", "ok", 10*time.Millisecond)
	m.RecordCommand(ctx, "id", "ok", 20*time.Millisecond)
	m.RecordCommand(ctx, "start", "error", time.Second)

	rm := collect(t, reader)
	if got := sumByAttr(t, rm, "tailbot.commands.dispatched", "status", "ok"); got != 2 {
		t.Errorf("ok commands = %d, want 2", got)
	}
	if got := sumByAttr(t, rm, "tailbot.commands.dispatched", "command", "start"); got != 1 {
		t.Errorf("start commands = %d, want 1", got)
	}

	hist, ok := findMetric(rm, "tailbot.command.duration").Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("command duration is not a histogram")
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 3 {
		t.Errorf("duration samples = %d, want 3", count)
	}
}

func TestRecordVoiceEventAndAudio(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordVoiceEvent(ctx, "audio_packet")
	m.RecordVoiceEvent(ctx, "audio_packet")
	m.RecordVoiceEvent(ctx, "client_disconnect")
	m.RecordAudio(ctx, 1920)

	rm := collect(t, reader)
	if got := sumByAttr(t, rm, "tailbot.voice.events", "kind", "audio_packet"); got != 2 {
		t.Errorf("audio_packet events = %d, want 2", got)
	}

	for name, want := range map[string]int64{
		"tailbot.voice.audio.samples": 1920,
		"tailbot.voice.audio.bytes":   3840,
	} {
		met := findMetric(rm, name)
		if met == nil {
			t.Fatalf("metric %q not found", name)
		}
		sum, ok := met.Data.(metricdata.Sum[int64])
		if !ok || len(sum.DataPoints) == 0 {
			t.Fatalf("metric %q has no sum data", name)
		}
		if got := sum.DataPoints[0].Value; got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
}

func TestRecordJoinAndPlayback(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordJoin(ctx, "ok", 300*time.Millisecond)
	m.RecordJoin(ctx, "error", 10*time.Second)
	m.RecordPlayback(ctx, "ok")
	m.RecordPlayback(ctx, "not_connected")
	m.RecordPlayback(ctx, "not_connected")

	rm := collect(t, reader)
	if got := sumByAttr(t, rm, "tailbot.voice.joins", "status", "error"); got != 1 {
		t.Errorf("failed joins = %d, want 1", got)
	}
	if got := sumByAttr(t, rm, "tailbot.playback.starts", "status", "not_connected"); got != 2 {
		t.Errorf("not_connected playbacks = %d, want 2", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	// DefaultMetrics uses the global OTel provider so we just check
	// that repeated calls return the same pointer.
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}

func TestSessionAndTargetCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)
	m.TargetUpdates.Add(ctx, 3)

	rm := collect(t, reader)
	for name, want := range map[string]int64{
		"tailbot.active_sessions": 1,
		"tailbot.target.updates":  3,
	} {
		met := findMetric(rm, name)
		if met == nil {
			t.Fatalf("metric %q not found", name)
		}
		sum, ok := met.Data.(metricdata.Sum[int64])
		if !ok || len(sum.DataPoints) != 1 {
			t.Fatalf("%s: want a single sum data point, got %+v", name, met.Data)
		}
		if got := sum.DataPoints[0].Value; got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
}
