package observe

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewProviders_ExportsToRegistry(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	p, err := NewProviders(context.Background(), ProviderConfig{Registerer: reg, ServiceVersion: "test"})
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordCommand(context.Background(), "id", "ok", 0)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var found bool
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "tailbot_commands_dispatched") {
			found = true
		}
	}
	if !found {
		t.Error("tailbot_commands_dispatched not exported to the registry")
	}
}

func TestNewProviders_Sampler(t *testing.T) {
	t.Parallel()

	exp := tracetest.NewInMemoryExporter()
	p, err := NewProviders(context.Background(), ProviderConfig{
		Registerer:    prometheus.NewRegistry(),
		TraceExporter: exp,
		Sampler:       sdktrace.NeverSample(),
	})
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}

	_, span := p.Tracer.Tracer("test").Start(context.Background(), "dropped")
	span.End()
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if n := len(exp.GetSpans()); n != 0 {
		t.Errorf("exported spans = %d, want 0", n)
	}
}
