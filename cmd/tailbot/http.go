package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/tailbot/internal/health"
	"github.com/MrWong99/tailbot/internal/observe"
)

// opsProbes builds the readiness probes: the gateway connection is
// critical, a paused voice join breaker only degrades.
func opsProbes(gatewayReady func() bool, joins func() error) []health.Probe {
	return []health.Probe{
		health.Flag("gateway", gatewayReady),
		{Name: "voice_join", Check: func(context.Context) error { return joins() }},
	}
}

// newMux serves /healthz, /readyz and /metrics.
func newMux(probes []health.Probe, metrics *observe.Metrics) http.Handler {
	mux := http.NewServeMux()
	health.New(probes, health.WithVersion(version)).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	return observe.Middleware(metrics)(mux)
}

func newHTTPServer(addr string, probes []health.Probe, metrics *observe.Metrics) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           newMux(probes, metrics),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
