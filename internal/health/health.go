// Package health serves the liveness and readiness endpoints of tailbot.
//
// /healthz answers 200 while the process can serve HTTP. /readyz runs every
// [Probe] concurrently: a failing critical probe makes it answer 503, a
// failing non-critical probe only marks the bot "degraded" (still 200).
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// probeTimeout bounds a single probe.
const probeTimeout = 5 * time.Second

// Overall readiness states.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFail     = "fail"
)

// ErrNotReady is returned by [Flag] probes while the flag is unset.
var ErrNotReady = errors.New("not ready")

// Probe is a named readiness check. Check returns nil when the dependency is
// usable and must honour ctx.
type Probe struct {
	Name     string
	Check    func(ctx context.Context) error
	Critical bool
}

// Flag returns a critical probe that passes while ready reports true. It
// suits state pushed by callbacks, like the gateway Ready event.
func Flag(name string, ready func() bool) Probe {
	return Probe{
		Name:     name,
		Critical: true,
		Check: func(context.Context) error {
			if !ready() {
				return ErrNotReady
			}
			return nil
		},
	}
}

// CheckResult is one probe's outcome in the /readyz body.
type CheckResult struct {
	Name     string `json:"name"`
	OK       bool   `json:"ok"`
	Critical bool   `json:"critical"`
	Error    string `json:"error,omitempty"`
	Millis   int64  `json:"duration_ms"`
}

// Report is the JSON body of both endpoints.
type Report struct {
	Status  string        `json:"status"`
	Version string        `json:"version,omitempty"`
	Uptime  string        `json:"uptime"`
	Checks  []CheckResult `json:"checks,omitempty"`
}

// Option configures a [Handler].
type Option func(*Handler)

// WithVersion sets the version reported by both endpoints.
func WithVersion(v string) Option {
	return func(h *Handler) { h.version = v }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// Handler serves /healthz and /readyz. The probe list is fixed at
// construction.
type Handler struct {
	probes  []Probe
	version string
	now     func() time.Time
	started time.Time
}

// New returns a Handler evaluating probes on each /readyz request.
func New(probes []Probe, opts ...Option) *Handler {
	h := &Handler{probes: append([]Probe(nil), probes...), now: time.Now}
	for _, o := range opts {
		o(h)
	}
	h.started = h.now()
	return h
}

// Healthz always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.report(StatusOK, nil))
}

// Readyz runs all probes and answers 503 if a critical one failed.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	results := h.Run(r.Context())

	status := StatusOK
	for _, res := range results {
		switch {
		case res.OK:
		case res.Critical:
			status = StatusFail
		case status == StatusOK:
			status = StatusDegraded
		}
	}
	code := http.StatusOK
	if status == StatusFail {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, h.report(status, results))
}

// Run evaluates every probe concurrently and returns the results in probe
// order.
func (h *Handler) Run(ctx context.Context) []CheckResult {
	results := make([]CheckResult, len(h.probes))
	var g errgroup.Group
	for i, p := range h.probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()

			start := time.Now()
			err := p.Check(pctx)
			res := CheckResult{
				Name:     p.Name,
				OK:       err == nil,
				Critical: p.Critical,
				Millis:   time.Since(start).Milliseconds(),
			}
			if err != nil {
				res.Error = err.Error()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Register mounts both endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func (h *Handler) report(status string, checks []CheckResult) Report {
	return Report{
		Status:  status,
		Version: h.version,
		Uptime:  h.now().Sub(h.started).Round(time.Second).String(),
		Checks:  checks,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
