// Package health exposes Kubernetes-style /livez and /readyz probe
// endpoints backed by periodically executed checks.
//
// Checks run on a shared interval in background goroutines and flip state
// through streak thresholds so a single hiccup does not flap the probe: a
// check turns unhealthy after failAfter consecutive failures and recovers
// after recoverAfter consecutive passes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc probes one dependency; nil means healthy.
type CheckFunc func(ctx context.Context) error

const (
	failAfter    = 3
	recoverAfter = 1
)

// probe is one registered check plus its streak state. Everything under mu
// is written by the single run loop and read by the HTTP endpoints.
type probe struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	mu         sync.Mutex
	healthy    bool
	lastErr    error
	failStreak int
	okStreak   int
}

func newProbe(name string, timeout time.Duration, fn CheckFunc) *probe {
	// Start healthy so a slow dependency does not fail probes during boot.
	return &probe{name: name, timeout: timeout, fn: fn, healthy: true}
}

// run executes the check once and advances the streak counters.
func (p *probe) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.fn(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = err
	if err != nil {
		p.okStreak = 0
		p.failStreak++
		if p.failStreak >= failAfter {
			p.healthy = false
		}
		return
	}
	p.failStreak = 0
	p.okStreak++
	if p.okStreak >= recoverAfter {
		p.healthy = true
	}
}

func (p *probe) ok() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.healthy
}

// failure returns the message to report for this probe, and whether it is
// currently failing.
func (p *probe) failure() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.healthy {
		return "", false
	}
	if p.lastErr != nil {
		return p.lastErr.Error(), true
	}
	return "check is unhealthy", true
}

func (p *probe) lastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Health tracks liveness and readiness probes for one service.
type Health struct {
	ready atomic.Bool

	// mu guards the probe slices and cancel; probes carry their own locks.
	mu        sync.RWMutex
	liveness  []*probe
	readiness []*probe
	cancel    context.CancelFunc
}

// New returns a Health that reports not-ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a process-health check such as goroutine
// count or GC pause duration. Register before Start.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newProbe(name, timeout, fn))
}

// AddReadinessCheck registers a traffic-readiness check such as database
// connectivity. Register before Start.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newProbe(name, timeout, fn))
}

// Start launches one goroutine per registered probe, each running its
// check immediately and then every interval until ctx or Stop cancels it.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	probes := make([]*probe, 0, len(h.liveness)+len(h.readiness))
	probes = append(probes, h.liveness...)
	probes = append(probes, h.readiness...)
	h.mu.Unlock()

	for _, p := range probes {
		go func(p *probe) {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			p.run(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					p.run(ctx)
				}
			}
		}(p)
	}
}

// SetReady flips the manual readiness gate. Set true once initialization
// finishes; set false at the start of graceful shutdown to shed traffic.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the manual gate is open and every readiness
// probe passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	h.mu.RLock()
	probes := h.readiness
	h.mu.RUnlock()
	for _, p := range probes {
		if !p.ok() {
			return false
		}
	}
	return true
}

// Stop cancels the probe goroutines. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 while every liveness probe passes, 503
// with per-check messages otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	probes := append([]*probe(nil), h.liveness...)
	h.mu.RUnlock()

	report(w, failures(probes))
}

// ReadyEndpoint serves /readyz: 200 once SetReady(true) was called and
// every readiness probe passes, 503 with details otherwise.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	probes := append([]*probe(nil), h.readiness...)
	h.mu.RUnlock()

	failed := failures(probes)
	if !h.ready.Load() {
		failed["_readiness"] = "service is not ready"
	}
	report(w, failed)
}

func failures(probes []*probe) map[string]string {
	failed := make(map[string]string)
	for _, p := range probes {
		if msg, bad := p.failure(); bad {
			failed[p.name] = msg
		}
	}
	return failed
}

func report(w http.ResponseWriter, failed map[string]string) {
	resp := statusResponse{Status: "ok"}
	code := http.StatusOK
	if len(failed) > 0 {
		resp = statusResponse{Status: "unhealthy", Checks: failed}
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
