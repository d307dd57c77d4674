// Package health serves the /livez and /readyz probes of the API.
//
// Every check is polled in the background and the endpoints only report the
// last observed state, so a slow dependency never blocks a probe. A check
// turns unhealthy after FailureThreshold consecutive failures and recovers on
// the first success.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"
)

// FailureThreshold is the number of consecutive failures that mark a check
// unhealthy.
const FailureThreshold = 3

// CheckFunc reports whether a component is healthy. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// Kind tells which probe a check contributes to.
type Kind int

const (
	// Liveness checks decide whether the process should be restarted.
	Liveness Kind = iota
	// Readiness checks decide whether the process should receive traffic.
	Readiness
)

type probe struct {
	name    string
	kind    Kind
	timeout time.Duration
	check   CheckFunc

	mu      sync.Mutex
	fails   int
	lastErr error
}

// poll runs the check once. Only the probe's own goroutine calls it.
func (p *probe) poll(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.check(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = err
	if err == nil {
		p.fails = 0
		return
	}
	p.fails++
}

// failure returns the reason the probe is unhealthy, or "" when it is healthy.
func (p *probe) failure() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fails < FailureThreshold {
		return ""
	}
	if p.lastErr == nil {
		return "check is unhealthy"
	}
	return p.lastErr.Error()
}

// Health aggregates the liveness and readiness checks of the service.
type Health struct {
	mu     sync.RWMutex
	probes []*probe
	ready  bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Health. It reports not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// Add registers a check. Checks added after Start are not polled.
func (h *Health) Add(kind Kind, name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes = append(h.probes, &probe{name: name, kind: kind, timeout: timeout, check: check})
}

// AddLivenessCheck registers a liveness check, e.g. a goroutine leak detector.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.Add(Liveness, name, timeout, check)
}

// AddReadinessCheck registers a readiness check, e.g. a database ping.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.Add(Readiness, name, timeout, check)
}

// Start polls every registered check at interval until Stop is called or ctx
// is cancelled.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		return
	}
	ctx, h.cancel = context.WithCancel(ctx)

	for _, p := range h.probes {
		h.wg.Go(func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				p.poll(ctx)
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		})
	}
}

// Stop cancels polling and waits for in-flight checks. It is safe to call
// more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	cancel := h.cancel
	h.cancel = nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	h.wg.Wait()
}

// SetReady toggles the manual readiness gate. The server sets it after
// startup and clears it at the beginning of a graceful shutdown.
func (h *Health) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// IsReady reports whether the gate is open and every readiness check passes.
func (h *Health) IsReady() bool {
	failures, ready := h.failures(Readiness)
	return ready && len(failures) == 0
}

func (h *Health) failures(kind Kind) (map[string]string, bool) {
	h.mu.RLock()
	probes := slices.Clone(h.probes)
	ready := h.ready
	h.mu.RUnlock()

	failures := make(map[string]string)
	for _, p := range probes {
		if p.kind != kind {
			continue
		}
		if msg := p.failure(); msg != "" {
			failures[p.name] = msg
		}
	}
	return failures, ready
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 while every liveness check passes, 503
// listing the failing checks otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures, _ := h.failures(Liveness)
	writeStatus(w, failures)
}

// ReadyEndpoint serves /readyz. It also fails while the readiness gate is
// closed.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures, ready := h.failures(Readiness)
	if !ready {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

func writeStatus(w http.ResponseWriter, failures map[string]string) {
	resp := statusResponse{Status: "ok"}
	code := http.StatusOK
	if len(failures) > 0 {
		resp = statusResponse{Status: "unhealthy", Checks: failures}
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
