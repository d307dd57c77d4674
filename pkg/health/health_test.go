package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Helpers ---

// toggle is a check whose result can be flipped by the test.
type toggle struct {
	mu    sync.Mutex
	err   error
	calls atomic.Int32
}

func (c *toggle) set(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *toggle) check(context.Context) error {
	c.calls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func probeOf(h *Health, name string) *probe {
	for _, p := range h.probes {
		if p.name == name {
			return p
		}
	}
	return nil
}

func serve(handler http.HandlerFunc, path string) (int, statusResponse, http.Header) {
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body statusResponse
	_ = json.NewDecoder(w.Body).Decode(&body)
	return w.Code, body, w.Header()
}

// --- Tests ---

func TestLiveEndpoint(t *testing.T) {
	h := New()
	db := &toggle{}
	h.AddLivenessCheck("db", time.Second, db.check)

	code, body, hdr := serve(h.LiveEndpoint, "/livez")
	assert.Equal(t, http.StatusOK, code, "checks start healthy")
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "application/json", hdr.Get("Content-Type"))
	assert.Equal(t, "no-store", hdr.Get("Cache-Control"))

	db.set(errors.New("connection refused"))
	p := probeOf(h, "db")
	for range FailureThreshold - 1 {
		p.poll(context.Background())
	}
	code, _, _ = serve(h.LiveEndpoint, "/livez")
	assert.Equal(t, http.StatusOK, code, "below the failure threshold")

	p.poll(context.Background())
	code, body, _ = serve(h.LiveEndpoint, "/livez")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, map[string]string{"db": "connection refused"}, body.Checks)

	db.set(nil)
	p.poll(context.Background())
	code, _, _ = serve(h.LiveEndpoint, "/livez")
	assert.Equal(t, http.StatusOK, code, "one success recovers")
}

func TestReadyEndpoint_Gate(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, func(context.Context) error { return nil })

	code, body, _ := serve(h.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "_readiness")
	assert.False(t, h.IsReady())

	h.SetReady(true)
	code, _, _ = serve(h.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	code, _, _ = serve(h.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReadyEndpoint_IgnoresLivenessFailures(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.AddLivenessCheck("goroutines", time.Second, func(context.Context) error { return errors.New("leak") })
	h.AddReadinessCheck("redis", time.Second, func(context.Context) error { return errors.New("timeout") })

	for _, p := range h.probes {
		for range FailureThreshold {
			p.poll(context.Background())
		}
	}

	_, ready, _ := serve(h.ReadyEndpoint, "/readyz")
	assert.Equal(t, map[string]string{"redis": "timeout"}, ready.Checks)

	_, live, _ := serve(h.LiveEndpoint, "/livez")
	assert.Equal(t, map[string]string{"goroutines": "leak"}, live.Checks)
}

func TestStartPollsUntilStop(t *testing.T) {
	h := New()
	c := &toggle{}
	h.AddReadinessCheck("mongodb", time.Second, c.check)
	h.SetReady(true)

	h.Start(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool { return c.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	c.set(errors.New("no primary"))
	require.Eventually(t, func() bool { return !h.IsReady() }, time.Second, 5*time.Millisecond)

	h.Stop()
	after := c.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, c.calls.Load(), "no polling after Stop")

	h.Stop()
}

func TestCheckTimeout(t *testing.T) {
	h := New()
	h.AddReadinessCheck("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	p := probeOf(h, "slow")
	for range FailureThreshold {
		p.poll(context.Background())
	}
	assert.Equal(t, context.DeadlineExceeded.Error(), p.failure())
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.AddReadinessCheck("db", time.Second, func(context.Context) error { return nil })
	h.Start(context.Background(), time.Millisecond)
	defer h.Stop()

	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			for range 50 {
				serve(h.ReadyEndpoint, "/readyz")
				serve(h.LiveEndpoint, "/livez")
				h.SetReady(true)
			}
		})
	}
	wg.Wait()
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	require.Error(t, GoroutineCountCheck(0)(context.Background()))
}

func TestPingCheck(t *testing.T) {
	ok := PingCheck("redis", pingerFunc(func(context.Context) error { return nil }))
	require.NoError(t, ok(context.Background()))

	down := PingCheck("redis", pingerFunc(func(context.Context) error { return errors.New("refused") }))
	err := down(context.Background())
	require.Error(t, err)
	assert.Equal(t, "ping redis: refused", err.Error())
}
