package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Quota is the outcome of one rate limit decision.
type Quota struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter counts requests per key. Implementations must be safe for
// concurrent use.
type Limiter interface {
	Allow(ctx context.Context, key string) (Quota, error)
}

// RateLimitConfig configures RateLimit.
type RateLimitConfig struct {
	// Max is the number of requests allowed per Window.
	Max    int
	Window time.Duration
	// KeyFunc extracts the client key. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
	// Skip exempts matching requests from counting.
	Skip func(*http.Request) bool
	// Limiter defaults to an in-process WindowLimiter built from Max and
	// Window. Use a shared limiter when running several replicas.
	Limiter Limiter
}

// RateLimit rejects clients over their quota with 429. Every response carries
// X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset. Limiter
// errors let the request through.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Limiter == nil {
		cfg.Limiter = NewWindowLimiter(cfg.Max, cfg.Window)
	}
	return rateLimit(cfg)
}

// RateLimitWithCleanup is RateLimit with a default in-process limiter whose
// idle clients are evicted until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	if cfg.Limiter == nil {
		wl := NewWindowLimiter(cfg.Max, cfg.Window)
		go wl.Sweep(ctx)
		cfg.Limiter = wl
	}
	return rateLimit(cfg)
}

func rateLimit(cfg RateLimitConfig) Middleware {
	keyOf := cfg.KeyFunc
	if keyOf == nil {
		keyOf = ClientIP
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}
			q, err := cfg.Limiter.Allow(r.Context(), keyOf(r))
			if err != nil {
				zctx.From(r.Context()).Warn("Rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(q.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(q.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(q.Reset.Unix(), 10))

			if !q.Allowed {
				wait := max(time.Until(q.Reset), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SkipPaths exempts requests for the given exact paths.
func SkipPaths(paths ...string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.URL.Path]
		return ok
	}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// remote address host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// window holds the counts of the current and the previous fixed window.
type window struct {
	start time.Time
	curr  int
	prev  int
}

// WindowLimiter is an in-process sliding window counter. The previous
// window's count is weighted by how much of it still overlaps the sliding
// window.
type WindowLimiter struct {
	max    int
	period time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*window
}

var _ Limiter = (*WindowLimiter)(nil)

// NewWindowLimiter allows limit requests per period and client.
func NewWindowLimiter(limit int, period time.Duration) *WindowLimiter {
	return &WindowLimiter{
		max:     limit,
		period:  period,
		now:     time.Now,
		clients: make(map[string]*window),
	}
}

func (l *WindowLimiter) Allow(_ context.Context, key string) (Quota, error) {
	now := l.now()
	start := now.Truncate(l.period)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.clients[key]
	switch {
	case !ok:
		w = &window{start: start}
		l.clients[key] = w
	case start.Sub(w.start) == l.period:
		w.start, w.prev, w.curr = start, w.curr, 0
	case start.After(w.start):
		w.start, w.prev, w.curr = start, 0, 0
	}

	overlap := 1 - float64(now.Sub(start))/float64(l.period)
	used := int(math.Ceil(float64(w.prev)*overlap)) + w.curr

	q := Quota{Limit: l.max, Reset: start.Add(l.period)}
	if used >= l.max {
		return q, nil
	}
	w.curr++
	q.Allowed = true
	q.Remaining = l.max - used - 1
	return q, nil
}

// Sweep evicts clients idle for two periods, once per period, until ctx is
// done.
func (l *WindowLimiter) Sweep(ctx context.Context) {
	ticker := time.NewTicker(l.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evict(l.now())
		}
	}
}

func (l *WindowLimiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.clients {
		if now.Sub(w.start) >= 2*l.period {
			delete(l.clients, key)
		}
	}
}
