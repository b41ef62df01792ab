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

	"github.com/go-faster/jx"
)

// RateLimitConfig configures the per-client token bucket limiter.
type RateLimitConfig struct {
	// Max is the bucket capacity: how many requests a client may burst
	// before refill pacing takes over.
	Max int
	// Window is how long an empty bucket takes to refill completely, so the
	// sustained rate works out to Max requests per Window.
	Window time.Duration
	// KeyFunc derives the bucket key for a request. When nil the client IP
	// is used, taken from X-Forwarded-For, X-Real-IP, or RemoteAddr.
	KeyFunc func(*http.Request) string
}

// bucket holds the token balance for one client as of refilledAt.
type bucket struct {
	tokens     float64
	refilledAt time.Time
}

type limiter struct {
	cfg  RateLimitConfig
	rate float64 // tokens per second

	mu      sync.Mutex
	buckets map[string]*bucket
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = clientIP
	}
	return &limiter{
		cfg:     cfg,
		rate:    float64(cfg.Max) / cfg.Window.Seconds(),
		buckets: make(map[string]*bucket),
	}
}

// take attempts to spend one token from the bucket for key. It reports the
// remaining whole tokens, when the bucket will be full again, and how long
// the caller must wait for the next token when the spend is refused.
func (l *limiter) take(key string, now time.Time) (remaining int, fullAt time.Time, wait time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, exists := l.buckets[key]
	if !exists {
		// New clients start with a full bucket.
		b = &bucket{tokens: float64(l.cfg.Max), refilledAt: now}
		l.buckets[key] = b
	} else {
		b.tokens = math.Min(float64(l.cfg.Max), b.tokens+now.Sub(b.refilledAt).Seconds()*l.rate)
		b.refilledAt = now
	}

	if b.tokens < 1 {
		wait = time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
		fullAt = now.Add(time.Duration((float64(l.cfg.Max) - b.tokens) / l.rate * float64(time.Second)))
		return 0, fullAt, wait, false
	}

	b.tokens--
	fullAt = now.Add(time.Duration((float64(l.cfg.Max) - b.tokens) / l.rate * float64(time.Second)))
	return int(b.tokens), fullAt, 0, true
}

// sweep drops buckets that have refilled completely since their last use;
// a full bucket is indistinguishable from a fresh one.
func (l *limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, b := range l.buckets {
		if now.Sub(b.refilledAt) >= l.cfg.Window {
			delete(l.buckets, key)
		}
	}
}

func (l *limiter) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.sweep(now)
		}
	}
}

// RateLimit returns a middleware enforcing a per-key token bucket limit.
// Refused requests get 429 with a JSON body; every response carries
// X-RateLimit-Limit, X-RateLimit-Remaining, and X-RateLimit-Reset.
//
// Idle buckets are never evicted by this variant; use RateLimitWithCleanup
// for long-running servers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return limitMiddleware(newLimiter(cfg))
}

// RateLimitWithCleanup is RateLimit plus a background sweep goroutine that
// evicts idle buckets once per window. The goroutine exits with ctx.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go l.sweepLoop(ctx)
	return limitMiddleware(l)
}

func limitMiddleware(l *limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, fullAt, wait, ok := l.take(l.cfg.KeyFunc(r), time.Now())

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(fullAt.Unix(), 10))

			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))

				var e jx.Encoder
				e.Obj(func(e *jx.Encoder) {
					e.Field("code", func(e *jx.Encoder) { e.Str("rate_limited") })
					e.Field("message", func(e *jx.Encoder) { e.Str("too many requests") })
				})
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write(e.Bytes())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the caller address for keying: first hop of
// X-Forwarded-For, then X-Real-IP, then the connection's RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
