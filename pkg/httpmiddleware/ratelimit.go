package httpmiddleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// RateLimitConfig configures the sliding window limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window. Zero disables the
	// limiter.
	Max    int
	Window time.Duration
	// Keys bounds the number of tracked clients.
	Keys int
	// KeyFunc extracts the client key. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
}

// window tracks the counts of the current and the previous fixed window.
type window struct {
	prev, curr float64
	start      time.Time
}

type limiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	windows *expirable.LRU[string, *window]
	now     func() time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.Keys <= 0 {
		cfg.Keys = 100000
	}
	return &limiter{
		cfg:     cfg,
		windows: expirable.NewLRU[string, *window](cfg.Keys, nil, 2*cfg.Window),
		now:     time.Now,
	}
}

// allow records a request for key and reports whether it is within the
// limit, with the remaining budget and the current window end.
func (l *limiter) allow(key string) (remaining int, reset time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, found := l.windows.Get(key)
	if !found {
		w = &window{start: now.Truncate(l.cfg.Window)}
	}
	if elapsed := now.Sub(w.start); elapsed >= l.cfg.Window {
		if elapsed >= 2*l.cfg.Window {
			w.prev = 0
		} else {
			w.prev = w.curr
		}
		w.curr = 0
		w.start = now.Truncate(l.cfg.Window)
	}
	l.windows.Add(key, w)

	// The previous window counts in proportion to its overlap with the
	// sliding window ending now.
	overlap := 1 - now.Sub(w.start).Seconds()/l.cfg.Window.Seconds()
	used := w.prev*math.Max(overlap, 0) + w.curr
	reset = w.start.Add(l.cfg.Window)
	if used >= float64(l.cfg.Max) {
		return 0, reset, false
	}
	w.curr++
	return max(int(float64(l.cfg.Max)-used-1), 0), reset, true
}

// RateLimit enforces a per-client sliding window limit, answering 429 with a
// JSON body once it is exceeded. Responses carry X-RateLimit-* headers.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Max <= 0 || cfg.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	l := newLimiter(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, reset, ok := l.allow(l.cfg.KeyFunc(r))

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if !ok {
				retry := math.Ceil(max(reset.Sub(l.now()), 0).Seconds())
				h.Set("Retry-After", strconv.Itoa(int(retry)))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CookieOrIP keys requests by the named cookie, falling back to ClientIP
// for clients that do not send it yet.
func CookieOrIP(name string) func(*http.Request) string {
	return func(r *http.Request) string {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			return "c:" + c.Value
		}
		return "ip:" + ClientIP(r)
	}
}

// ClientIP returns the first X-Forwarded-For address, X-Real-IP, or the
// remote host.
func ClientIP(r *http.Request) string {
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
