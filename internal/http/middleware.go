package http

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/example/tuition-scheduler/internal/logging"
)

const requestIDHeader = "X-Request-ID"

func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(requestIDHeader))
			if id == "" {
				id = strconv.FormatUint(counter.Add(1), 10)
			}
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := logging.ContextWithLogger(r.Context(), logger)
			ctx = ContextWithRequestID(ctx, id)
			w.Header().Set(requestIDHeader, id)

			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(recorder, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", recorder.status, "duration", time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

const defaultLimiterIdleTTL = 10 * time.Minute

// RateLimitOptions configures RateLimit.
type RateLimitOptions struct {
	// PerMinute is the sustained rate and the burst per client. Non-positive disables limiting.
	PerMinute int
	// TrustedProxies are the peers whose X-Forwarded-For and X-Real-IP headers are believed.
	// Every other request is keyed by its connection address.
	TrustedProxies []netip.Prefix
	// IdleTTL drops a client's limiter after this long without requests.
	IdleTTL time.Duration

	now func() time.Time
}

// RateLimit allows opts.PerMinute requests per client with a burst of the same size.
// A non-positive limit disables the middleware.
func RateLimit(opts RateLimitOptions, logger *slog.Logger) func(http.Handler) http.Handler {
	if opts.PerMinute <= 0 {
		return nil
	}
	limiter := newClientLimiter(rate.Every(time.Minute/time.Duration(opts.PerMinute)), opts.PerMinute, opts.IdleTTL, opts.now)
	responder := newResponder(defaultLogger(logger))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, opts.TrustedProxies)
			if !limiter.allow(ip) {
				w.Header().Set("Retry-After", "60")
				responder.writeError(r.Context(), w, http.StatusTooManyRequests, errRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type clientLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newClientLimiter(limit rate.Limit, burst int, idleTTL time.Duration, now func() time.Time) *clientLimiter {
	if idleTTL <= 0 {
		idleTTL = defaultLimiterIdleTTL
	}
	if now == nil {
		now = time.Now
	}
	return &clientLimiter{
		limiters:  make(map[string]*limiterEntry),
		limit:     limit,
		burst:     burst,
		idleTTL:   idleTTL,
		lastSweep: now(),
		now:       now,
	}
}

func (c *clientLimiter) allow(ip string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) >= c.idleTTL {
		c.sweep(now)
	}

	entry, ok := c.limiters[ip]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// sweep drops limiters idle for at least idleTTL. Callers hold mu.
func (c *clientLimiter) sweep(now time.Time) {
	for ip, entry := range c.limiters {
		if now.Sub(entry.lastSeen) >= c.idleTTL {
			delete(c.limiters, ip)
		}
	}
	c.lastSweep = now
}

func (c *clientLimiter) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.limiters)
}

// clientIP keys a request by its connection address. Forwarding headers are used only when
// that address belongs to a trusted proxy; X-Forwarded-For is read right to left up to the
// first hop that is not a trusted proxy.
func clientIP(r *http.Request, trusted []netip.Prefix) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !isTrusted(host, trusted) {
		return host
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		hops := strings.Split(forwarded, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !isTrusted(hop, trusted) || i == 0 {
				return hop
			}
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}
	return host
}

func isTrusted(host string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
