package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/RENDAROBOTIC/rds-website/pkg/httputil"
	"github.com/RENDAROBOTIC/rds-website/pkg/logger"
)

// RateLimitConfig configures per-client token bucket limiting.
type RateLimitConfig struct {
	// RPS is the sustained request rate per client. 0 disables limiting.
	RPS   float64
	Burst int

	// IdleTTL evicts limiters for clients not seen for this long.
	IdleTTL time.Duration

	// TrustForwarded identifies clients by X-Forwarded-For / X-Real-IP.
	// Only enable behind a proxy that overwrites those headers.
	TrustForwarded bool
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorStore holds one limiter per client. Idle entries are swept inline,
// at most once per ttl.
type visitorStore struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newVisitorStore(limit rate.Limit, burst int, ttl time.Duration) *visitorStore {
	return &visitorStore{
		visitors:  make(map[string]*visitor),
		limit:     limit,
		burst:     burst,
		ttl:       ttl,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// allow takes one token from key's bucket.
func (s *visitorStore) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= s.ttl {
		for k, v := range s.visitors {
			if now.Sub(v.lastSeen) > s.ttl {
				delete(s.visitors, k)
			}
		}
		s.lastSweep = now
	}

	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (s *visitorStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visitors)
}

// RateLimit returns middleware that enforces per-client token bucket rate
// limiting and answers 429 when a client's bucket is empty.
func RateLimit(cfg RateLimitConfig, l *slog.Logger) func(http.Handler) http.Handler {
	if cfg.RPS <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return rateLimit(cfg, newStoreFor(cfg), l)
}

func newStoreFor(cfg RateLimitConfig) *visitorStore {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 3 * time.Minute
	}
	return newVisitorStore(rate.Limit(cfg.RPS), cfg.Burst, cfg.IdleTTL)
}

func rateLimit(cfg RateLimitConfig, store *visitorStore, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, cfg.TrustForwarded)
			if !store.allow(ip) {
				l.WarnContext(r.Context(), "rate limit exceeded",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", "1")
				httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.ErrorBody{
					Error:     "too many requests",
					Code:      "RATE_LIMITED",
					RequestID: logger.CorrelationIDFromContext(r.Context()),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the caller's address. Forwarding headers are honoured only
// when trusted; the first parseable X-Forwarded-For hop wins.
func clientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			for _, part := range strings.Split(xff, ",") {
				if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
					return ip.String()
				}
			}
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
