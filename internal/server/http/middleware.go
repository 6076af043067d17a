package httpserver

import (
	"context"
	"net"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/and161185/otpguard/internal/service"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Logging logs one line per request. Bodies are never logged.
func Logging(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.Info("http",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("dur", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
				zap.String("request_id", chimw.GetReqID(r.Context())),
			)
		})
	}
}

// Recover turns panics into 500 responses and logs the stack.
func Recover(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("panic",
						zap.Any("reason", rec),
						zap.ByteString("stack", debug.Stack()),
						zap.String("path", r.URL.Path),
						zap.String("request_id", chimw.GetReqID(r.Context())),
					)
					respondWithError(w, http.StatusInternalServerError, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// ipLimiters hands out one token bucket per client IP.
// Buckets idle for longer than idle are dropped by sweep.
type ipLimiters struct {
	mu      sync.Mutex
	entries map[string]*ipEntry
	limit   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
}

type ipEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// newIPLimiters returns nil when perMinute <= 0.
func newIPLimiters(perMinute int) *ipLimiters {
	if perMinute <= 0 {
		return nil
	}
	return &ipLimiters{
		entries: make(map[string]*ipEntry),
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		// a bucket untouched for a minute is full again, so forgetting it later is lossless
		idle: 2 * time.Minute,
		now:  time.Now,
	}
}

func (s *ipLimiters) allow(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	e, ok := s.entries[ip]
	if !ok {
		e = &ipEntry{lim: rate.NewLimiter(s.limit, s.burst)}
		s.entries[ip] = e
	}
	e.lastSeen = now
	return e.lim.AllowN(now, 1)
}

// sweep drops idle buckets and reports how many remain.
func (s *ipLimiters) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.idle)
	for ip, e := range s.entries {
		if e.lastSeen.Before(cutoff) {
			delete(s.entries, ip)
		}
	}
	return len(s.entries)
}

// run sweeps on every tick until ctx is done.
func (s *ipLimiters) run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// ipRateLimit rejects clients whose bucket is empty. A nil store disables it.
func ipRateLimit(store *ipLimiters, keyOf func(*http.Request) string, log *zap.Logger) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := keyOf(r)
			if !store.allow(ip) {
				log.Warn("rate limit exceeded", zap.String("ip", ip))
				respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole verifies the bearer token and admits only the listed roles.
// Device tokens are additionally checked against the account's current binding.
func (s *Server) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := bearerToken(r)
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			p, err := service.ParseAccessToken(s.signKey, tok)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if !slices.Contains(roles, p.Role) {
				respondWithError(w, http.StatusForbidden, "forbidden")
				return
			}
			if p.Role == service.RoleDevice {
				if err := s.auth.VerifyDevice(r.Context(), p); err != nil {
					s.fail(w, r, err)
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < 7 || !strings.EqualFold(v[:7], "bearer ") {
		return "", false
	}
	t := strings.TrimSpace(v[7:])
	return t, t != ""
}

// clientIP returns the peer address without its port. Forwarding headers are
// honored only behind a trusted proxy, and then only the hop appended last.
func clientIP(r *http.Request, trustProxy bool) string {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		host = h
	}
	if !trustProxy {
		return host
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		for i := len(parts) - 1; i >= 0; i-- {
			if p := strings.TrimSpace(parts[i]); p != "" {
				return p
			}
		}
	}
	return host
}

func (s *Server) clientIP(r *http.Request) string {
	return clientIP(r, s.opts.TrustProxy)
}
