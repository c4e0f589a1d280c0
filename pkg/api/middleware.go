package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"ideaflow/pkg/logger"
	"ideaflow/pkg/telemetry"
)

// MWConfig holds the boundary settings the middleware chain enforces.
type MWConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	MaxBodyBytes   int64
}

// Middleware wraps next with request logging, CORS, per-client rate
// limiting, body size capping and latency observation.
func Middleware(cfg MWConfig) func(http.Handler) http.Handler {
	limiters := &limiterPool{rps: cfg.RPS, burst: cfg.Burst}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.LogRequest(r)

			origin := r.Header.Get("Origin")
			if origin != "" && originAllowed(origin, cfg.AllowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,PATCH,OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Idempotency-Key")
				w.Header().Set("Access-Control-Expose-Headers", "X-Order-Version")
				// cache preflights for 10 minutes
				w.Header().Set("Access-Control-Max-Age", "600")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			// health and metrics probes bypass the limiter
			if r.URL.Path != "/healthz" && r.URL.Path != "/metrics" {
				if !limiters.allow(clientIP(r)) {
					http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
					logger.Warn("request_rate_limited", "remote", r.RemoteAddr, "path", r.URL.Path)
					return
				}
			}

			if cfg.MaxBodyBytes > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxBodyBytes)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Observe records request latency per route template. It runs inside the
// router (r.Use) so the matched template is available and metric
// cardinality stays bounded by route, not by id.
func Observe() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			telemetry.RequestDuration.WithLabelValues(routeName(r), r.Method).
				Observe(time.Since(start).Seconds())
		})
	}
}

func routeName(r *http.Request) string {
	if cur := mux.CurrentRoute(r); cur != nil {
		if tpl, err := cur.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// limiterPool keys token buckets by client IP, created on first use.
type limiterPool struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   float64
	burst int
}

func (p *limiterPool) allow(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.m == nil {
		p.m = make(map[string]*rate.Limiter)
	}
	l, ok := p.m[key]
	if !ok {
		rps := p.rps
		if rps <= 0 {
			rps = 50
		}
		burst := p.burst
		if burst <= 0 {
			burst = 100
		}
		l = rate.NewLimiter(rate.Limit(rps), burst)
		p.m[key] = l
	}
	return l.Allow()
}
