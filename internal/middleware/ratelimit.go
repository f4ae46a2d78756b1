package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a per-client token bucket keyed by remote IP.
type RateLimiter struct {
	rps     float64
	burst   int
	clients sync.Map // ip -> *clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// NewRateLimiter creates a limiter granting rps sustained requests per
// second with the given burst, per client IP. Idle clients are evicted in
// the background.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{rps: rps, burst: burst}
	go rl.evictLoop()
	return rl
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiterFor(clientIP(r)).Allow() {
			w.Header().Set("Retry-After", "1")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"code":    "rate_limited",
				"message": "rate limit exceeded",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	if v, ok := rl.clients.Load(ip); ok {
		cl := v.(*clientLimiter)
		cl.lastSeen.Store(time.Now().UnixNano())
		return cl.limiter
	}
	cl := &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rl.rps), rl.burst)}
	cl.lastSeen.Store(time.Now().UnixNano())
	// Another goroutine may have raced us; use whichever won.
	actual, _ := rl.clients.LoadOrStore(ip, cl)
	return actual.(*clientLimiter).limiter
}

func (rl *RateLimiter) evictLoop() {
	for {
		time.Sleep(5 * time.Minute)
		cutoff := time.Now().Add(-10 * time.Minute).UnixNano()
		rl.clients.Range(func(key, value any) bool {
			if value.(*clientLimiter).lastSeen.Load() < cutoff {
				rl.clients.Delete(key)
			}
			return true
		})
	}
}

// clientIP extracts the client IP from RemoteAddr, stripping the port.
// X-Forwarded-For is untrusted and ignored to prevent limit bypass via
// header spoofing.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
