package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const visitorIdleTTL = 3 * time.Minute

// RateLimit applies a token bucket per client IP. Idle visitors expire from
// the store after a few minutes.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		rps = 20
	}
	if burst <= 0 {
		burst = 40
	}

	visitors := cache.New(visitorIdleTTL, time.Minute)
	getLimiter := func(ip string) *rate.Limiter {
		if existing, ok := visitors.Get(ip); ok {
			limiter := existing.(*rate.Limiter)
			visitors.SetDefault(ip, limiter)
			return limiter
		}
		limiter := rate.NewLimiter(rate.Limit(rps), burst)
		if err := visitors.Add(ip, limiter, cache.DefaultExpiration); err != nil {
			// Another request registered this visitor first.
			if existing, ok := visitors.Get(ip); ok {
				return existing.(*rate.Limiter)
			}
		}
		return limiter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !getLimiter(extractIP(r.RemoteAddr)).Allow() {
				w.Header().Set("Retry-After", "1")
				writeErrorBody(w, r, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil || host == "" {
		return remoteAddr
	}
	return host
}

// ClientIP returns the caller's address without the port.
func ClientIP(r *http.Request) string {
	return extractIP(r.RemoteAddr)
}
