package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

const defaultCORSMaxAgeSeconds = 600

var (
	defaultCORSAllowedMethods = []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodOptions,
	}
	defaultCORSAllowedHeaders = []string{
		"Accept",
		"Authorization",
		"Content-Type",
		"Idempotency-Key",
		"X-Request-Id",
	}
	corsExposedHeaders = "X-Request-Id, Retry-After, WWW-Authenticate"
)

// CORSConfig configures the browser extension and web dashboard origins.
// With AllowCredentials a wildcard origin is echoed back, since browsers
// reject "*" on credentialed requests.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAgeSeconds    int
}

type corsPolicy struct {
	origins     []string
	anyOrigin   bool
	credentials bool
	methods     string
	headers     string
	maxAge      string
}

func newCORSPolicy(cfg CORSConfig) corsPolicy {
	policy := corsPolicy{
		origins:     nonEmpty(cfg.AllowedOrigins),
		credentials: cfg.AllowCredentials,
		methods:     strings.Join(withDefault(nonEmpty(cfg.AllowedMethods), defaultCORSAllowedMethods), ", "),
		headers:     strings.Join(withDefault(nonEmpty(cfg.AllowedHeaders), defaultCORSAllowedHeaders), ", "),
		maxAge:      strconv.Itoa(defaultCORSMaxAgeSeconds),
	}
	if cfg.MaxAgeSeconds > 0 {
		policy.maxAge = strconv.Itoa(cfg.MaxAgeSeconds)
	}
	for _, origin := range policy.origins {
		if origin == "*" {
			policy.anyOrigin = true
		}
	}
	return policy
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when the origin is not allowed.
func (p corsPolicy) allowOrigin(origin string) string {
	switch {
	case p.anyOrigin && p.credentials:
		return origin
	case p.anyOrigin:
		return "*"
	}
	for _, allowed := range p.origins {
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	policy := newCORSPolicy(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			allowed := ""
			if origin != "" {
				allowed = policy.allowOrigin(origin)
			}
			if allowed == "" {
				next.ServeHTTP(w, r)
				return
			}

			header := w.Header()
			header.Add("Vary", "Origin")
			header.Set("Access-Control-Allow-Origin", allowed)
			if policy.credentials {
				header.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
				header.Set("Access-Control-Expose-Headers", corsExposedHeaders)
				next.ServeHTTP(w, r)
				return
			}

			header.Add("Vary", "Access-Control-Request-Method")
			header.Add("Vary", "Access-Control-Request-Headers")
			header.Set("Access-Control-Allow-Methods", policy.methods)
			header.Set("Access-Control-Allow-Headers", policy.headers)
			header.Set("Access-Control-Max-Age", policy.maxAge)
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func nonEmpty(values []string) []string {
	result := make([]string, 0, len(values))
	for _, raw := range values {
		if value := strings.TrimSpace(raw); value != "" {
			result = append(result, value)
		}
	}
	return result
}

func withDefault(values, fallback []string) []string {
	if len(values) == 0 {
		return append([]string(nil), fallback...)
	}
	return values
}
