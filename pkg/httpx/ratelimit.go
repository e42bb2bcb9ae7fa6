package httpx

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adminbridge/authgate/pkg/gatesdk"
	"github.com/adminbridge/authgate/pkg/slogx"
)

// RateLimitConfig defines the rate limiting parameters for a fixed window.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the fixed time window for rate limiting
	Window time.Duration
}

// Common rate limit profiles for different endpoint types
// These can be overridden via environment variables (see init() below)
var (
	// StrictLimit for token acquisition and refresh endpoints
	// Allows 5 requests per 15 minutes per client
	// Override with: RATELIMIT_STRICT_REQUESTS, RATELIMIT_STRICT_WINDOW_SEC
	StrictLimit = RateLimitConfig{
		RequestsPerWindow: 5,
		Window:            15 * time.Minute,
	}

	// LenientLimit for the rest of the authenticated surface
	// Allows 100 requests per 15 minutes per client
	// Override with: RATELIMIT_LENIENT_REQUESTS, RATELIMIT_LENIENT_WINDOW_SEC
	LenientLimit = RateLimitConfig{
		RequestsPerWindow: 100,
		Window:            15 * time.Minute,
	}
)

func init() {
	// Allow overriding rate limits via environment variables (useful for testing)
	StrictLimit = ParseRateLimitFromEnv("STRICT", StrictLimit)
	LenientLimit = ParseRateLimitFromEnv("LENIENT", LenientLimit)
}

// ParseRateLimitFromEnv reads rate limit configuration from environment variables.
// Environment variables follow the pattern: RATELIMIT_{prefix}_{field}
// For example: RATELIMIT_STRICT_REQUESTS, RATELIMIT_STRICT_WINDOW_SEC
// This function is exported to allow custom rate limit configurations from environment variables.
func ParseRateLimitFromEnv(prefix string, defaultConfig RateLimitConfig) RateLimitConfig {
	config := defaultConfig

	// Parse requests per window
	if val := os.Getenv("RATELIMIT_" + prefix + "_REQUESTS"); val != "" {
		if requests, err := strconv.Atoi(val); err == nil && requests > 0 {
			config.RequestsPerWindow = requests
		}
	}

	// Parse window duration in seconds
	if val := os.Getenv("RATELIMIT_" + prefix + "_WINDOW_SEC"); val != "" {
		if windowSec, err := strconv.Atoi(val); err == nil && windowSec > 0 {
			config.Window = time.Duration(windowSec) * time.Second
		}
	}

	return config
}

// KeyExtractor is a function that extracts a unique key from the request
// for rate limiting purposes (e.g., IP address, principal ID, etc.)
type KeyExtractor func(*http.Request) string

// Common key extractors

// IPKeyExtractor extracts the client IP address from the request.
// It handles X-Forwarded-For and X-Real-IP headers for proxied requests.
func IPKeyExtractor(r *http.Request) string {
	// Check X-Forwarded-For header (comma-separated list)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fallback to RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// PrincipalIDKeyExtractor extracts the authenticated principal ID from the
// request context. Returns empty string for anonymous requests.
func PrincipalIDKeyExtractor(r *http.Request) string {
	return PrincipalIDFromContext(r.Context())
}

// CompositeKeyExtractor combines multiple key extractors with a separator.
// Example: CompositeKeyExtractor(":", IPKeyExtractor, PrincipalIDKeyExtractor)
// would produce keys like "192.168.1.1:01J3ZK..."
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		var parts []string
		for _, extractor := range extractors {
			if key := extractor(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

// FormFieldKeyExtractor extracts a key from a form field (works for both GET and POST).
// Use this for extracting client_id, state, etc. from request parameters.
func FormFieldKeyExtractor(fieldName string) KeyExtractor {
	return func(r *http.Request) string {
		// Try to parse form (handles both URL params and POST body)
		if err := r.ParseForm(); err == nil {
			return r.FormValue(fieldName)
		}
		return ""
	}
}

// windowState tracks one client's counter within the current fixed window.
type windowState struct {
	count   int
	resetAt time.Time
}

// rateLimiter manages fixed-window counters for different keys. The counter
// resets fully at each window boundary rather than draining continuously, so
// a client that exhausts its budget waits for the boundary, never longer than
// one window.
type rateLimiter struct {
	mu      sync.Mutex
	windows map[string]*windowState
	config  RateLimitConfig
	// Sweep stale windows periodically to bound memory
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiter(config RateLimitConfig) *rateLimiter {
	return &rateLimiter{
		windows:   make(map[string]*windowState),
		config:    config,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// allow consumes one request for key. When the budget is exhausted it reports
// the number of seconds until the window resets, always at least 1 and never
// more than the window length.
func (rl *rateLimiter) allow(key string) (ok bool, retryAfter int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.maybeSweep(now)

	ws, found := rl.windows[key]
	if !found || !now.Before(ws.resetAt) {
		ws = &windowState{resetAt: now.Add(rl.config.Window)}
		rl.windows[key] = ws
	}

	if ws.count >= rl.config.RequestsPerWindow {
		remaining := ws.resetAt.Sub(now)
		secs := int(remaining / time.Second)
		if remaining%time.Second > 0 {
			secs++
		}
		if secs < 1 {
			secs = 1
		}
		return false, secs
	}

	ws.count++
	return true, 0
}

// maybeSweep drops windows that have already reset. Called with mu held.
func (rl *rateLimiter) maybeSweep(now time.Time) {
	if now.Sub(rl.lastSweep) < 5*time.Minute {
		return
	}
	rl.lastSweep = now

	for key, ws := range rl.windows {
		if !now.Before(ws.resetAt) {
			delete(rl.windows, key)
		}
	}
}

// RateLimitMiddleware creates a fixed-window rate limiting middleware with the
// given configuration. The keyExtractor determines how requests are grouped.
func RateLimitMiddleware(config RateLimitConfig, keyExtractor KeyExtractor, hook AuthEventHook) Middleware {
	rl := newRateLimiter(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			// Extract the key for this request
			key := keyExtractor(r)
			if key == "" {
				// If we can't extract a key, allow the request but log it
				log.Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			ok, retryAfter := rl.allow(key)
			if !ok {
				w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", config.RequestsPerWindow))
				w.Header().Set("X-RateLimit-Window", config.Window.String())

				log.Warn("rate limit exceeded",
					"key", key,
					"endpoint", r.URL.Path,
					"retry_after", retryAfter,
				)
				record(ctx, hook, gatesdk.CodeRateLimitExceeded,
					PrincipalIDFromContext(ctx), IPKeyExtractor(r), r.URL.Path)

				gatesdk.NewRateLimitError(retryAfter).WriteError(w)
				return
			}

			// Request is allowed, continue to next handler
			next.ServeHTTP(w, r)
		})
	}
}

// Convenience functions for common rate limiting scenarios

// RateLimitByIP creates a rate limiter that limits by IP address only.
func RateLimitByIP(config RateLimitConfig, hook AuthEventHook) Middleware {
	return RateLimitMiddleware(config, IPKeyExtractor, hook)
}

// RateLimitByPrincipal creates a rate limiter that limits by authenticated
// principal ID. Falls back to IP for anonymous requests.
func RateLimitByPrincipal(config RateLimitConfig, hook AuthEventHook) Middleware {
	return RateLimitMiddleware(config, CompositeKeyExtractor(":",
		PrincipalIDKeyExtractor,
		IPKeyExtractor,
	), hook)
}
