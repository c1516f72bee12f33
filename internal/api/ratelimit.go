package api

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrRateLimited is returned to clients that exceed their request budget.
var ErrRateLimited = errors.New("rate limit exceeded, please try again later")

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	RequestsPerMinute int           // Max requests per minute (default: 60)
	BurstSize         int           // Allow burst above limit (default: 10)
	CleanupInterval   time.Duration // How often to clean expired entries (default: 5m)
}

// DefaultRateLimitConfig returns the limits applied to unlisted paths.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         10,
		CleanupInterval:   5 * time.Minute,
	}
}

// RateLimiter is a per-client sliding window limiter.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
	stopOnce sync.Once
	stop     chan struct{}
}

// NewRateLimiter creates a limiter and starts its cleanup loop.
// Call Stop to release the goroutine.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rl := newRateLimiter(cfg, time.Now)
	go rl.cleanupLoop(cfg.CleanupInterval)
	return rl
}

func newRateLimiter(cfg RateLimitConfig, now func() time.Time) *RateLimiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	// BurstSize of 0 is valid
	if cfg.BurstSize < 0 {
		cfg.BurstSize = 0
	}
	return &RateLimiter{
		clients: make(map[string][]time.Time),
		limit:   cfg.RequestsPerMinute + cfg.BurstSize,
		window:  time.Minute,
		now:     now,
		stop:    make(chan struct{}),
	}
}

// Limit returns the number of requests allowed per window.
func (rl *RateLimiter) Limit() int {
	return rl.limit
}

// Allow records a request from clientID if it is within budget.
// It returns the requests left in the current window and whether the
// request was allowed.
func (rl *RateLimiter) Allow(clientID string) (int, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := rl.prune(rl.clients[clientID], now)

	if len(recent) >= rl.limit {
		rl.clients[clientID] = recent
		return 0, false
	}

	recent = append(recent, now)
	rl.clients[clientID] = recent
	return rl.limit - len(recent), true
}

// Remaining returns how many requests clientID may still make.
func (rl *RateLimiter) Remaining(clientID string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	remaining := rl.limit - len(rl.prune(rl.clients[clientID], rl.now()))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset clears the history for a specific client.
func (rl *RateLimiter) Reset(clientID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.clients, clientID)
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// prune drops timestamps that fell out of the window. Caller holds mu.
func (rl *RateLimiter) prune(stamps []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	return stamps[i:]
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.cleanupExpired()
		}
	}
}

// cleanupExpired removes clients with no requests in the current window.
func (rl *RateLimiter) cleanupExpired() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for clientID, stamps := range rl.clients {
		if len(rl.prune(stamps, now)) == 0 {
			delete(rl.clients, clientID)
		}
	}
}

// PathRateLimiter applies different limits to different path prefixes.
// The longest matching prefix wins.
type PathRateLimiter struct {
	mu       sync.RWMutex
	fallback *RateLimiter
	paths    map[string]*RateLimiter
}

// NewPathRateLimiter creates a rate limiter with path-specific limits.
func NewPathRateLimiter(defaultCfg RateLimitConfig) *PathRateLimiter {
	return &PathRateLimiter{
		fallback: NewRateLimiter(defaultCfg),
		paths:    make(map[string]*RateLimiter),
	}
}

// SetPathLimit sets a specific rate limit for a path prefix.
func (prl *PathRateLimiter) SetPathLimit(prefix string, cfg RateLimitConfig) {
	prl.mu.Lock()
	defer prl.mu.Unlock()
	if old, ok := prl.paths[prefix]; ok {
		old.Stop()
	}
	prl.paths[prefix] = NewRateLimiter(cfg)
}

// LimiterFor returns the limiter responsible for path.
func (prl *PathRateLimiter) LimiterFor(path string) *RateLimiter {
	prl.mu.RLock()
	defer prl.mu.RUnlock()

	best := ""
	limiter := prl.fallback
	for prefix, l := range prl.paths {
		if strings.HasPrefix(path, prefix) && len(prefix) > len(best) {
			best = prefix
			limiter = l
		}
	}
	return limiter
}

// Allow checks a request from clientID to path.
func (prl *PathRateLimiter) Allow(clientID, path string) bool {
	_, ok := prl.LimiterFor(path).Allow(clientID)
	return ok
}

// Stop stops all rate limiters.
func (prl *PathRateLimiter) Stop() {
	prl.mu.Lock()
	defer prl.mu.Unlock()

	prl.fallback.Stop()
	for _, l := range prl.paths {
		l.Stop()
	}
}

// RateLimitMiddleware rejects requests over budget with 429 and the
// standard error envelope.
func RateLimitMiddleware(prl *PathRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := prl.LimiterFor(r.URL.Path)
			remaining, ok := limiter.Allow(getClientIP(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !ok {
				w.Header().Set("Retry-After", "60")
				RespondError(w, http.StatusTooManyRequests, ErrRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP from the request.
// Proxy headers are honoured first, then RemoteAddr.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
