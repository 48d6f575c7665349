package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/prn-tf/meridian-users/internal/auth"
	"github.com/prn-tf/meridian-users/internal/config"
)

// limiterCleanupInterval controls how often idle client limiters are
// dropped.
const limiterCleanupInterval = 5 * time.Minute

// clientLimiter holds a client's token bucket and last access time.
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter enforces a per-client request rate. Authenticated clients
// are keyed by user ID; anonymous clients by remote IP.
type RateLimiter struct {
	cfg    config.RateLimitConfig
	logger zerolog.Logger

	mu       sync.Mutex
	limiters map[string]*clientLimiter

	stopCh chan struct{}
}

// NewRateLimiter creates a RateLimiter and starts its cleanup loop.
func NewRateLimiter(cfg config.RateLimitConfig, logger zerolog.Logger) *RateLimiter {
	rl := &RateLimiter{
		cfg:      cfg,
		logger:   logger.With().Str("middleware", "ratelimit").Logger(),
		limiters: make(map[string]*clientLimiter),
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop terminates the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// Middleware returns the rate limiting handler wrapper. When rate
// limiting is disabled it passes requests through untouched.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !rl.cfg.Enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rl.clientKey(r)

			if !rl.getOrCreate(key).Allow() {
				rl.logger.Warn().
					Str("client", key).
					Str("path", r.URL.Path).
					Msg("rate limit exceeded")
				writeRateLimitResponse(w, rate.Limit(rl.cfg.RequestsPerSecond))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey keys the bucket by authenticated user when available, so a
// user behind a shared NAT is not throttled by their neighbors.
func (rl *RateLimiter) clientKey(r *http.Request) string {
	if identity := auth.IdentityFromContext(r.Context()); identity.IsAuthenticated() {
		return "user:" + strconv.FormatInt(identity.UserID, 10)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func (rl *RateLimiter) getOrCreate(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if cl, exists := rl.limiters[key]; exists {
		cl.lastAccess = time.Now()
		return cl.limiter
	}

	limiter := rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.BurstSize)
	rl.limiters[key] = &clientLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}
	return limiter
}

// LimiterCount returns the number of tracked clients, for tests.
func (rl *RateLimiter) LimiterCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	ttl := limiterCleanupInterval * 2
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, cl := range rl.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(rl.limiters, key)
		}
	}
}

// writeRateLimitResponse writes 429 with a Retry-After estimating when a
// token will be available.
func writeRateLimitResponse(w http.ResponseWriter, limit rate.Limit) {
	retryAfterSec := 1
	if limit > 0 {
		retryAfterSec = int(math.Ceil(1.0 / float64(limit)))
		if retryAfterSec < 1 {
			retryAfterSec = 1
		}
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(map[string]string{
		"code":    "rate_limit_exceeded",
		"message": "too many requests",
	})
}
