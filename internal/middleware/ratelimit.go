package middleware

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiterConfig holds configuration for rate limiting
type RateLimiterConfig struct {
	RequestsPerSecond float64       // Rate limit: requests per second
	BurstSize         int           // Maximum burst size
	CleanupInterval   time.Duration // How often to cleanup old limiters
}

// DefaultRateLimiterConfig provides sensible defaults for the HTTP surface
var DefaultRateLimiterConfig = RateLimiterConfig{
	RequestsPerSecond: 10.0,
	BurstSize:         20,
	CleanupInterval:   5 * time.Minute,
}

// MessageRateConfig is tuned for the websocket loop, where decision and chat
// traffic is bursty but bounded.
var MessageRateConfig = RateLimiterConfig{
	RequestsPerSecond: 20.0,
	BurstSize:         40,
	CleanupInterval:   5 * time.Minute,
}

// clientLimiter tracks a rate limiter and last seen time for cleanup
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter manages per-client rate limiters
type RateLimiter struct {
	limiters    map[string]*clientLimiter
	mu          sync.RWMutex
	config      RateLimiterConfig
	stopCleanup chan struct{}
}

// NewRateLimiter creates a new rate limiter with automatic cleanup
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		limiters:    make(map[string]*clientLimiter),
		config:      config,
		stopCleanup: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow checks if a request from the given client ID should be allowed
func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[clientID]
	if !exists {
		limiter = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.BurstSize),
		}
		rl.limiters[clientID] = limiter
	}

	limiter.lastSeen = time.Now()
	return limiter.limiter.Allow()
}

// cleanupLoop removes limiters for clients not seen recently
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.config.CleanupInterval)
	removed := 0
	for clientID, limiter := range rl.limiters {
		if limiter.lastSeen.Before(cutoff) {
			delete(rl.limiters, clientID)
			removed++
		}
	}

	if removed > 0 {
		log.Printf("[RATELIMIT] Cleaned up %d idle client limiters", removed)
	}
}

// GetLimiterCount returns the number of tracked client limiters
func (rl *RateLimiter) GetLimiterCount() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.limiters)
}

// Stop terminates the cleanup loop
func (rl *RateLimiter) Stop() {
	close(rl.stopCleanup)
}

// GinMiddleware returns a gin middleware that rate limits by client IP, used
// on the REST surface.
func (rl *RateLimiter) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		c.Next()
	}
}
