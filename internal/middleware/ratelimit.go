package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyphera/grantpay/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter holds the configuration for rate limiting
type RateLimiter struct {
	// limiters stores rate limiters per client
	limiters sync.Map
	rate     rate.Limit
	burst    int
	// idleTTL is how long an unused limiter is kept
	idleTTL time.Duration
	stop    chan struct{}
	once    sync.Once
}

// limiterEntry holds a rate limiter and its last access time in unix nanoseconds
type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess atomic.Int64
}

// NewRateLimiter creates a rate limiter allowing requestsPerSecond per client with the given
// burst. Call Stop to end its cleanup goroutine.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		rate:    rate.Limit(requestsPerSecond),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		stop:    make(chan struct{}),
	}
	go rl.cleanup(5 * time.Minute)
	return rl
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// cleanup removes limiters that haven't been accessed recently
func (rl *RateLimiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.evictIdle(now)
		}
	}
}

func (rl *RateLimiter) evictIdle(now time.Time) {
	rl.limiters.Range(func(key, value interface{}) bool {
		if entry, ok := value.(*limiterEntry); ok {
			if now.Sub(time.Unix(0, entry.lastAccess.Load())) > rl.idleTTL {
				rl.limiters.Delete(key)
			}
		}
		return true
	})
}

// getLimiter returns the rate limiter for a specific key
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	now := time.Now().UnixNano()
	if val, ok := rl.limiters.Load(key); ok {
		entry := val.(*limiterEntry)
		entry.lastAccess.Store(now)
		return entry.limiter
	}

	entry := &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
	entry.lastAccess.Store(now)

	// Another goroutine may have stored one first.
	actual, _ := rl.limiters.LoadOrStore(key, entry)
	return actual.(*limiterEntry).limiter
}

// getClientIdentifier buckets terminals by a digest of their API key and everyone else by IP.
func getClientIdentifier(c *gin.Context) string {
	if apiKey := c.GetHeader(APIKeyHeader); apiKey != "" {
		sum := sha256.Sum256([]byte(apiKey))
		return "api:" + hex.EncodeToString(sum[:8])
	}

	clientIP := c.ClientIP()
	if clientIP == "" {
		clientIP = "unknown"
	}
	return "ip:" + clientIP
}

// Middleware rejects clients over their budget with 429 and sets X-RateLimit-* headers on every
// limited route. Health checks are exempt.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	limit := strconv.FormatFloat(float64(rl.rate), 'f', -1, 64)
	return func(c *gin.Context) {
		switch c.Request.URL.Path {
		case "/health", "/healthz":
			c.Next()
			return
		}

		clientID := getClientIdentifier(c)
		limiter := rl.getLimiter(clientID)
		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Second).Unix(), 10))

		if limiter.Allow() {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(max(int(limiter.Tokens()), 0)))
			c.Next()
			return
		}

		logger.FromContext(c.Request.Context()).Warn("Rate limit exceeded",
			zap.String("client_id", clientID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		c.Header("X-RateLimit-Remaining", "0")
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":          "Too many requests. Please try again later.",
			"code":           "rate_limited",
			"correlation_id": GetCorrelationID(c),
		})
	}
}
