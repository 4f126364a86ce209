package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	cleanupInterval = 10 * time.Minute
	clientIdleAfter = 30 * time.Minute
)

// clientLimiter stores the token bucket of one client.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterMiddleware applies a per-client token bucket.
type RateLimiterMiddleware struct {
	name    string
	clients map[string]*clientLimiter
	mu      sync.Mutex
	rate    rate.Limit
	burst   int
	log     *zap.Logger
	stop    chan struct{}
	once    sync.Once
}

// NewRateLimiterMiddleware creates a limiter refilling refillPerSecond tokens
// per second into a bucket of bucketSize. Call Stop to end its cleanup loop.
func NewRateLimiterMiddleware(name string, bucketSize, refillPerSecond int, log *zap.Logger) *RateLimiterMiddleware {
	rm := &RateLimiterMiddleware{
		name:    name,
		clients: make(map[string]*clientLimiter),
		rate:    rate.Limit(refillPerSecond),
		burst:   bucketSize,
		log:     log,
		stop:    make(chan struct{}),
	}
	go rm.cleanupClients()
	return rm
}

// getClientIdentifier keys authenticated callers by user and others by IP.
func getClientIdentifier(c *gin.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return "user:" + id.UserID.String()
	}
	return "ip:" + c.ClientIP()
}

func (rm *RateLimiterMiddleware) getClientLimiter(identifier string) *clientLimiter {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	limiter, exists := rm.clients[identifier]
	if !exists {
		limiter = &clientLimiter{limiter: rate.NewLimiter(rm.rate, rm.burst)}
		rm.clients[identifier] = limiter
	}
	limiter.lastSeen = time.Now()
	return limiter
}

func (rm *RateLimiterMiddleware) cleanupClients() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rm.stop:
			return
		case <-ticker.C:
			if n := rm.evictIdle(clientIdleAfter); n > 0 {
				rm.log.Debug("rate limiter cleanup", zap.String("limiter", rm.name), zap.Int("removed", n))
			}
		}
	}
}

func (rm *RateLimiterMiddleware) evictIdle(idle time.Duration) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	count := 0
	for id, client := range rm.clients {
		if time.Since(client.lastSeen) > idle {
			delete(rm.clients, id)
			count++
		}
	}
	return count
}

// Stop ends the cleanup goroutine.
func (rm *RateLimiterMiddleware) Stop() {
	rm.once.Do(func() { close(rm.stop) })
}

// Limit creates the Gin middleware handler.
func (rm *RateLimiterMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := getClientIdentifier(c)
		limiter := rm.getClientLimiter(clientKey)

		if !limiter.limiter.Allow() {
			retryAfter := time.Second
			if rm.rate > 0 {
				retryAfter = time.Duration(float64(time.Second) / float64(rm.rate))
			}
			rm.log.Info("rate limit exceeded",
				zap.String("limiter", rm.name),
				zap.String("client", clientKey),
				zap.String("path", c.FullPath()),
			)
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds()+0.999)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}

		c.Next()
	}
}
