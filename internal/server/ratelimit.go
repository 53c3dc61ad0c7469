package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const clientLimiterIdleTTL = 10 * time.Minute

// clientRateLimiter throttles requests per client IP. Idle clients are
// evicted so the map does not grow without bound.
type clientRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiterEntry
	limit   rate.Limit
	burst   int
	clock   func() time.Time
}

type clientLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientRateLimiter(requestsPerSecond float64, burst int) *clientRateLimiter {
	return &clientRateLimiter{
		clients: make(map[string]*clientLimiterEntry),
		limit:   rate.Limit(requestsPerSecond),
		burst:   burst,
		clock:   time.Now,
	}
}

func (l *clientRateLimiter) allow(clientIP string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	entry, ok := l.clients[clientIP]
	if !ok {
		entry = &clientLimiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[clientIP] = entry
	}
	entry.lastSeen = now

	for ip, stale := range l.clients {
		if now.Sub(stale.lastSeen) > clientLimiterIdleTTL {
			delete(l.clients, ip)
		}
	}

	return entry.limiter.Allow()
}

func (l *clientRateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
			return
		}
		c.Next()
	}
}
