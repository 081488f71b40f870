package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ActionLimiter caps how many actions one browser may fire per window.
type ActionLimiter struct {
	mu       sync.Mutex
	history  map[string][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewActionLimiter(limit int, interval time.Duration) *ActionLimiter {
	return &ActionLimiter{
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *ActionLimiter) Allow(token string) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[token]
	fresh := make([]time.Time, 0, len(attempts)+1)
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= rl.limit {
		rl.history[token] = fresh
		return false
	}
	rl.history[token] = append(fresh, now)
	return true
}

// Middleware rejects over-limit callers with 429, keyed by client token.
func (rl *ActionLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetString(clientTokenKey)
		if !rl.Allow(token) {
			log.Warn().Str("module", "adapters.http").Str("ct", token).Str("path", c.FullPath()).Msg("action rate limited")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
