package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"chatgate/internal/config"
	"chatgate/pkg/metrics"
)

type Limiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	mu       sync.Mutex
}

type RateLimitConfig struct {
	RPS             float64
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration
}

func DefaultConfig() RateLimitConfig {
	return RateLimitConfig{
		RPS:             10.0,
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

// FromConfig converts the admin server settings, whose intervals are in
// seconds, filling zero values from DefaultConfig.
func FromConfig(cfg config.RateLimitConfig) RateLimitConfig {
	out := DefaultConfig()
	if cfg.RPS > 0 {
		out.RPS = cfg.RPS
	}
	if cfg.Burst > 0 {
		out.Burst = cfg.Burst
	}
	if cfg.CleanupInterval > 0 {
		out.CleanupInterval = time.Duration(cfg.CleanupInterval) * time.Second
	}
	if cfg.MaxAge > 0 {
		out.MaxAge = time.Duration(cfg.MaxAge) * time.Second
	}
	return out
}

type store struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
	config   RateLimitConfig
}

func (s *store) get(clientIP string) *Limiter {
	s.mu.RLock()
	limiter, exists := s.limiters[clientIP]
	s.mu.RUnlock()

	if !exists {
		s.mu.Lock()
		limiter, exists = s.limiters[clientIP]
		if !exists {
			limiter = &Limiter{
				limiter:  rate.NewLimiter(rate.Limit(s.config.RPS), s.config.Burst),
				lastSeen: time.Now(),
			}
			s.limiters[clientIP] = limiter
		}
		s.mu.Unlock()
	}

	limiter.mu.Lock()
	limiter.lastSeen = time.Now()
	limiter.mu.Unlock()

	return limiter
}

func (s *store) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ip, limiter := range s.limiters {
		limiter.mu.Lock()
		lastSeen := limiter.lastSeen
		limiter.mu.Unlock()
		if now.Sub(lastSeen) > s.config.MaxAge {
			delete(s.limiters, ip)
		}
	}
}

// RateLimitMiddleware limits requests per client IP. The cleanup goroutine
// stops when ctx is done.
func RateLimitMiddleware(ctx context.Context, config RateLimitConfig) gin.HandlerFunc {
	s := &store{
		limiters: make(map[string]*Limiter),
		config:   config,
	}

	go func() {
		ticker := time.NewTicker(config.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.cleanup(now)
			}
		}
	}()

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if clientIP == "" {
			clientIP = c.RemoteIP()
		}

		limiter := s.get(clientIP)

		if !limiter.limiter.Allow() {
			metrics.RateLimitRequestsTotal.WithLabelValues("limited").Inc()
			c.Header("X-RateLimit-Limit", formatRate(config.RPS))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate limit exceeded",
				"error_code": "RATE_LIMIT_EXCEEDED",
			})
			c.Abort()
			return
		}

		metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()

		c.Header("X-RateLimit-Limit", formatRate(config.RPS))
		remaining := int(limiter.limiter.Tokens())
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		c.Next()
	}
}

func formatRate(rps float64) string {
	return strconv.FormatFloat(rps, 'f', -1, 64)
}
