package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgate/internal/config"
)

func newRouter(t *testing.T, cfg RateLimitConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := gin.New()
	r.Use(RateLimitMiddleware(ctx, cfg))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func do(r *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware_LimitsPerClient(t *testing.T) {
	r := newRouter(t, RateLimitConfig{RPS: 0.001, Burst: 2, CleanupInterval: time.Minute, MaxAge: time.Minute})

	assert.Equal(t, http.StatusOK, do(r, "10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, do(r, "10.0.0.1:1000").Code)

	w := do(r, "10.0.0.1:1000")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")

	assert.Equal(t, http.StatusOK, do(r, "10.0.0.2:1000").Code)
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.RateLimitConfig{Enabled: true, RPS: 5, Burst: 7, CleanupInterval: 30, MaxAge: 90})
	assert.Equal(t, 5.0, cfg.RPS)
	assert.Equal(t, 7, cfg.Burst)
	assert.Equal(t, 30*time.Second, cfg.CleanupInterval)
	assert.Equal(t, 90*time.Second, cfg.MaxAge)

	defaults := FromConfig(config.RateLimitConfig{Enabled: true})
	assert.Equal(t, DefaultConfig(), defaults)
}

func TestStore_CleanupRemovesIdleClients(t *testing.T) {
	s := &store{limiters: make(map[string]*Limiter), config: RateLimitConfig{RPS: 1, Burst: 1, MaxAge: time.Minute}}
	s.get("a")

	s.cleanup(time.Now())
	assert.Len(t, s.limiters, 1)

	s.cleanup(time.Now().Add(2 * time.Minute))
	assert.Empty(t, s.limiters)
}
