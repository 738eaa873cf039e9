package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgate/internal/config"
	"chatgate/internal/logger"
	"chatgate/internal/pipeline"
	"chatgate/internal/router"
	"chatgate/pkg/health"
)

type fakeSession struct {
	connected bool
	selfID    string
}

func (f fakeSession) Connected() bool { return f.connected }
func (f fakeSession) SelfID() string  { return f.selfID }

type fakeGate struct {
	mu       sync.Mutex
	stats    pipeline.Stats
	released []string
}

func (f *fakeGate) Stats() pipeline.Stats { return f.stats }

func (f *fakeGate) Release(ctx context.Context, eventID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, eventID)
}

type fakeBreaker string

func (f fakeBreaker) IsOpen() bool        { return f == "open" }
func (f fakeBreaker) StateString() string { return string(f) }

func newTestEngine(t *testing.T, deps Deps, cfg config.Config) *gin.Engine {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := NewHandler(deps, logger.NopLogger())
	r := NewEngine(ctx, cfg, h, logger.NopLogger())
	gin.SetMode(gin.TestMode)
	return r
}

func get(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestStatus(t *testing.T) {
	gate := &fakeGate{stats: pipeline.Stats{Accepted: 3, Duplicates: 1, Dropped: 2, InFlight: 1}}
	r := newTestEngine(t, Deps{
		Session:       fakeSession{connected: true, selfID: "6281@s.whatsapp.net"},
		TransportType: "bridge",
		Gate:          gate,
		DedupBackend:  "memory",
		Breakers:      map[string]health.Breaker{"completion": fakeBreaker("closed")},
	}, config.Config{})

	w := get(r, http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, TransportStatus{Type: "bridge", Connected: true, SelfID: "6281@s.whatsapp.net"}, resp.Transport)
	assert.Equal(t, gate.stats, resp.Pipeline)
	assert.Equal(t, "memory", resp.Dedup.Backend)
	assert.Equal(t, map[string]string{"completion": "closed"}, resp.CircuitBreakers)
}

func TestListCommands(t *testing.T) {
	rt := router.New("!", logger.NopLogger())
	noop := router.HandlerFunc(nil)
	require.NoError(t, rt.Register(router.CommandInfo{Name: "ping", Description: "Check the bot is alive"}, noop))
	require.NoError(t, rt.Register(router.CommandInfo{Name: "ask", Aliases: []string{"askgpt"}}, noop))

	r := newTestEngine(t, Deps{Commands: rt}, config.Config{})

	w := get(r, http.MethodGet, "/api/v1/commands")
	require.Equal(t, http.StatusOK, w.Code)

	var cmds []router.CommandInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cmds))
	require.Len(t, cmds, 2)
	assert.Equal(t, "ask", cmds[0].Name)
	assert.Equal(t, []string{"askgpt"}, cmds[0].Aliases)
	assert.Equal(t, "ping", cmds[1].Name)
}

func TestListCommands_Empty(t *testing.T) {
	r := newTestEngine(t, Deps{}, config.Config{})
	w := get(r, http.MethodGet, "/api/v1/commands")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestReleaseEvent(t *testing.T) {
	gate := &fakeGate{}
	r := newTestEngine(t, Deps{Gate: gate}, config.Config{})

	w := get(r, http.MethodDelete, "/api/v1/dedup/3EB0C767D26A1D8F")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"released":"3EB0C767D26A1D8F"}`, w.Body.String())
	assert.Equal(t, []string{"3EB0C767D26A1D8F"}, gate.released)
}

func TestReleaseEvent_NoPipeline(t *testing.T) {
	r := newTestEngine(t, Deps{}, config.Config{})
	w := get(r, http.MethodDelete, "/api/v1/dedup/abc")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "UNAVAILABLE")
}

func TestHealth(t *testing.T) {
	healthy := health.NewCheckerRegistry()
	healthy.Register(health.NewTransportChecker("bridge", fakeSession{connected: true}))
	w := get(newTestEngine(t, Deps{Health: healthy}, config.Config{}), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)

	degraded := health.NewCheckerRegistry()
	degraded.Register(health.NewBreakerChecker("redis-dedup", fakeBreaker("open")))
	w = get(newTestEngine(t, Deps{Health: degraded}, config.Config{}), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded"`)

	down := health.NewCheckerRegistry()
	down.Register(health.NewTransportChecker("bridge", fakeSession{}))
	w = get(newTestEngine(t, Deps{Health: down}, config.Config{}), http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestEngine(t, Deps{}, config.Config{})
	w := get(r, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitApplied(t *testing.T) {
	cfg := config.Config{Server: config.ServerConfig{RateLimit: config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1}}}
	r := newTestEngine(t, Deps{}, cfg)

	assert.Equal(t, http.StatusOK, get(r, http.MethodGet, "/api/v1/commands").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, http.MethodGet, "/api/v1/commands").Code)
}

func TestRequestIDHeader(t *testing.T) {
	r := newTestEngine(t, Deps{}, config.Config{})
	w := get(r, http.MethodGet, "/api/v1/status")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
