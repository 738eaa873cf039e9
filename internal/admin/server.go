package admin

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chatgate/internal/config"
	"chatgate/internal/logger"
	"chatgate/internal/pipeline"
	"chatgate/internal/router"
	"chatgate/pkg/errors"
	"chatgate/pkg/health"
	"chatgate/pkg/middleware"
	"chatgate/pkg/ratelimit"
	"chatgate/pkg/tracing"
)

// Session is the transport state shown on the status page.
type Session interface {
	Connected() bool
	SelfID() string
}

// Gate is the part of the pipeline the API reads and controls.
type Gate interface {
	Stats() pipeline.Stats
	Release(ctx context.Context, eventID string)
}

type CommandLister interface {
	Commands() []router.CommandInfo
}

type Deps struct {
	Session       Session
	TransportType string
	Gate          Gate
	Commands      CommandLister
	Health        *health.CheckerRegistry
	DedupBackend  string
	Breakers      map[string]health.Breaker
}

type TransportStatus struct {
	Type      string `json:"type"`
	Connected bool   `json:"connected"`
	SelfID    string `json:"self_id,omitempty"`
}

type DedupStatus struct {
	Backend string `json:"backend"`
}

type StatusResponse struct {
	Transport       TransportStatus   `json:"transport"`
	Pipeline        pipeline.Stats    `json:"pipeline"`
	Dedup           DedupStatus       `json:"dedup"`
	CircuitBreakers map[string]string `json:"circuit_breakers"`
}

type Handler struct {
	deps   Deps
	logger logger.Logger
}

func NewHandler(deps Deps, log logger.Logger) *Handler {
	if deps.Health == nil {
		deps.Health = health.NewCheckerRegistry()
	}
	return &Handler{deps: deps, logger: log}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/status", h.Status)
		v1.GET("/commands", h.ListCommands)
		v1.DELETE("/dedup/:id", h.ReleaseEvent)
	}
}

func (h *Handler) Health(c *gin.Context) {
	result := h.deps.Health.Check(c.Request.Context())
	statusCode := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, result)
}

func (h *Handler) Status(c *gin.Context) {
	resp := StatusResponse{
		Transport:       TransportStatus{Type: h.deps.TransportType},
		Dedup:           DedupStatus{Backend: h.deps.DedupBackend},
		CircuitBreakers: make(map[string]string, len(h.deps.Breakers)),
	}
	if h.deps.Session != nil {
		resp.Transport.Connected = h.deps.Session.Connected()
		resp.Transport.SelfID = h.deps.Session.SelfID()
	}
	if h.deps.Gate != nil {
		resp.Pipeline = h.deps.Gate.Stats()
	}
	for name, b := range h.deps.Breakers {
		resp.CircuitBreakers[name] = b.StateString()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListCommands(c *gin.Context) {
	var cmds []router.CommandInfo
	if h.deps.Commands != nil {
		cmds = h.deps.Commands.Commands()
	}
	if cmds == nil {
		cmds = []router.CommandInfo{}
	}
	c.JSON(http.StatusOK, cmds)
}

// ReleaseEvent force-expires a dedup entry so a redelivery is processed again.
func (h *Handler) ReleaseEvent(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		h.HandleError(c, errors.ErrValidation.WithMessage("event id is required"))
		return
	}
	if h.deps.Gate == nil {
		h.HandleError(c, errors.ErrUnavailable.WithMessage("pipeline is not running"))
		return
	}

	h.deps.Gate.Release(c.Request.Context(), id)
	h.logger.InfowCtx(c.Request.Context(), "Dedup entry released", "event_id", id)
	c.JSON(http.StatusOK, gin.H{"released": id})
}

// NewEngine builds the admin router with the standard middleware chain. ctx
// bounds the rate limiter's cleanup goroutine.
func NewEngine(ctx context.Context, cfg config.Config, h *Handler, log logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	if cfg.Tracing.Enabled {
		r.Use(tracing.GinMiddleware(tracing.TracerName))
	}

	r.Use(middleware.RecoveryMiddleware(log))
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware(log))

	if cfg.Server.RateLimit.Enabled {
		rateLimitConfig := ratelimit.FromConfig(cfg.Server.RateLimit)
		r.Use(ratelimit.RateLimitMiddleware(ctx, rateLimitConfig))
		log.InfowCtx(ctx, "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	h.RegisterRoutes(r)
	return r
}
