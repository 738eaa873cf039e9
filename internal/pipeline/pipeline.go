// Package pipeline takes raw events from the transport through dedup,
// normalization, policy and command routing.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"chatgate/internal/config"
	"chatgate/internal/dedup"
	"chatgate/internal/logger"
	"chatgate/internal/normalize"
	"chatgate/pkg/errors"
	"chatgate/pkg/logging"
	"chatgate/pkg/metrics"
	"chatgate/pkg/models"
	"chatgate/pkg/tracing"
)

// Filter decides whether a normalized message may be routed.
type Filter interface {
	Allow(ctx context.Context, msg *models.CanonicalMessage) bool
}

// Router dispatches a normalized message to a command handler.
type Router interface {
	Route(ctx context.Context, msg *models.CanonicalMessage) (bool, error)
}

type Stats struct {
	Accepted   uint64 `json:"accepted"`
	Duplicates uint64 `json:"duplicates"`
	Dropped    uint64 `json:"dropped"`
	InFlight   int64  `json:"in_flight"`
}

// Pipeline is the transport's EventHandler. Events arrive serially; the dedup
// check runs on the caller's goroutine and everything after it runs in a
// per-event goroutine. Admission never blocks the caller: when the handler
// limit is reached the event is dropped and its dedup entry released.
type Pipeline struct {
	cache  dedup.Cache
	filter Filter
	router Router
	selfID func() string
	group  errgroup.Group
	logger logger.Logger

	// mu orders admission against Shutdown so no goroutine is started once
	// Wait has begun.
	mu     sync.Mutex
	closed bool

	accepted   atomic.Uint64
	duplicates atomic.Uint64
	dropped    atomic.Uint64
	inFlight   atomic.Int64
}

// New builds a pipeline. filter may be nil; selfID is read per event since
// the session identity is known only once the transport is open.
func New(cache dedup.Cache, filter Filter, router Router, selfID func() string, cfg config.GatewayConfig, log logger.Logger) *Pipeline {
	p := &Pipeline{
		cache:  cache,
		filter: filter,
		router: router,
		selfID: selfID,
		logger: log,
	}
	if cfg.MaxConcurrentHandlers > 0 {
		p.group.SetLimit(cfg.MaxConcurrentHandlers)
	}
	return p
}

// HandleEvent admits raw through the dedup gate and schedules processing.
// It returns before the handler finishes.
func (p *Pipeline) HandleEvent(ctx context.Context, raw *models.RawEvent) error {
	if raw == nil || raw.Message == nil {
		p.drop("no_message")
		return nil
	}
	if err := models.ValidateKey(raw); err != nil {
		p.drop("malformed_key")
		p.logger.WarnwCtx(ctx, "Dropping event with malformed key", "error", err)
		return nil
	}
	if p.isClosed() {
		return errShuttingDown
	}

	eventID := raw.Key.ID
	if !p.cache.ShouldProcess(ctx, eventID) {
		p.duplicates.Add(1)
		metrics.EventsDroppedTotal.WithLabelValues("duplicate").Inc()
		p.logger.DebugwCtx(ctx, "Skipping duplicate event", "event_id", eventID)
		return nil
	}

	handlerCtx := context.WithoutCancel(ctx)
	started, closed := p.admit(func() {
		p.process(handlerCtx, raw)
	})
	switch {
	case closed:
		p.cache.Release(ctx, eventID)
		return errShuttingDown
	case !started:
		p.cache.Release(ctx, eventID)
		p.drop("overloaded")
		p.logger.WarnwCtx(ctx, "Dropping event, handler limit reached", "event_id", eventID)
	}
	return nil
}

var errShuttingDown = errors.ErrUnavailable.WithMessage("pipeline is shutting down")

func (p *Pipeline) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// admit starts fn unless the pipeline is closed or at its handler limit.
func (p *Pipeline) admit(fn func()) (started, closed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false, true
	}
	started = p.group.TryGo(func() error {
		fn()
		return nil
	})
	if started {
		p.accepted.Add(1)
	}
	return started, false
}

func (p *Pipeline) process(ctx context.Context, raw *models.RawEvent) {
	start := time.Now()
	p.inFlight.Add(1)
	metrics.HandlersInFlight.Inc()

	ctx = logging.WithEventID(ctx, raw.Key.ID)
	ctx = logging.WithConversationID(ctx, raw.Key.RemoteJID)
	ctx, span := tracing.StartSpan(ctx, "pipeline.process", raw.Key.ID, raw.Key.RemoteJID)

	status := "ok"
	defer func() {
		if r := recover(); r != nil {
			err := errors.RecoverPanic(r)
			status = "panic"
			span.RecordError(err)
			p.logger.ErrorwCtx(ctx, "Panic recovered while processing event", "error", err)
		}
		span.End()
		p.inFlight.Add(-1)
		metrics.HandlersInFlight.Dec()
		metrics.ObserveEventDuration(time.Since(start), status)
	}()

	msg, err := normalize.Normalize(raw, p.selfID())
	if err != nil {
		status = "dropped"
		p.drop(reasonFor(err))
		p.logger.WarnwCtx(ctx, "Dropping event that could not be normalized", "error", err)
		return
	}

	if p.filter != nil && !p.filter.Allow(ctx, msg) {
		status = "filtered"
		p.drop("filtered")
		return
	}

	handled, err := p.router.Route(ctx, msg)
	switch {
	case err != nil:
		status = "error"
		span.RecordError(err)
		p.logger.ErrorwCtx(ctx, "Command handler failed",
			"sender_id", msg.SenderID,
			"error", err,
		)
	case !handled:
		status = "ignored"
	}
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, errors.ErrNoContent):
		return "no_content"
	case errors.Is(err, errors.ErrMalformedKey):
		return "malformed_key"
	default:
		return "normalize_error"
	}
}

func (p *Pipeline) drop(reason string) {
	p.dropped.Add(1)
	metrics.EventsDroppedTotal.WithLabelValues(reason).Inc()
}

// Release force-expires the dedup entry for eventID.
func (p *Pipeline) Release(ctx context.Context, eventID string) {
	p.cache.Release(ctx, eventID)
}

func (p *Pipeline) Stats() Stats {
	return Stats{
		Accepted:   p.accepted.Load(),
		Duplicates: p.duplicates.Load(),
		Dropped:    p.dropped.Load(),
		InFlight:   p.inFlight.Load(),
	}
}

// Shutdown stops admitting events and waits for in-flight handlers or ctx.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = p.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
