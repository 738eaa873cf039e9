// Package router dispatches prefixed commands to registered handlers.
package router

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"chatgate/internal/logger"
	"chatgate/pkg/errors"
	"chatgate/pkg/metrics"
	"chatgate/pkg/models"
	"chatgate/pkg/tracing"
)

// Handler runs one command invocation.
type Handler interface {
	Handle(ctx context.Context, msg *models.CanonicalMessage, cmd models.Command) error
}

type HandlerFunc func(ctx context.Context, msg *models.CanonicalMessage, cmd models.Command) error

func (f HandlerFunc) Handle(ctx context.Context, msg *models.CanonicalMessage, cmd models.Command) error {
	return f(ctx, msg, cmd)
}

// CommandInfo describes a registered command.
type CommandInfo struct {
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases,omitempty"`
	Description string   `json:"description,omitempty"`
}

type entry struct {
	info    CommandInfo
	handler Handler
}

type Router struct {
	prefix   string
	mu       sync.RWMutex
	table    map[string]*entry
	commands []*entry
	fallback Handler
	logger   logger.Logger
}

func New(prefix string, log logger.Logger) *Router {
	return &Router{
		prefix: prefix,
		table:  make(map[string]*entry),
		logger: log,
	}
}

func (r *Router) Prefix() string {
	return r.prefix
}

// Register adds a handler under info.Name and its aliases. Names are matched
// case-insensitively; registering a taken name fails.
func (r *Router) Register(info CommandInfo, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := &entry{info: info, handler: h}
	names := append([]string{info.Name}, info.Aliases...)
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			return errors.ErrValidation.WithMessage("command name cannot be empty")
		}
		if _, exists := r.table[key]; exists {
			return errors.ErrValidation.WithMessage(fmt.Sprintf("command %q already registered", key))
		}
	}
	for _, name := range names {
		r.table[strings.ToLower(strings.TrimSpace(name))] = e
	}
	r.commands = append(r.commands, e)
	return nil
}

// SetDefault sets the handler for prefixed text naming no registered command.
func (r *Router) SetDefault(h Handler) {
	r.mu.Lock()
	r.fallback = h
	r.mu.Unlock()
}

// Commands lists registered commands sorted by name.
func (r *Router) Commands() []CommandInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]CommandInfo, 0, len(r.commands))
	for _, e := range r.commands {
		out = append(out, e.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Route dispatches msg when its text is a command. It reports whether a
// handler ran. Handler errors and panics come back as DISPATCH_ERROR.
func (r *Router) Route(ctx context.Context, msg *models.CanonicalMessage) (bool, error) {
	cmd, ok := Parse(msg.Text, r.prefix)
	if !ok {
		return false, nil
	}

	r.mu.RLock()
	e, found := r.table[cmd.Name]
	fallback := r.fallback
	r.mu.RUnlock()

	var h Handler
	label := cmd.Name
	switch {
	case found:
		h = e.handler
		label = e.info.Name
	case fallback != nil:
		h = fallback
		label = "default"
	default:
		return false, nil
	}

	r.logger.InfowCtx(ctx, "Dispatching command",
		"command", cmd.Name,
		"args", cmd.RawArgs,
		"sender_id", msg.SenderID,
	)

	ctx, span := tracing.StartSpan(ctx, "router.dispatch", msg.ID, msg.ConversationID)
	defer span.End()

	start := time.Now()
	err := r.invoke(ctx, h, msg, cmd)
	metrics.ObserveCommandDuration(label, time.Since(start))

	if err != nil {
		metrics.CommandsDispatchedTotal.WithLabelValues(label, "error").Inc()
		span.RecordError(err)
		return true, errors.ErrDispatch.WithCause(err).WithDetail("command", cmd.Name)
	}
	metrics.CommandsDispatchedTotal.WithLabelValues(label, "ok").Inc()
	return true, nil
}

func (r *Router) invoke(ctx context.Context, h Handler, msg *models.CanonicalMessage, cmd models.Command) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.RecoverPanic(rec)
		}
	}()
	return h.Handle(ctx, msg, cmd)
}
