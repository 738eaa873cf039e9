// Package transport connects the gateway to a chat session: it delivers raw
// events, sends outbound content and fetches media.
package transport

import (
	"context"
	"fmt"
	"io"
	"sync"

	"chatgate/internal/broker"
	"chatgate/internal/config"
	"chatgate/internal/constants"
	"chatgate/internal/logger"
	"chatgate/pkg/models"
)

// EventHandler receives raw events in delivery order.
type EventHandler interface {
	HandleEvent(ctx context.Context, raw *models.RawEvent) error
}

type EventHandlerFunc func(ctx context.Context, raw *models.RawEvent) error

func (f EventHandlerFunc) HandleEvent(ctx context.Context, raw *models.RawEvent) error {
	return f(ctx, raw)
}

type Transport interface {
	// Start delivers events to h until ctx is canceled or the session ends
	// for good.
	Start(ctx context.Context, h EventHandler) error
	Send(ctx context.Context, to string, content models.OutboundContent, opts models.SendOptions) (string, error)
	FetchMedia(ctx context.Context, desc models.MediaDescriptor) (io.ReadCloser, error)
	SelfID() string
	Connected() bool
	OnConnection(fn func(models.ConnectionUpdate))
	Close() error
}

// New builds the transport selected by cfg.Type.
func New(cfg config.Config, log logger.Logger) (Transport, error) {
	fetcher := NewHTTPFetcher(cfg.Transport.Media, cfg.Transport.Bridge.Token, cfg.CircuitBreaker, log)

	switch cfg.Transport.Type {
	case constants.TransportBridge, "":
		return NewBridge(cfg.Transport, fetcher, log), nil
	case constants.TransportKafka:
		producer, err := broker.NewProducer(cfg.Transport, log)
		if err != nil {
			return nil, err
		}
		consumer, err := broker.NewConsumer(cfg.Transport, log)
		if err != nil {
			return nil, err
		}
		return NewKafka(cfg.Transport.Kafka, producer, consumer, fetcher, log), nil
	default:
		return nil, fmt.Errorf("unknown transport type: %s", cfg.Transport.Type)
	}
}

// listeners fans connection updates out to subscribers.
type listeners struct {
	mu  sync.RWMutex
	fns []func(models.ConnectionUpdate)
}

func (l *listeners) add(fn func(models.ConnectionUpdate)) {
	l.mu.Lock()
	l.fns = append(l.fns, fn)
	l.mu.Unlock()
}

func (l *listeners) emit(update models.ConnectionUpdate) {
	l.mu.RLock()
	fns := make([]func(models.ConnectionUpdate), len(l.fns))
	copy(fns, l.fns)
	l.mu.RUnlock()

	for _, fn := range fns {
		fn(update)
	}
}
