package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"chatgate/internal/broker"
	"chatgate/internal/config"
	"chatgate/internal/constants"
	"chatgate/internal/logger"
	"chatgate/internal/normalize"
	"chatgate/pkg/errors"
	"chatgate/pkg/logging"
	"chatgate/pkg/metrics"
	"chatgate/pkg/models"
	"chatgate/pkg/retry"
)

// Kafka consumes raw events from an input topic and produces outbound
// records to an output topic. Some other process owns the chat session.
type Kafka struct {
	cfg       config.KafkaConfig
	producer  broker.Producer
	consumer  broker.Consumer
	fetcher   *HTTPFetcher
	logger    logger.Logger
	listeners listeners
	selfID    string
	connected atomic.Bool
}

func NewKafka(cfg config.KafkaConfig, producer broker.Producer, consumer broker.Consumer, fetcher *HTTPFetcher, log logger.Logger) *Kafka {
	if cfg.InputTopic == "" {
		cfg.InputTopic = constants.DefaultInputTopic
	}
	if cfg.OutputTopic == "" {
		cfg.OutputTopic = constants.DefaultOutputTopic
	}
	consumer.SetServiceName("chatgate-" + constants.TransportKafka)

	return &Kafka{
		cfg:      cfg,
		producer: producer,
		consumer: consumer,
		fetcher:  fetcher,
		logger:   log,
		selfID:   normalize.NormalizeID(cfg.SelfID),
	}
}

func (k *Kafka) Start(ctx context.Context, h EventHandler) error {
	k.setConnected(true)
	k.listeners.emit(models.ConnectionUpdate{
		State:     models.ConnectionOpen,
		SelfID:    k.selfID,
		Timestamp: time.Now(),
	})
	defer func() {
		k.setConnected(false)
		k.listeners.emit(models.ConnectionUpdate{
			State:     models.ConnectionClosed,
			Reason:    "consumer stopped",
			Timestamp: time.Now(),
		})
	}()

	err := k.consumer.Consume(ctx, k.cfg.InputTopic, func(ctx context.Context, key string, value []byte) error {
		return k.handleRecord(ctx, h, key, value)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (k *Kafka) handleRecord(ctx context.Context, h EventHandler, key string, value []byte) error {
	var raw models.RawEvent
	if err := json.Unmarshal(value, &raw); err != nil {
		return retry.NewFatalError(errors.ErrValidation.WithCause(err).WithMessage("record is not a raw event"))
	}

	metrics.EventsReceivedTotal.WithLabelValues(constants.TransportKafka).Inc()
	ctx = logging.WithEventID(ctx, raw.Key.ID)
	k.logger.DebugwCtx(ctx, "Received event", "record_key", key)
	return h.HandleEvent(ctx, &raw)
}

// Send publishes the outbound record keyed by recipient. The returned id is
// the caller's message id or a fresh one.
func (k *Kafka) Send(ctx context.Context, to string, content models.OutboundContent, opts models.SendOptions) (string, error) {
	id := opts.MessageID
	if id == "" {
		id = uuid.NewString()
	}

	record := models.EncodeOutbound(id, models.Outbound{To: to, Content: content, Options: opts})
	if err := k.producer.Publish(ctx, k.cfg.OutputTopic, to, record); err != nil {
		return "", fmt.Errorf("failed to publish outbound record: %w", err)
	}
	return id, nil
}

func (k *Kafka) FetchMedia(ctx context.Context, desc models.MediaDescriptor) (io.ReadCloser, error) {
	return k.fetcher.FetchMedia(ctx, desc)
}

func (k *Kafka) SelfID() string {
	return k.selfID
}

func (k *Kafka) Connected() bool {
	return k.connected.Load()
}

func (k *Kafka) OnConnection(fn func(models.ConnectionUpdate)) {
	k.listeners.add(fn)
}

func (k *Kafka) Close() error {
	consumerErr := k.consumer.Close()
	producerErr := k.producer.Close()
	if consumerErr != nil {
		return consumerErr
	}
	return producerErr
}

func (k *Kafka) setConnected(connected bool) {
	k.connected.Store(connected)
	metrics.SetTransportConnected(constants.TransportKafka, connected)
}
