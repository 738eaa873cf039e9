package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"chatgate/internal/config"
	"chatgate/internal/constants"
	"chatgate/internal/logger"
	"chatgate/pkg/errors"
	"chatgate/pkg/logging"
	"chatgate/pkg/metrics"
	"chatgate/pkg/retry"
	"chatgate/pkg/tracing"
)

type KafkaProducer struct {
	writer      *kafka.Writer
	logger      logger.Logger
	serviceName string
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}
	return &KafkaProducer{writer: w, logger: log, serviceName: tracing.TracerName}
}

// Publish writes payload as JSON. Records with the same key land on the same
// partition, so replies to one conversation stay ordered.
func (p *KafkaProducer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	headers := tracing.InjectTraceContext(ctx, []kafka.Header{})

	start := time.Now()
	err = p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic:   topic,
			Key:     []byte(key),
			Value:   body,
			Headers: headers,
			Time:    time.Now(),
		},
	)
	metrics.ObserveKafkaWriteDuration(p.serviceName, topic, time.Since(start))

	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.IncKafkaMessagesWritten(p.serviceName, topic)
	metrics.ObserveKafkaMessageSize(p.serviceName, topic, "out", len(body))
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

type KafkaConsumer struct {
	cfg         config.KafkaConfig
	wg          sync.WaitGroup
	mu          sync.Mutex
	reader      *kafka.Reader
	logger      logger.Logger
	dlqProducer Producer
	serviceName string
}

func NewKafkaConsumer(cfg config.KafkaConfig, log logger.Logger) *KafkaConsumer {
	consumer := &KafkaConsumer{
		cfg:         cfg,
		logger:      log,
		serviceName: tracing.TracerName,
	}

	if cfg.DLQTopic != "" {
		consumer.dlqProducer = NewKafkaProducer(cfg, log)
	}

	return consumer
}

func (c *KafkaConsumer) SetServiceName(name string) {
	c.serviceName = name
}

// Consume reads topic until ctx is canceled. Records are handled one at a
// time in partition order and committed after handling, retries and DLQ.
func (c *KafkaConsumer) Consume(ctx context.Context, topic string, handler HandlerFunc) error {
	c.logger.Infow("Creating Kafka reader",
		"topic", topic,
		"brokers", c.cfg.Brokers,
		"group_id", c.cfg.GroupID,
		"service_name", c.serviceName,
	)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.cfg.Brokers,
		GroupID:  c.cfg.GroupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	c.mu.Lock()
	c.reader = reader
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		consumeCtx := logging.WithServiceName(ctx, c.serviceName)
		c.logger.InfowCtx(consumeCtx, "Started consuming",
			"topic", topic,
		)

		for {
			start := time.Now()
			m, err := reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.InfowCtx(consumeCtx, "Stopped consuming",
						"topic", topic,
						"reason", "context canceled",
					)
					return
				}
				c.logger.ErrorwCtx(consumeCtx, "Error fetching kafka message",
					"error", err,
					"topic", topic,
				)
				time.Sleep(time.Second)
				continue
			}
			metrics.ObserveKafkaReadDuration(c.serviceName, topic, time.Since(start))
			metrics.IncKafkaMessagesRead(c.serviceName, topic)
			metrics.ObserveKafkaMessageSize(c.serviceName, topic, "in", len(m.Value))
			metrics.SetKafkaConsumerLag(c.serviceName, topic, m.Partition, reader.Lag())

			c.handle(ctx, reader, m, handler)
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}

func (c *KafkaConsumer) handle(ctx context.Context, reader *kafka.Reader, m kafka.Message, handler HandlerFunc) {
	msgCtx, span := tracing.StartConsumeSpan(ctx, m)
	defer span.End()
	msgCtx = logging.WithServiceName(msgCtx, c.serviceName)

	key := string(m.Key)
	if err := c.processMessageWithRetry(msgCtx, key, m.Value, handler, m.Topic); err != nil {
		span.RecordError(err)
		c.logger.ErrorwCtx(msgCtx, "Failed to process message after retries",
			"error", err,
			"topic", m.Topic,
			"offset", m.Offset,
		)
		if c.dlqProducer != nil {
			if dlqErr := c.sendToDLQ(msgCtx, key, m.Value, err, m.Topic); dlqErr != nil {
				c.logger.ErrorwCtx(msgCtx, "Failed to send message to DLQ",
					"error", dlqErr,
					"topic", m.Topic,
				)
			}
		} else {
			c.logger.WarnwCtx(msgCtx, "No DLQ configured, committing message to avoid blocking",
				"topic", m.Topic,
			)
		}
	}

	if err := reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		c.logger.ErrorwCtx(msgCtx, "Failed to commit message",
			"error", err,
			"topic", m.Topic,
		)
	}
}

func (c *KafkaConsumer) Close() error {
	var err error
	c.mu.Lock()
	reader := c.reader
	c.mu.Unlock()
	if reader != nil {
		err = reader.Close()
	}
	if c.dlqProducer != nil {
		if closeErr := c.dlqProducer.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	c.wg.Wait()
	return err
}

func (c *KafkaConsumer) processMessageWithRetry(ctx context.Context, key string, value []byte, handler HandlerFunc, topic string) error {
	policy := retry.PolicyFromConfig(c.cfg.Retry)

	return retry.RetryWithCallback(ctx, policy, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.RecoverPanic(r)
				c.logger.ErrorwCtx(ctx, "Panic recovered during message processing",
					"error", err,
					"topic", topic,
				)
			}
		}()
		return handler(ctx, key, value)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(c.serviceName, topic).Inc()
		c.logger.WarnwCtx(ctx, "Retrying message processing",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
			"topic", topic,
		)
	})
}

func (c *KafkaConsumer) sendToDLQ(ctx context.Context, key string, value []byte, originalErr error, sourceTopic string) error {
	letter := DeadLetter{
		SourceTopic: sourceTopic,
		Key:         key,
		Reason:      originalErr.Error(),
		Timestamp:   time.Now(),
		Payload:     deadLetterPayload(value),
	}

	if err := c.dlqProducer.Publish(ctx, c.cfg.DLQTopic, key, letter); err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}

	reason := "max_retries_exceeded"
	if errors.Code(originalErr) != "" {
		reason = errors.Code(originalErr)
	}
	metrics.DLQMessagesTotal.WithLabelValues(c.serviceName, sourceTopic, reason).Inc()
	c.logger.InfowCtx(ctx, "Message sent to DLQ",
		"source_topic", sourceTopic,
		"dlq_topic", c.cfg.DLQTopic,
		"reason", originalErr.Error(),
	)

	return nil
}

// deadLetterPayload keeps valid JSON as-is and quotes anything else so the
// dead letter itself always marshals.
func deadLetterPayload(value []byte) json.RawMessage {
	if json.Valid(value) {
		return json.RawMessage(value)
	}
	quoted, _ := json.Marshal(string(value))
	return json.RawMessage(quoted)
}
