package broker

import (
	"context"
	"encoding/json"
	"time"
)

type Producer interface {
	Publish(ctx context.Context, topic, key string, payload interface{}) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

// HandlerFunc processes one record value. Returning a fatal error skips the
// remaining retries and sends the record to the DLQ.
type HandlerFunc func(ctx context.Context, key string, value []byte) error

// DeadLetter wraps a record that exhausted its retries.
type DeadLetter struct {
	SourceTopic string          `json:"source_topic"`
	Key         string          `json:"key,omitempty"`
	Reason      string          `json:"reason"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
}
