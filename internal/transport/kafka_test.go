package transport

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgate/internal/broker"
	"chatgate/internal/config"
	"chatgate/internal/logger"
	"chatgate/pkg/models"
	"chatgate/pkg/retry"
)

type published struct {
	topic   string
	key     string
	payload interface{}
}

type fakeProducer struct {
	records []published
	closed  bool
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, payload interface{}) error {
	p.records = append(p.records, published{topic: topic, key: key, payload: payload})
	return nil
}

func (p *fakeProducer) Close() error {
	p.closed = true
	return nil
}

// fakeConsumer replays values through the handler and then returns.
type fakeConsumer struct {
	values  [][]byte
	errs    []error
	service string
	topic   string
	closed  bool
}

func (c *fakeConsumer) Consume(ctx context.Context, topic string, handler broker.HandlerFunc) error {
	c.topic = topic
	for _, v := range c.values {
		c.errs = append(c.errs, handler(ctx, "k", v))
	}
	return nil
}

func (c *fakeConsumer) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConsumer) SetServiceName(name string) {
	c.service = name
}

func TestKafka_StartDeliversEvents(t *testing.T) {
	consumer := &fakeConsumer{values: [][]byte{
		[]byte(`{"key":{"id":"EV1","remoteJid":"628222@s.whatsapp.net"},"message":{"conversation":"!tes"}}`),
		[]byte(`not json`),
	}}
	k := NewKafka(config.KafkaConfig{SelfID: "628111:3@s.whatsapp.net"}, &fakeProducer{}, consumer, nil, logger.NopLogger())

	var states []models.ConnectionState
	k.OnConnection(func(u models.ConnectionUpdate) { states = append(states, u.State) })

	var got []string
	err := k.Start(context.Background(), EventHandlerFunc(func(_ context.Context, raw *models.RawEvent) error {
		got = append(got, raw.Key.ID)
		return nil
	}))
	require.NoError(t, err)

	assert.Equal(t, "chat_events", consumer.topic)
	assert.Equal(t, "chatgate-kafka", consumer.service)
	assert.Equal(t, []string{"EV1"}, got)
	require.Len(t, consumer.errs, 2)
	assert.NoError(t, consumer.errs[0])

	var fatal retry.FatalError
	require.True(t, errors.As(consumer.errs[1], &fatal))
	assert.True(t, fatal.IsFatal())

	assert.Equal(t, "628111@s.whatsapp.net", k.SelfID())
	assert.Equal(t, []models.ConnectionState{models.ConnectionOpen, models.ConnectionClosed}, states)
	assert.False(t, k.Connected())
}

func TestKafka_Send(t *testing.T) {
	producer := &fakeProducer{}
	k := NewKafka(config.KafkaConfig{OutputTopic: "replies"}, producer, &fakeConsumer{}, nil, logger.NopLogger())

	id, err := k.Send(context.Background(), "628222@s.whatsapp.net", models.TextContent{Text: "Pong!"},
		models.SendOptions{MessageID: "OUT-7", Expiration: 86400})
	require.NoError(t, err)
	assert.Equal(t, "OUT-7", id)

	require.Len(t, producer.records, 1)
	rec := producer.records[0]
	assert.Equal(t, "replies", rec.topic)
	assert.Equal(t, "628222@s.whatsapp.net", rec.key)

	body, err := json.Marshal(rec.payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"OUT-7","to":"628222@s.whatsapp.net","content":{"text":"Pong!"},"ephemeralExpiration":86400}`, string(body))

	id, err = k.Send(context.Background(), "628222@s.whatsapp.net", models.TextContent{Text: "again"}, models.SendOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestKafka_Close(t *testing.T) {
	producer := &fakeProducer{}
	consumer := &fakeConsumer{}
	k := NewKafka(config.KafkaConfig{}, producer, consumer, nil, logger.NopLogger())

	require.NoError(t, k.Close())
	assert.True(t, producer.closed)
	assert.True(t, consumer.closed)
}
