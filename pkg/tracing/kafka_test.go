package tracing

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestKafkaHeaderCarrier_RoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "produce")
	defer span.End()

	headers := InjectTraceContext(ctx, []kafka.Header{{Key: "content-type", Value: []byte("application/json")}})
	require.Len(t, headers, 2)
	assert.Equal(t, traceParentHeader, headers[1].Key)

	extracted := ExtractTraceContext(context.Background(), headers)
	assert.Equal(t, span.SpanContext().TraceID(), trace.SpanContextFromContext(extracted).TraceID())
}

func TestStartConsumeSpan_ContinuesProducerTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, producer := tp.Tracer("test").Start(context.Background(), "produce")
	defer producer.End()

	m := kafka.Message{Topic: "chat_events", Partition: 2, Offset: 41, Headers: InjectTraceContext(ctx, nil)}
	_, span := StartConsumeSpan(context.Background(), m)
	defer span.End()

	assert.Equal(t, producer.SpanContext().TraceID(), span.SpanContext().TraceID())
	assert.NotEqual(t, producer.SpanContext().SpanID(), span.SpanContext().SpanID())
}
