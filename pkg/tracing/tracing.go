package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"chatgate/internal/config"
)

// TracerName is the instrumentation name used for gateway spans.
const TracerName = "chatgate"

const exporterTimeout = 5 * time.Second

// Resource identifies this gateway instance on exported spans.
type Resource struct {
	ServiceName   string
	Version       string
	TransportType string
	InstanceID    string
}

type TracerProvider struct {
	tp *sdktrace.TracerProvider
}

func (tp *TracerProvider) Tracer(name string) trace.Tracer {
	return tp.tp.Tracer(name)
}

func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.tp != nil {
		return tp.tp.Shutdown(ctx)
	}
	return nil
}

// Init installs the global tracer provider. With tracing disabled spans are
// recorded nowhere.
func Init(cfg config.TracingConfig, res Resource) (*TracerProvider, error) {
	if !cfg.Enabled {
		return &TracerProvider{tp: sdktrace.NewTracerProvider()}, nil
	}

	sampler, err := NewSampler(cfg.Sampler)
	if err != nil {
		return nil, err
	}

	otelRes, err := resource.New(context.Background(),
		resource.WithAttributes(res.Attributes(cfg.ServiceName)...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := newExporter(cfg.OTLP)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(otelRes),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{tp: tp}, nil
}

// Attributes returns the resource attributes. The service name falls back to
// configured, then TracerName.
func (r Resource) Attributes(configured string) []attribute.KeyValue {
	name := r.ServiceName
	if name == "" {
		name = configured
	}
	if name == "" {
		name = TracerName
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(name)}
	if r.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(r.Version))
	}
	if r.InstanceID != "" {
		attrs = append(attrs, semconv.ServiceInstanceID(r.InstanceID))
	}
	if r.TransportType != "" {
		attrs = append(attrs, attribute.String("chat.transport", r.TransportType))
	}
	return attrs
}

func newExporter(cfg config.OTLPConfig) (sdktrace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), exporterTimeout)
	defer cancel()

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	return exporter, nil
}

// NewSampler maps the configured sampler. An empty type samples everything.
func NewSampler(cfg config.SamplerConfig) (sdktrace.Sampler, error) {
	switch cfg.Type {
	case "", "always_on":
		return sdktrace.AlwaysSample(), nil
	case "always_off":
		return sdktrace.NeverSample(), nil
	case "traceidratio":
		return sdktrace.TraceIDRatioBased(cfg.Param), nil
	case "parentbased_always_on":
		return sdktrace.ParentBased(sdktrace.AlwaysSample()), nil
	case "parentbased_traceidratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Param)), nil
	default:
		return nil, fmt.Errorf("unknown trace sampler %q", cfg.Type)
	}
}

func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a gateway span tagged with the event and conversation ids
// when they are known.
func StartSpan(ctx context.Context, name, eventID, conversationID string) (context.Context, trace.Span) {
	attrs := make([]attribute.KeyValue, 0, 2)
	if eventID != "" {
		attrs = append(attrs, attribute.String("chat.event_id", eventID))
	}
	if conversationID != "" {
		attrs = append(attrs, attribute.String("chat.conversation_id", conversationID))
	}
	return GetTracer(TracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}
