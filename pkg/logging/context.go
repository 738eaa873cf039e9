package logging

import (
	"context"
)

type contextKey string

const (
	TraceIDKey        = "trace_id"
	EventIDKey        = "event_id"
	ConversationIDKey = "conversation_id"
	ServiceNameKey    = "service_name"
	RequestIDKey      = "request_id"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, contextKey(TraceIDKey), traceID)
}

func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, contextKey(EventIDKey), eventID)
}

func WithConversationID(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, contextKey(ConversationIDKey), conversationID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, contextKey(ServiceNameKey), serviceName)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey(RequestIDKey), requestID)
}

func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

func GetEventID(ctx context.Context) string {
	return stringValue(ctx, EventIDKey)
}

func GetConversationID(ctx context.Context) string {
	return stringValue(ctx, ConversationIDKey)
}

func GetServiceName(ctx context.Context) string {
	return stringValue(ctx, ServiceNameKey)
}

func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

func stringValue(ctx context.Context, key string) string {
	if v, ok := ctx.Value(contextKey(key)).(string); ok {
		return v
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 8)

	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, TraceIDKey, traceID)
	}

	if eventID := GetEventID(ctx); eventID != "" {
		fields = append(fields, EventIDKey, eventID)
	}

	if conversationID := GetConversationID(ctx); conversationID != "" {
		fields = append(fields, ConversationIDKey, conversationID)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, ServiceNameKey, serviceName)
	}

	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, RequestIDKey, requestID)
	}

	return fields
}
