package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLogFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetLogFields(ctx))

	ctx = WithEventID(ctx, "3EB0A1")
	ctx = WithConversationID(ctx, "123@g.us")
	ctx = WithTraceID(ctx, "trace-1")

	assert.Equal(t, []interface{}{
		"trace_id", "trace-1",
		"event_id", "3EB0A1",
		"conversation_id", "123@g.us",
	}, GetLogFields(ctx))
}

func TestContextKeysDoNotCollideWithPlainStrings(t *testing.T) {
	ctx := context.WithValue(context.Background(), "event_id", "plain") //nolint:staticcheck
	assert.Equal(t, "", GetEventID(ctx))
}

func TestGetLogFields_RequestID(t *testing.T) {
	ctx := WithRequestID(WithServiceName(context.Background(), "chatgate"), "req-1")
	assert.Equal(t, []interface{}{
		"service_name", "chatgate",
		"request_id", "req-1",
	}, GetLogFields(ctx))
}

func TestEarlyLog(t *testing.T) {
	var buf bytes.Buffer
	log := NewEarlyLogTo(&buf)

	log.Error("Failed to load config: %v", "no such file")
	log.Warn("plain")

	assert.Equal(t, "chatgate ERROR: Failed to load config: no such file\nchatgate WARN: plain\n", buf.String())
}
