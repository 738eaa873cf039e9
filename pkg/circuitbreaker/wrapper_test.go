package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgate/internal/config"
)

func TestFromConfig_DisabledIsNil(t *testing.T) {
	assert.Nil(t, FromConfig("x", config.CircuitBreakerConfig{Enabled: false}))
}

func TestExecute_NilWrapperPassesThrough(t *testing.T) {
	got, err := Execute(context.Background(), nil, func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)

	var w *Wrapper
	assert.Equal(t, "disabled", w.StateString())
	assert.False(t, w.IsOpen())
}

func TestExecute_OpensAfterFailures(t *testing.T) {
	w := FromConfig("test-open", config.CircuitBreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	})
	require.NotNil(t, w)

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		_, err := Execute(context.Background(), w, func() (string, error) { return "", boom })
		require.Error(t, err)
	}

	assert.Equal(t, gobreaker.StateOpen, w.State())
	_, err := Execute(context.Background(), w, func() (string, error) { return "ok", nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestExecute_CancelledContext(t *testing.T) {
	w := NewWrapper(DefaultConfig("test-cancel"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := Execute(ctx, w, func() (bool, error) {
		called = true
		return true, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
