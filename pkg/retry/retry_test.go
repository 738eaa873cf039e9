package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"chatgate/internal/config"
	apperrors "chatgate/pkg/errors"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnFatal(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		return NewFatalError(errors.New("bad request"))
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_CodedErrorsFollowTheirClassification(t *testing.T) {
	calls := 0
	_ = Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		return apperrors.ErrSendFailure
	})
	assert.Equal(t, 3, calls)

	calls = 0
	_ = Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		return apperrors.ErrValidation
	})
	assert.Equal(t, 1, calls)
}

func TestRetryWithCallback_ReportsAttempts(t *testing.T) {
	var attempts []int
	err := RetryWithCallback(context.Background(), fastPolicy(3), func() error {
		return errors.New("down")
	}, func(attempt int, err error, next time.Duration) {
		attempts = append(attempts, attempt)
		assert.LessOrEqual(t, next, 2*time.Millisecond)
	})
	assert.Error(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestPolicyFromConfig(t *testing.T) {
	p := PolicyFromConfig(config.RetryConfig{MaxAttempts: 7, Multiplier: 1.5})
	assert.Equal(t, 7, p.MaxAttempts)
	assert.Equal(t, 1.5, p.Multiplier)
	assert.Equal(t, time.Second, p.InitialInterval)
}

func TestReconnectBackoff_DoesNotStop(t *testing.T) {
	b := ReconnectBackoff(Policy{InitialInterval: time.Millisecond, MaxInterval: 4 * time.Millisecond, Multiplier: 2})
	for i := 0; i < 50; i++ {
		d := b.NextBackOff()
		assert.NotEqual(t, time.Duration(-1), d)
		assert.LessOrEqual(t, d, 6*time.Millisecond)
	}
}
