package dedup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"chatgate/internal/config"
	"chatgate/internal/logger"
)

type fakeRepository struct {
	mu      sync.Mutex
	keys    map[string]time.Duration
	setErr  error
	delErr  error
	deleted []string
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{keys: make(map[string]time.Duration)}
}

func (r *fakeRepository) SetNX(_ context.Context, key string, _ interface{}, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setErr != nil {
		return false, r.setErr
	}
	if _, ok := r.keys[key]; ok {
		return false, nil
	}
	r.keys[key] = ttl
	return true, nil
}

func (r *fakeRepository) Del(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, key)
	if r.delErr != nil {
		return r.delErr
	}
	delete(r.keys, key)
	return nil
}

func (r *fakeRepository) GetCacheSize(_ context.Context, _ string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys), nil
}

func newStore(repo Repository, onErr string) *StoreCache {
	return NewStoreCache(repo, config.DedupConfig{
		Window:        420 * time.Second,
		OnStoreError:  onErr,
		SweepInterval: time.Hour,
	}, logger.NopLogger())
}

func TestStoreCache_SetsKeyWithWindowTTL(t *testing.T) {
	repo := newFakeRepository()
	s := newStore(repo, "allow")
	defer s.Stop()

	ctx := context.Background()
	assert.True(t, s.ShouldProcess(ctx, "E1"))
	assert.False(t, s.ShouldProcess(ctx, "E1"))
	assert.Equal(t, 420*time.Second, repo.keys["chatgate:dedup:E1"])
}

func TestStoreCache_Release(t *testing.T) {
	repo := newFakeRepository()
	s := newStore(repo, "allow")
	defer s.Stop()

	ctx := context.Background()
	assert.True(t, s.ShouldProcess(ctx, "E1"))
	s.Release(ctx, "E1")
	assert.Equal(t, []string{"chatgate:dedup:E1"}, repo.deleted)
	assert.True(t, s.ShouldProcess(ctx, "E1"))

	repo.delErr = errors.New("down")
	s.Release(ctx, "E1")
}

func TestStoreCache_StoreErrorFallback(t *testing.T) {
	tests := []struct {
		name   string
		onErr  string
		expect bool
	}{
		{name: "allow", onErr: "allow", expect: true},
		{name: "deny", onErr: "deny", expect: false},
		{name: "default allows", onErr: "", expect: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepository()
			repo.setErr = errors.New("connection refused")
			s := newStore(repo, tt.onErr)
			defer s.Stop()

			assert.Equal(t, tt.expect, s.ShouldProcess(context.Background(), "E1"))
		})
	}
}

func TestCircuitBreakerRepository_DisabledPassesThrough(t *testing.T) {
	repo := newFakeRepository()
	cb := NewCircuitBreakerRepository(repo, config.CircuitBreakerConfig{Enabled: false})

	ok, err := cb.SetNX(context.Background(), "k", 1, time.Minute)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "disabled", cb.StateString())
	assert.False(t, cb.IsOpen())

	size, err := cb.GetCacheSize(context.Background(), "")
	assert.NoError(t, err)
	assert.Equal(t, 1, size)
	assert.NoError(t, cb.Del(context.Background(), "k"))
}

func TestCircuitBreakerRepository_OpensOnFailures(t *testing.T) {
	repo := newFakeRepository()
	repo.setErr = errors.New("timeout")
	cb := NewCircuitBreakerRepository(repo, config.CircuitBreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  3,
	})

	for i := 0; i < 3; i++ {
		_, err := cb.SetNX(context.Background(), "k", 1, time.Minute)
		assert.Error(t, err)
	}
	assert.True(t, cb.IsOpen())
	assert.Equal(t, "open", cb.StateString())
}
