package dedup

import (
	"context"
	"time"

	"chatgate/internal/config"
	"chatgate/pkg/circuitbreaker"
)

type CircuitBreakerRepository struct {
	repo Repository
	cb   *circuitbreaker.Wrapper
}

func NewCircuitBreakerRepository(repo Repository, cfg config.CircuitBreakerConfig) *CircuitBreakerRepository {
	return &CircuitBreakerRepository{
		repo: repo,
		cb:   circuitbreaker.FromConfig("redis-dedup", cfg),
	}
}

func (r *CircuitBreakerRepository) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	return circuitbreaker.Execute(ctx, r.cb, func() (bool, error) {
		return r.repo.SetNX(ctx, key, value, ttl)
	})
}

func (r *CircuitBreakerRepository) Del(ctx context.Context, key string) error {
	_, err := circuitbreaker.Execute(ctx, r.cb, func() (struct{}, error) {
		return struct{}{}, r.repo.Del(ctx, key)
	})
	return err
}

func (r *CircuitBreakerRepository) GetCacheSize(ctx context.Context, prefix string) (int, error) {
	return circuitbreaker.Execute(ctx, r.cb, func() (int, error) {
		return r.repo.GetCacheSize(ctx, prefix)
	})
}

func (r *CircuitBreakerRepository) StateString() string {
	return r.cb.StateString()
}

func (r *CircuitBreakerRepository) IsOpen() bool {
	return r.cb.IsOpen()
}
