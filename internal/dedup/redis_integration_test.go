//go:build integration

package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"chatgate/internal/config"
	"chatgate/internal/logger"
)

func TestStoreCache_Redis(t *testing.T) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	store := NewStoreCache(NewRepository(client), config.DedupConfig{
		Window:        2 * time.Second,
		OnStoreError:  "deny",
		SweepInterval: time.Hour,
	}, logger.NopLogger())
	defer store.Stop()

	assert.True(t, store.ShouldProcess(ctx, "E1"))
	assert.False(t, store.ShouldProcess(ctx, "E1"))

	ttl, err := client.TTL(ctx, "chatgate:dedup:E1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	store.Release(ctx, "E1")
	assert.True(t, store.ShouldProcess(ctx, "E1"))

	require.Eventually(t, func() bool {
		return store.ShouldProcess(ctx, "E1")
	}, 5*time.Second, 200*time.Millisecond)

	size, err := NewRepository(client).GetCacheSize(ctx, "chatgate:dedup:")
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}
