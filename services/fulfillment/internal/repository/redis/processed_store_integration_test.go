//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func TestProcessedEventsStore_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(ctx))
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	store := NewProcessedEventsStore(client, zap.NewNop())

	processed, err := store.IsProcessed(ctx, "evt_1")
	require.NoError(t, err)
	require.False(t, processed)

	require.NoError(t, store.MarkProcessed(ctx, "evt_1", time.Minute))
	// повторная отметка не ошибка
	require.NoError(t, store.MarkProcessed(ctx, "evt_1", time.Minute))

	processed, err = store.IsProcessed(ctx, "evt_1")
	require.NoError(t, err)
	require.True(t, processed)

	ttl, err := client.TTL(ctx, processedKey("evt_1")).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))

	require.NoError(t, store.MarkProcessed(ctx, "evt_short", time.Second))
	require.Eventually(t, func() bool {
		ok, err := store.IsProcessed(ctx, "evt_short")
		return err == nil && !ok
	}, 5*time.Second, 100*time.Millisecond)
}
