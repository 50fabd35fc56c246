package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProcessedKey(t *testing.T) {
	require.Equal(t, "fulfillment:processed_event:evt_1", processedKey("evt_1"))
}

func TestProcessedEventsStore_Unavailable(t *testing.T) {
	// порт 1 закрыт, ошибка должна вернуться, а не зависнуть
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	store := NewProcessedEventsStore(client, zap.NewNop())
	ctx := context.Background()

	_, err := store.IsProcessed(ctx, "evt_1")
	require.Error(t, err)

	err = store.MarkProcessed(ctx, "evt_1", time.Minute)
	require.Error(t, err)
}
