package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "fulfillment:processed_event:"

// ProcessedEventsStore реализует service.ProcessedEventsStore поверх Redis.
// Ключ живёт ttl, после чего событие может пройти обработку повторно
type ProcessedEventsStore struct {
	client redis.Cmdable
	logger *zap.Logger
}

// NewProcessedEventsStore создаёт Redis store обработанных событий
func NewProcessedEventsStore(client redis.Cmdable, logger *zap.Logger) *ProcessedEventsStore {
	return &ProcessedEventsStore{
		client: client,
		logger: logger,
	}
}

func processedKey(eventID string) string {
	return keyPrefix + eventID
}

// MarkProcessed сохраняет eventID как обработанный (SET key 1 EX ttl)
func (s *ProcessedEventsStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, processedKey(eventID), 1, ttl).Err(); err != nil {
		s.logger.Error("failed to mark event processed in redis",
			zap.Error(err),
			zap.String("event_id", eventID),
		)
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

// IsProcessed проверяет наличие ключа (EXISTS)
func (s *ProcessedEventsStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, processedKey(eventID)).Result()
	if err != nil {
		s.logger.Error("failed to check processed event in redis",
			zap.Error(err),
			zap.String("event_id", eventID),
		)
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}
	return n > 0, nil
}
