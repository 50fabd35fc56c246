package service

import (
	"context"
	"sync"
	"time"
)

// MemoryProcessedEventsStore реализует ProcessedEventsStore используя in-memory map.
// Используется, когда REDIS_ADDR не задан. Между инстансами не разделяется
type MemoryProcessedEventsStore struct {
	mu     sync.Mutex
	events map[string]time.Time // eventID -> expiresAt
	now    func() time.Time
}

// NewMemoryProcessedEventsStore создаёт новый in-memory store
func NewMemoryProcessedEventsStore() *MemoryProcessedEventsStore {
	return &MemoryProcessedEventsStore{
		events: make(map[string]time.Time),
		now:    time.Now,
	}
}

// MarkProcessed сохраняет eventID как обработанный с указанным ttl
func (s *MemoryProcessedEventsStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Ленивая очистка протухших записей
	s.cleanupExpiredLocked()
	s.events[eventID] = s.now().Add(ttl)
	return nil
}

// IsProcessed проверяет, был ли eventID уже обработан
func (s *MemoryProcessedEventsStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, exists := s.events[eventID]
	if !exists {
		return false, nil
	}
	if !s.now().Before(expiresAt) {
		delete(s.events, eventID)
		return false, nil
	}
	return true, nil
}

// cleanupExpiredLocked удаляет протухшие записи (вызывается с уже захваченным lock)
func (s *MemoryProcessedEventsStore) cleanupExpiredLocked() {
	now := s.now()
	for eventID, expiresAt := range s.events {
		if !now.Before(expiresAt) {
			delete(s.events, eventID)
		}
	}
}
