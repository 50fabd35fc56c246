package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
)

// Storage реализует все репозитории fulfillment в памяти.
// Используется для разработки (STORAGE_BACKEND=memory) и сценарных тестов
type Storage struct {
	mu          sync.RWMutex
	orders      map[string]repository.Order // id -> order
	byReference map[string]string           // payment_reference -> id
	inventory   map[string]repository.InventoryRecord
	prices      map[string]decimal.Decimal
	diagnostics []repository.DiagnosticEvent
	outbox      []repository.OutboxEvent
}

// NewStorage создаёт пустое in-memory хранилище
func NewStorage() *Storage {
	return &Storage{
		orders:      make(map[string]repository.Order),
		byReference: make(map[string]string),
		inventory:   make(map[string]repository.InventoryRecord),
		prices:      make(map[string]decimal.Decimal),
	}
}

func stockKey(cocktailID, sizeID string) string {
	return cocktailID + "/" + sizeID
}

// GetByID получает заказ по ID
func (s *Storage) GetByID(ctx context.Context, id string) (repository.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return repository.Order{}, repository.ErrNotFound
	}
	return cloneOrder(order), nil
}

// GetByPaymentReference получает заказ по ссылке на платёж
func (s *Storage) GetByPaymentReference(ctx context.Context, paymentReference string) (repository.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byReference[paymentReference]
	if !ok {
		return repository.Order{}, repository.ErrNotFound
	}
	return cloneOrder(s.orders[id]), nil
}

// CreateWithItems сохраняет заказ и outbox событие под одной блокировкой.
// Уникальность payment_reference проверяется так же, как unique index в Postgres
func (s *Storage) CreateWithItems(ctx context.Context, order repository.Order, event repository.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byReference[order.PaymentReference]; exists {
		return repository.ErrAlreadyExists
	}
	if _, exists := s.orders[order.ID]; exists {
		return repository.ErrAlreadyExists
	}

	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt
	order = cloneOrder(order)
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}

	s.orders[order.ID] = order
	s.byReference[order.PaymentReference] = order.ID
	s.appendOutboxLocked(event, now)
	return nil
}

// UpdatePaymentState применяет минимальное обновление заказа
func (s *Storage) UpdatePaymentState(ctx context.Context, orderID string, upd repository.PaymentStateUpdate, event repository.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	if upd.Status != nil {
		order.Status = *upd.Status
	}
	if upd.IsPaid != nil {
		order.IsPaid = *upd.IsPaid
	}
	now := time.Now().UTC()
	order.UpdatedAt = now
	s.orders[orderID] = order
	s.appendOutboxLocked(event, now)
	return nil
}

func (s *Storage) appendOutboxLocked(event repository.OutboxEvent, now time.Time) {
	if event.EventID == "" {
		return
	}
	event.Status = repository.OutboxStatusPending
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	s.outbox = append(s.outbox, event)
}

// GetPendingOutboxEvents возвращает pending события в порядке создания
func (s *Storage) GetPendingOutboxEvents(ctx context.Context, limit int) ([]repository.OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]repository.OutboxEvent, 0)
	for _, e := range s.outbox {
		if e.Status != repository.OutboxStatusPending {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkOutboxEventSent помечает событие отправленным
func (s *Storage) MarkOutboxEventSent(ctx context.Context, eventID string) error {
	return s.updateOutbox(eventID, func(e *repository.OutboxEvent) {
		e.Status = repository.OutboxStatusSent
	})
}

// MarkOutboxEventFailed помечает событие неотправленным после всех попыток
func (s *Storage) MarkOutboxEventFailed(ctx context.Context, eventID string, errMsg string) error {
	return s.updateOutbox(eventID, func(e *repository.OutboxEvent) {
		e.Status = repository.OutboxStatusFailed
		e.Attempts++
		e.LastError = errMsg
	})
}

// ResetOutboxEventPending возвращает событие в очередь
func (s *Storage) ResetOutboxEventPending(ctx context.Context, eventID string) error {
	return s.updateOutbox(eventID, func(e *repository.OutboxEvent) {
		e.Status = repository.OutboxStatusPending
	})
}

func (s *Storage) updateOutbox(eventID string, fn func(e *repository.OutboxEvent)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outbox {
		if s.outbox[i].EventID == eventID {
			fn(&s.outbox[i])
			return nil
		}
	}
	return repository.ErrNotFound
}

// GetStock получает остаток по паре (коктейль, размер)
func (s *Storage) GetStock(ctx context.Context, cocktailID, sizeID string) (repository.InventoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.inventory[stockKey(cocktailID, sizeID)]
	if !ok {
		return repository.InventoryRecord{}, repository.ErrNotFound
	}
	return rec, nil
}

// SetStock перезаписывает остаток существующей записи
func (s *Storage) SetStock(ctx context.Context, rec repository.InventoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stockKey(rec.CocktailID, rec.SizeID)
	if _, ok := s.inventory[key]; !ok {
		return repository.ErrNotFound
	}
	rec.UpdatedAt = time.Now().UTC()
	s.inventory[key] = rec
	return nil
}

// GetUnitPrice возвращает цену из каталога
func (s *Storage) GetUnitPrice(ctx context.Context, cocktailID, sizeID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	price, ok := s.prices[stockKey(cocktailID, sizeID)]
	if !ok {
		return decimal.Zero, repository.ErrNotFound
	}
	return price, nil
}

// Record добавляет запись в журнал аномалий
func (s *Storage) Record(ctx context.Context, event repository.DiagnosticEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	s.diagnostics = append(s.diagnostics, event)
	return nil
}

// SeedInventory заводит запись об остатке (каталог и склад внешние для сервиса)
func (s *Storage) SeedInventory(cocktailID, sizeID string, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inventory[stockKey(cocktailID, sizeID)] = repository.InventoryRecord{
		CocktailID:    cocktailID,
		SizeID:        sizeID,
		StockQuantity: stock,
		Available:     stock > 0,
		UpdatedAt:     time.Now().UTC(),
	}
}

// SeedPrice заводит цену в каталоге
func (s *Storage) SeedPrice(cocktailID, sizeID string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices[stockKey(cocktailID, sizeID)] = price
}

// Diagnostics возвращает копию журнала аномалий
func (s *Storage) Diagnostics() []repository.DiagnosticEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]repository.DiagnosticEvent, len(s.diagnostics))
	copy(out, s.diagnostics)
	return out
}

// Outbox возвращает копию outbox
func (s *Storage) Outbox() []repository.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]repository.OutboxEvent, len(s.outbox))
	copy(out, s.outbox)
	return out
}

// Orders возвращает все заказы, отсортированные по времени создания
func (s *Storage) Orders() []repository.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]repository.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func cloneOrder(o repository.Order) repository.Order {
	items := make([]repository.OrderLineItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}
