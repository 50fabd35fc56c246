package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus статус заказа в рамках сверки платежей
type OrderStatus string

const (
	StatusPaid      OrderStatus = "paid"
	StatusCancelled OrderStatus = "cancelled"
)

// Order представляет доменную модель заказа
// Это бизнес-сущность, не привязанная к HTTP или БД
type Order struct {
	ID               string
	PaymentReference string          // уникален: не больше одного заказа на платёж
	TotalAmount      decimal.Decimal // в основных единицах валюты
	Status           OrderStatus
	IsPaid           bool
	Items            []OrderLineItem
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OrderLineItem строка заказа
type OrderLineItem struct {
	OrderID    string
	CocktailID string
	SizeID     string
	Quantity   int
	UnitPrice  decimal.Decimal
	LineTotal  decimal.Decimal
}

// PaymentStateUpdate минимальное обновление заказа: nil поле не трогается
type PaymentStateUpdate struct {
	Status *OrderStatus
	IsPaid *bool
}

// IsEmpty true, если обновлять нечего
func (u PaymentStateUpdate) IsEmpty() bool {
	return u.Status == nil && u.IsPaid == nil
}

// InventoryRecord остаток по паре (коктейль, размер)
type InventoryRecord struct {
	CocktailID    string
	SizeID        string
	StockQuantity int
	Available     bool
	UpdatedAt     time.Time
}

// DiagnosticEvent запись в журнал аномалий (append-only)
type DiagnosticEvent struct {
	Kind             string
	PaymentReference string
	Payload          map[string]any
	CreatedAt        time.Time
}

// Статусы outbox событий
const (
	OutboxStatusPending = "pending"
	OutboxStatusSent    = "sent"
	OutboxStatusFailed  = "failed"
)

// OutboxEvent событие для публикации в Kafka, пишется в одной транзакции с заказом
type OutboxEvent struct {
	EventID     string
	EventType   string
	Topic       string
	AggregateID string // order_id, используется как ключ сообщения
	Payload     []byte
	Status      string
	Attempts    int
	LastError   string
	CreatedAt   time.Time
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=OrderRepository --dir=. --output=./mocks --outpkg=mocks

// OrderRepository определяет интерфейс для работы с хранилищем заказов
// Service слой зависит от этого интерфейса, а не от конкретной реализации
type OrderRepository interface {
	// GetByID получает заказ вместе со строками.
	// Возвращает ErrNotFound, если заказ не найден
	GetByID(ctx context.Context, id string) (Order, error)

	// GetByPaymentReference получает заказ по ссылке на платёж.
	// Возвращает ErrNotFound, если заказ не найден
	GetByPaymentReference(ctx context.Context, paymentReference string) (Order, error)

	// CreateWithItems атомарно сохраняет заказ, его строки и outbox событие.
	// Возвращает ErrAlreadyExists при нарушении уникальности payment_reference
	CreateWithItems(ctx context.Context, order Order, event OutboxEvent) error

	// UpdatePaymentState применяет минимальное обновление и пишет outbox событие в той же транзакции.
	// Возвращает ErrNotFound, если заказа нет
	UpdatePaymentState(ctx context.Context, orderID string, upd PaymentStateUpdate, event OutboxEvent) error
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=OutboxRepository --dir=. --output=./mocks --outpkg=mocks

// OutboxRepository используется OutboxDispatcher
type OutboxRepository interface {
	GetPendingOutboxEvents(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkOutboxEventSent(ctx context.Context, eventID string) error
	MarkOutboxEventFailed(ctx context.Context, eventID string, errMsg string) error
	ResetOutboxEventPending(ctx context.Context, eventID string) error
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=InventoryRepository --dir=. --output=./mocks --outpkg=mocks

// InventoryRepository хранилище остатков. Записи не создаются и не удаляются этим сервисом
type InventoryRepository interface {
	// GetStock возвращает ErrNotFound, если записи нет
	GetStock(ctx context.Context, cocktailID, sizeID string) (InventoryRecord, error)
	// SetStock перезаписывает stock_quantity и available существующей записи.
	// Возвращает ErrNotFound, если записи нет
	SetStock(ctx context.Context, rec InventoryRecord) error
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=CatalogRepository --dir=. --output=./mocks --outpkg=mocks

// CatalogRepository read-only доступ к текущим ценам каталога
type CatalogRepository interface {
	// GetUnitPrice возвращает ErrNotFound, если размера нет в каталоге
	GetUnitPrice(ctx context.Context, cocktailID, sizeID string) (decimal.Decimal, error)
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=DiagnosticRepository --dir=. --output=./mocks --outpkg=mocks

// DiagnosticRepository журнал аномалий, только запись
type DiagnosticRepository interface {
	Record(ctx context.Context, event DiagnosticEvent) error
}

var (
	// ErrNotFound возвращается, когда запись не найдена в хранилище
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists возвращается при нарушении уникальности (заказ для платежа уже есть)
	ErrAlreadyExists = errors.New("already exists")
)
