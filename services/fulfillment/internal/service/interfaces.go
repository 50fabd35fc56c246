package service

import (
	"context"
	"errors"
	"time"

	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
)

const tracerName = "fulfillment/service"

// EventKind вид платёжного события после разбора
type EventKind string

const (
	EventSucceeded EventKind = "succeeded"
	EventFailed    EventKind = "failed"
	EventCanceled  EventKind = "canceled"
	EventOther     EventKind = "other"
)

// PaymentEvent входящее уведомление платёжного провайдера после проверки подписи.
// Само событие не сохраняется, только логируется на путях ошибок
type PaymentEvent struct {
	ID               string // id события у провайдера, ключ быстрой дедупликации
	Type             string // исходный тип у провайдера, например payment_intent.succeeded
	Kind             EventKind
	PaymentReference string
	Amount           int64 // в минимальных единицах валюты
	AmountReceived   int64
	Metadata         map[string]string
	FailureReason    string
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=EventVerifier --dir=. --output=./mocks --outpkg=mocks

// EventVerifier проверяет подпись и декодирует тело webhook.
// Ошибки оборачивают ErrInvalidSignature или ErrMalformedEvent
type EventVerifier interface {
	Verify(payload []byte, signatureHeader string) (PaymentEvent, error)
}

// ProcessedEventsStore хранит id уже обработанных событий провайдера.
// Это только быстрый путь: авторитетная проверка идёт через хранилище заказов
//
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=ProcessedEventsStore --dir=. --output=./mocks --outpkg=mocks
type ProcessedEventsStore interface {
	// MarkProcessed сохраняет eventID как обработанный. Должен быть idempotent сам по себе.
	// ttl определяет время жизни записи (после истечения ttl событие может быть обработано повторно).
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error

	// IsProcessed возвращает true если eventID уже был обработан и ещё не истёк ttl.
	IsProcessed(ctx context.Context, eventID string) (bool, error)
}

// StockCache кэш остатков для горячих ключей (internal/cache)
type StockCache interface {
	Get(cocktailID, sizeID string) (repository.InventoryRecord, bool)
	Add(rec repository.InventoryRecord)
	Invalidate(cocktailID, sizeID string)
}

var (
	// ErrInvalidSignature подпись отсутствует или не совпадает
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedEvent тело события не удалось разобрать
	ErrMalformedEvent = errors.New("malformed payment event")
	// ErrOrderExistenceCheck не удалось проверить, есть ли уже заказ для платежа
	ErrOrderExistenceCheck = errors.New("order existence check failed")
	// ErrOrderCreate не удалось сохранить заказ или его строки
	ErrOrderCreate = errors.New("order create failed")
	// ErrHandlerPanic обработчик события упал с паникой
	ErrHandlerPanic = errors.New("payment event handler panicked")
)
