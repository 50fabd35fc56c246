package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
)

// Типы доменных событий заказа
const (
	EventTypeOrderPaid      = "order.paid"
	EventTypeOrderCancelled = "order.cancelled"
	orderEventVersion       = 1
)

type orderEventItem struct {
	CocktailID string          `json:"cocktail_id"`
	SizeID     string          `json:"size_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	LineTotal  decimal.Decimal `json:"line_total"`
}

// orderEvent payload сообщения в топике событий заказов
type orderEvent struct {
	EventID          string           `json:"event_id"`
	EventType        string           `json:"event_type"`
	EventVersion     int              `json:"event_version"`
	OccurredAt       string           `json:"occurred_at"`
	OrderID          string           `json:"order_id"`
	PaymentReference string           `json:"payment_reference"`
	Status           string           `json:"status"`
	TotalAmount      *decimal.Decimal `json:"total_amount,omitempty"`
	Items            []orderEventItem `json:"items,omitempty"`
	Reason           string           `json:"reason,omitempty"`
}

// newOrderPaidEvent строит outbox событие order.paid для только что созданного заказа
func newOrderPaidEvent(topic string, order repository.Order, now time.Time) (repository.OutboxEvent, error) {
	items := make([]orderEventItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, orderEventItem{
			CocktailID: it.CocktailID,
			SizeID:     it.SizeID,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			LineTotal:  it.LineTotal,
		})
	}
	total := order.TotalAmount
	return newOutboxEvent(topic, orderEvent{
		EventType:        EventTypeOrderPaid,
		OrderID:          order.ID,
		PaymentReference: order.PaymentReference,
		Status:           string(order.Status),
		TotalAmount:      &total,
		Items:            items,
	}, now)
}

// newOrderCancelledEvent строит outbox событие order.cancelled
func newOrderCancelledEvent(topic string, order repository.Order, reason string, now time.Time) (repository.OutboxEvent, error) {
	return newOutboxEvent(topic, orderEvent{
		EventType:        EventTypeOrderCancelled,
		OrderID:          order.ID,
		PaymentReference: order.PaymentReference,
		Status:           string(repository.StatusCancelled),
		Reason:           reason,
	}, now)
}

func newOutboxEvent(topic string, ev orderEvent, now time.Time) (repository.OutboxEvent, error) {
	ev.EventID = uuid.NewString()
	ev.EventVersion = orderEventVersion
	ev.OccurredAt = now.UTC().Format(time.RFC3339)

	payload, err := json.Marshal(ev)
	if err != nil {
		return repository.OutboxEvent{}, fmt.Errorf("marshal %s event: %w", ev.EventType, err)
	}
	return repository.OutboxEvent{
		EventID:     ev.EventID,
		EventType:   ev.EventType,
		Topic:       topic,
		AggregateID: ev.OrderID,
		Payload:     payload,
		Status:      repository.OutboxStatusPending,
		CreatedAt:   now,
	}, nil
}
