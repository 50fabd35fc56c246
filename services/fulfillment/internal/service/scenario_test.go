package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/cache"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/metrics"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository/memory"
)

// verifierFunc подменяет проверку подписи: тело уже является событием
type verifierFunc func(payload []byte, header string) (PaymentEvent, error)

func (f verifierFunc) Verify(payload []byte, header string) (PaymentEvent, error) {
	return f(payload, header)
}

type scenario struct {
	storage  *memory.Storage
	receiver *PaymentEventReceiver
	query    *OrderQueryService
	next     PaymentEvent
}

// newScenario собирает весь конвейер на in-memory хранилище, без быстрой дедупликации,
// чтобы проверять именно идемпотентность хранилища заказов
func newScenario(t *testing.T) *scenario {
	t.Helper()
	s := &scenario{storage: memory.NewStorage()}
	m := metrics.NewNop()
	logger := zap.NewNop()
	stockCache := cache.NewStockCache(16, time.Minute)

	diag := NewDiagnostics(s.storage, m, logger)
	adjuster := NewInventoryAdjuster(s.storage, stockCache, diag, m, logger, true)
	materializer := NewOrderMaterializer(s.storage, s.storage, adjuster, diag, m, logger, testTopic)
	reconciler := NewFailureReconciler(s.storage, diag, m, logger, testTopic)
	verifier := verifierFunc(func([]byte, string) (PaymentEvent, error) { return s.next, nil })

	s.receiver = NewPaymentEventReceiver(verifier, materializer, reconciler, nil, time.Hour, m, logger)
	s.query = NewOrderQueryService(s.storage, s.storage, stockCache, m, logger)
	return s
}

func (s *scenario) deliver(t *testing.T, event PaymentEvent) ReceiveResult {
	t.Helper()
	s.next = event
	res, err := s.receiver.Receive(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)
	return res
}

func diagKinds(events []repository.DiagnosticEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func TestScenario_SucceededEventEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newScenario(t)
	s.storage.SeedInventory("c1", "s1", 10)
	s.storage.SeedPrice("c1", "s1", decimal.NewFromInt(5))

	event := PaymentEvent{
		ID:               "evt_1",
		Kind:             EventSucceeded,
		PaymentReference: "pi_abc",
		AmountReceived:   1000,
		Metadata:         map[string]string{"items": `[{"cocktail_id":"c1","size_id":"s1","quantity":2,"unit_price":5}]`},
	}

	// прогреваем кэш, чтобы проверить его сброс после списания
	_, err := s.query.GetStock(ctx, "c1", "s1")
	require.NoError(t, err)

	s.deliver(t, event)

	order, err := s.query.GetOrderByPaymentReference(ctx, "pi_abc")
	require.NoError(t, err)
	require.Equal(t, "10.00", order.TotalAmount.StringFixed(2))
	require.Equal(t, repository.StatusPaid, order.Status)
	require.True(t, order.IsPaid)
	require.Len(t, order.Items, 1)
	require.Equal(t, 2, order.Items[0].Quantity)
	require.True(t, order.Items[0].UnitPrice.Equal(decimal.NewFromInt(5)))
	require.True(t, order.Items[0].LineTotal.Equal(decimal.NewFromInt(10)))

	stock, err := s.query.GetStock(ctx, "c1", "s1")
	require.NoError(t, err)
	require.Equal(t, 8, stock.StockQuantity)
	require.True(t, stock.Available)

	outbox := s.storage.Outbox()
	require.Len(t, outbox, 1)
	require.Equal(t, EventTypeOrderPaid, outbox[0].EventType)
	require.Empty(t, s.storage.Diagnostics())

	// повторная доставка ничего не меняет
	s.deliver(t, event)

	require.Len(t, s.storage.Orders(), 1)
	require.Len(t, s.storage.Outbox(), 1)
	stock, err = s.query.GetStock(ctx, "c1", "s1")
	require.NoError(t, err)
	require.Equal(t, 8, stock.StockQuantity)
}

func TestScenario_MissingSizeCreatesNoOrder(t *testing.T) {
	s := newScenario(t)
	s.storage.SeedInventory("c1", "s1", 10)

	s.deliver(t, PaymentEvent{
		ID:               "evt_2",
		Kind:             EventSucceeded,
		PaymentReference: "pi_nosize",
		AmountReceived:   1000,
		Metadata:         map[string]string{"items": `[{"cocktail_id":"c1","quantity":2,"unit_price":5}]`},
	})

	require.Empty(t, s.storage.Orders())
	require.Equal(t, []string{DiagOrderNoItems}, diagKinds(s.storage.Diagnostics()))

	rec, err := s.storage.GetStock(context.Background(), "c1", "s1")
	require.NoError(t, err)
	require.Equal(t, 10, rec.StockQuantity)
}

func TestScenario_PaidGuard(t *testing.T) {
	ctx := context.Background()
	s := newScenario(t)
	s.storage.SeedInventory("c1", "s1", 10)

	s.deliver(t, PaymentEvent{
		ID:               "evt_ok",
		Kind:             EventSucceeded,
		PaymentReference: "pr_1",
		AmountReceived:   500,
		Metadata:         map[string]string{"items": `[{"cocktail_id":"c1","size_id":"s1","quantity":1,"unit_price":5}]`},
	})
	// опоздавшее событие о неудаче
	s.deliver(t, PaymentEvent{ID: "evt_late", Kind: EventFailed, PaymentReference: "pr_1", Amount: 500})

	order, err := s.query.GetOrderByPaymentReference(ctx, "pr_1")
	require.NoError(t, err)
	require.Equal(t, repository.StatusPaid, order.Status)
	require.True(t, order.IsPaid)
	require.Equal(t, []string{DiagOrderAlreadyPaid}, diagKinds(s.storage.Diagnostics()))
	require.Len(t, s.storage.Outbox(), 1)
}

func TestScenario_CancellationIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newScenario(t)

	// заказ создан витриной до оплаты
	require.NoError(t, s.storage.CreateWithItems(ctx, repository.Order{
		ID:               "order-unpaid",
		PaymentReference: "pi_unpaid",
		TotalAmount:      decimal.NewFromInt(12),
		Status:           repository.StatusPaid,
		IsPaid:           false,
	}, repository.OutboxEvent{}))

	failed := PaymentEvent{ID: "evt_f", Kind: EventFailed, PaymentReference: "pi_unpaid", FailureReason: "card_declined"}
	s.deliver(t, failed)

	order, err := s.query.GetOrder(ctx, "order-unpaid")
	require.NoError(t, err)
	require.Equal(t, repository.StatusCancelled, order.Status)
	require.False(t, order.IsPaid)
	require.Len(t, s.storage.Outbox(), 1)
	firstUpdate := order.UpdatedAt

	s.deliver(t, failed)

	order, err = s.query.GetOrder(ctx, "order-unpaid")
	require.NoError(t, err)
	require.Equal(t, firstUpdate, order.UpdatedAt, "second run must not write")
	require.Len(t, s.storage.Outbox(), 1)
}

func TestScenario_CanceledWithoutOrder(t *testing.T) {
	s := newScenario(t)

	s.deliver(t, PaymentEvent{ID: "evt_c", Kind: EventCanceled, PaymentReference: "pi_ghost", Amount: 700})

	require.Empty(t, s.storage.Orders())
	require.Empty(t, s.storage.Outbox())
	require.Equal(t, []string{DiagOrderMissing}, diagKinds(s.storage.Diagnostics()))
}

func TestScenario_OtherEventIsAcknowledged(t *testing.T) {
	s := newScenario(t)

	res := s.deliver(t, PaymentEvent{ID: "evt_o", Type: "charge.refunded", Kind: EventOther})

	require.Equal(t, EventOther, res.Kind)
	require.Empty(t, s.storage.Orders())
	require.Empty(t, s.storage.Diagnostics())
}
