package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shestoi/cocktail-delivery/platform/observability"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/metrics"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
)

// OrderMaterializer превращает успешный платёж ровно в один заказ со строками
type OrderMaterializer struct {
	orders      repository.OrderRepository
	catalog     repository.CatalogRepository
	adjuster    *InventoryAdjuster
	diagnostics *Diagnostics
	metrics     *metrics.Metrics
	logger      *zap.Logger
	topic       string
	now         func() time.Time
}

// NewOrderMaterializer создаёт OrderMaterializer.
// catalog может быть nil, тогда сверка цен не выполняется.
// topic куда outbox dispatcher опубликует order.paid
func NewOrderMaterializer(
	orders repository.OrderRepository,
	catalog repository.CatalogRepository,
	adjuster *InventoryAdjuster,
	diagnostics *Diagnostics,
	m *metrics.Metrics,
	logger *zap.Logger,
	topic string,
) *OrderMaterializer {
	return &OrderMaterializer{
		orders:      orders,
		catalog:     catalog,
		adjuster:    adjuster,
		diagnostics: diagnostics,
		metrics:     m,
		logger:      logger,
		topic:       topic,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// MaterializeInput данные успешного платежа
type MaterializeInput struct {
	PaymentReference string
	AmountReceived   int64 // в минимальных единицах валюты
	Metadata         map[string]string
}

// MaterializeResult итог обработки
type MaterializeResult struct {
	OrderID   string
	Created   bool // false: заказ уже был или строк нет
	ItemCount int
	Inventory AdjustResult
}

// MinorToMajor переводит сумму из минимальных единиц (центы) в основные
func MinorToMajor(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount).Shift(-2)
}

// Materialize идемпотентно создаёт заказ для платежа.
// Повторная доставка того же события ничего не меняет.
func (m *OrderMaterializer) Materialize(ctx context.Context, in MaterializeInput) (res MaterializeResult, err error) {
	ctx, span := observability.StartSpan(ctx, tracerName, "OrderMaterializer.Materialize")
	span.SetAttributes(attribute.String("payment.reference", in.PaymentReference))
	defer func() { observability.EndSpan(span, err) }()

	logger := observability.L(ctx, m.logger).With(zap.String("payment_reference", in.PaymentReference))

	if in.PaymentReference == "" {
		return res, fmt.Errorf("%w: empty payment reference", ErrMalformedEvent)
	}

	// 1. Быстрая проверка идемпотентности. Авторитетна уникальность в хранилище (шаг 5)
	existing, err := m.orders.GetByPaymentReference(ctx, in.PaymentReference)
	switch {
	case err == nil:
		logger.Info("order already exists for payment, skipping", zap.String("order_id", existing.ID))
		return MaterializeResult{OrderID: existing.ID, ItemCount: len(existing.Items)}, nil
	case !errors.Is(err, repository.ErrNotFound):
		logger.Error("failed to check order existence", zap.Error(err))
		m.diagnostics.Record(ctx, DiagOrderLookupFailed, in.PaymentReference, errPayload(err,
			"amount_received", in.AmountReceived,
			"metadata", in.Metadata,
		))
		return res, fmt.Errorf("%w: %w", ErrOrderExistenceCheck, err)
	}

	// 2-4. Разбор строк: всё или ничего
	requests, parseErr := ParseLineItems(in.Metadata)
	if parseErr != nil {
		logger.Warn("no valid line items in payment metadata, order not created", zap.Error(parseErr))
		m.diagnostics.Record(ctx, DiagOrderNoItems, in.PaymentReference, errPayload(parseErr,
			"amount_received", in.AmountReceived,
			"metadata", in.Metadata,
		))
		return res, nil
	}

	// 5-6. Заказ, строки и order.paid в одной транзакции
	now := m.now()
	order := repository.Order{
		ID:               uuid.NewString(),
		PaymentReference: in.PaymentReference,
		TotalAmount:      MinorToMajor(in.AmountReceived),
		Status:           repository.StatusPaid,
		IsPaid:           true,
		Items:            make([]repository.OrderLineItem, 0, len(requests)),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for _, r := range requests {
		order.Items = append(order.Items, repository.OrderLineItem{
			OrderID:    order.ID,
			CocktailID: r.CocktailID,
			SizeID:     r.SizeID,
			Quantity:   r.Quantity,
			UnitPrice:  r.UnitPrice,
			LineTotal:  r.LineTotal,
		})
	}

	outbox, err := newOrderPaidEvent(m.topic, order, now)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrOrderCreate, err)
	}

	if err := m.orders.CreateWithItems(ctx, order, outbox); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			// параллельная доставка того же события успела раньше
			logger.Info("order created concurrently for payment, skipping")
			return res, nil
		}
		logger.Error("failed to create order", zap.Error(err))
		m.diagnostics.Record(ctx, DiagOrderCreateFailed, in.PaymentReference, errPayload(err,
			"amount_received", in.AmountReceived,
			"metadata", in.Metadata,
		))
		return res, fmt.Errorf("%w: %w", ErrOrderCreate, err)
	}

	m.metrics.OrdersMaterialized.Inc()
	logger.Info("order materialized",
		zap.String("order_id", order.ID),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)),
		zap.Int("items", len(order.Items)),
	)

	m.checkPrices(ctx, logger, order)

	// 7. Списание остатков, best-effort
	adjusted := m.adjuster.Adjust(ctx, in.PaymentReference, order.Items)

	return MaterializeResult{
		OrderID:   order.ID,
		Created:   true,
		ItemCount: len(order.Items),
		Inventory: adjusted,
	}, nil
}

// checkPrices сверяет цены из metadata с текущим каталогом. Заказ не блокирует
func (m *OrderMaterializer) checkPrices(ctx context.Context, logger *zap.Logger, order repository.Order) {
	if m.catalog == nil {
		return
	}
	for _, item := range order.Items {
		price, err := m.catalog.GetUnitPrice(ctx, item.CocktailID, item.SizeID)
		if err != nil {
			logger.Debug("catalog price unavailable",
				zap.Error(err),
				zap.String("cocktail_id", item.CocktailID),
				zap.String("size_id", item.SizeID),
			)
			continue
		}
		if price.Equal(item.UnitPrice) {
			continue
		}
		logger.Warn("line item price differs from catalog",
			zap.String("order_id", order.ID),
			zap.String("cocktail_id", item.CocktailID),
			zap.String("size_id", item.SizeID),
			zap.String("metadata_price", item.UnitPrice.String()),
			zap.String("catalog_price", price.String()),
		)
		m.diagnostics.Record(ctx, DiagPriceMismatch, order.PaymentReference, errPayload(nil,
			"order_id", order.ID,
			"cocktail_id", item.CocktailID,
			"size_id", item.SizeID,
			"metadata_price", item.UnitPrice.String(),
			"catalog_price", price.String(),
		))
	}
}
