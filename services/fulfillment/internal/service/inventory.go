package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shestoi/cocktail-delivery/platform/observability"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/metrics"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
)

// InventoryAdjuster списывает остатки по строкам заказа.
// Каждая строка обрабатывается независимо: сбой одной не мешает остальным и не откатывает заказ
type InventoryAdjuster struct {
	inventory     repository.InventoryRepository
	cache         StockCache
	diagnostics   *Diagnostics
	metrics       *metrics.Metrics
	logger        *zap.Logger
	clampNegative bool
}

// NewInventoryAdjuster создаёт InventoryAdjuster.
// cache может быть nil. clampNegative ограничивает остаток снизу нулём
func NewInventoryAdjuster(
	inventory repository.InventoryRepository,
	cache StockCache,
	diagnostics *Diagnostics,
	m *metrics.Metrics,
	logger *zap.Logger,
	clampNegative bool,
) *InventoryAdjuster {
	return &InventoryAdjuster{
		inventory:     inventory,
		cache:         cache,
		diagnostics:   diagnostics,
		metrics:       m,
		logger:        logger,
		clampNegative: clampNegative,
	}
}

// AdjustResult итог списания
type AdjustResult struct {
	Adjusted int
	Failed   int
}

// Adjust списывает quantity по каждой строке. Ошибки не возвращаются, только пишутся в журнал
func (a *InventoryAdjuster) Adjust(ctx context.Context, paymentReference string, items []repository.OrderLineItem) AdjustResult {
	ctx, span := observability.StartSpan(ctx, tracerName, "InventoryAdjuster.Adjust")
	defer span.End()

	var res AdjustResult
	for _, item := range items {
		if a.adjustItem(ctx, paymentReference, item) {
			res.Adjusted++
		} else {
			res.Failed++
		}
	}
	span.SetAttributes(
		attribute.Int("inventory.adjusted", res.Adjusted),
		attribute.Int("inventory.failed", res.Failed),
	)
	return res
}

func (a *InventoryAdjuster) adjustItem(ctx context.Context, paymentReference string, item repository.OrderLineItem) bool {
	logger := observability.L(ctx, a.logger).With(
		zap.String("payment_reference", paymentReference),
		zap.String("cocktail_id", item.CocktailID),
		zap.String("size_id", item.SizeID),
		zap.Int("quantity", item.Quantity),
	)

	rec, err := a.inventory.GetStock(ctx, item.CocktailID, item.SizeID)
	if err != nil {
		logger.Warn("failed to read stock, skipping item", zap.Error(err))
		a.metrics.InventoryFailures.WithLabelValues("read").Inc()
		a.diagnostics.Record(ctx, DiagInventoryReadFailed, paymentReference, errPayload(err,
			"cocktail_id", item.CocktailID,
			"size_id", item.SizeID,
			"quantity", item.Quantity,
		))
		return false
	}

	newStock := rec.StockQuantity - item.Quantity
	if newStock < 0 && a.clampNegative {
		logger.Warn("stock oversold, clamping at zero",
			zap.Int("current_stock", rec.StockQuantity),
			zap.Int("computed_stock", newStock),
		)
		a.diagnostics.Record(ctx, DiagInventoryOversold, paymentReference, errPayload(nil,
			"cocktail_id", item.CocktailID,
			"size_id", item.SizeID,
			"quantity", item.Quantity,
			"current_stock", rec.StockQuantity,
			"computed_stock", newStock,
		))
		newStock = 0
	}

	rec.StockQuantity = newStock
	rec.Available = newStock > 0

	err = a.inventory.SetStock(ctx, rec)
	if a.cache != nil {
		// после неудачной записи состояние неизвестно, поэтому сбрасываем в обоих случаях
		a.cache.Invalidate(item.CocktailID, item.SizeID)
	}
	if err != nil {
		logger.Warn("failed to write stock", zap.Error(err), zap.Int("new_stock", newStock))
		a.metrics.InventoryFailures.WithLabelValues("write").Inc()
		a.diagnostics.Record(ctx, DiagInventoryWriteFailed, paymentReference, errPayload(err,
			"cocktail_id", item.CocktailID,
			"size_id", item.SizeID,
			"quantity", item.Quantity,
			"new_stock", newStock,
		))
		return false
	}

	logger.Debug("stock adjusted", zap.Int("new_stock", newStock), zap.Bool("available", rec.Available))
	return true
}
