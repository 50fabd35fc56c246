package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/metrics"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
)

// OrderQueryService отдаёт витрине состояние заказов и остатков
type OrderQueryService struct {
	orders    repository.OrderRepository
	inventory repository.InventoryRepository
	cache     StockCache
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewOrderQueryService создаёт OrderQueryService. cache может быть nil
func NewOrderQueryService(
	orders repository.OrderRepository,
	inventory repository.InventoryRepository,
	cache StockCache,
	m *metrics.Metrics,
	logger *zap.Logger,
) *OrderQueryService {
	return &OrderQueryService{
		orders:    orders,
		inventory: inventory,
		cache:     cache,
		metrics:   m,
		logger:    logger,
	}
}

// GetOrder возвращает заказ со строками. repository.ErrNotFound, если нет
func (s *OrderQueryService) GetOrder(ctx context.Context, id string) (repository.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return repository.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return order, nil
}

// GetOrderByPaymentReference возвращает заказ по ссылке на платёж
func (s *OrderQueryService) GetOrderByPaymentReference(ctx context.Context, paymentReference string) (repository.Order, error) {
	order, err := s.orders.GetByPaymentReference(ctx, paymentReference)
	if err != nil {
		return repository.Order{}, fmt.Errorf("get order by payment %s: %w", paymentReference, err)
	}
	return order, nil
}

// GetStock возвращает остаток, горячие ключи отдаются из кэша
func (s *OrderQueryService) GetStock(ctx context.Context, cocktailID, sizeID string) (repository.InventoryRecord, error) {
	if s.cache != nil {
		if rec, ok := s.cache.Get(cocktailID, sizeID); ok {
			s.metrics.StockCache.WithLabelValues("hit").Inc()
			return rec, nil
		}
		s.metrics.StockCache.WithLabelValues("miss").Inc()
	}

	rec, err := s.inventory.GetStock(ctx, cocktailID, sizeID)
	if err != nil {
		return repository.InventoryRecord{}, fmt.Errorf("get stock %s/%s: %w", cocktailID, sizeID, err)
	}
	if s.cache != nil {
		s.cache.Add(rec)
	}
	return rec, nil
}
