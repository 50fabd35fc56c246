package service

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/metrics"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
	repoMocks "github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository/mocks"
)

const testTopic = "fulfillment.order-events"

// diagKind матчит DiagnosticEvent по виду
func diagKind(kind string) interface{} {
	return mock.MatchedBy(func(e repository.DiagnosticEvent) bool { return e.Kind == kind })
}

type testDeps struct {
	orders    *repoMocks.OrderRepository
	inventory *repoMocks.InventoryRepository
	diag      *repoMocks.DiagnosticRepository
	metrics   *metrics.Metrics
}

func newTestDeps(t *testing.T) testDeps {
	return testDeps{
		orders:    repoMocks.NewOrderRepository(t),
		inventory: repoMocks.NewInventoryRepository(t),
		diag:      repoMocks.NewDiagnosticRepository(t),
		metrics:   metrics.NewNop(),
	}
}

func (d testDeps) diagnostics() *Diagnostics {
	return NewDiagnostics(d.diag, d.metrics, zap.NewNop())
}

func (d testDeps) adjuster(clamp bool) *InventoryAdjuster {
	return NewInventoryAdjuster(d.inventory, nil, d.diagnostics(), d.metrics, zap.NewNop(), clamp)
}

func (d testDeps) materializer(catalog repository.CatalogRepository) *OrderMaterializer {
	return NewOrderMaterializer(d.orders, catalog, d.adjuster(true), d.diagnostics(), d.metrics, zap.NewNop(), testTopic)
}

func (d testDeps) reconciler() *FailureReconciler {
	return NewFailureReconciler(d.orders, d.diagnostics(), d.metrics, zap.NewNop(), testTopic)
}
