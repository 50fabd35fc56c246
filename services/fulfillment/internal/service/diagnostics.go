package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/metrics"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
)

// Виды диагностических записей
const (
	DiagOrderLookupFailed    = "order_lookup_failed"
	DiagOrderNoItems         = "order_no_items"
	DiagOrderCreateFailed    = "order_create_failed"
	DiagPriceMismatch        = "price_mismatch"
	DiagInventoryReadFailed  = "inventory_read_failed"
	DiagInventoryWriteFailed = "inventory_write_failed"
	DiagInventoryOversold    = "inventory_oversold"
	DiagCancelLookupFailed   = "cancel_lookup_failed"
	DiagOrderMissing         = "order_missing"
	DiagOrderAlreadyPaid     = "order_already_paid"
	DiagOrderUpdateFailed    = "order_update_failed"
)

// Diagnostics пишет аномалии в журнал. Ошибки журнала поглощаются и только логируются
type Diagnostics struct {
	repo    repository.DiagnosticRepository
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewDiagnostics создаёт Diagnostics
func NewDiagnostics(repo repository.DiagnosticRepository, m *metrics.Metrics, logger *zap.Logger) *Diagnostics {
	return &Diagnostics{
		repo:    repo,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Record сохраняет запись вида kind. Никогда не возвращает ошибку
func (d *Diagnostics) Record(ctx context.Context, kind, paymentReference string, payload map[string]any) {
	d.metrics.Diagnostics.WithLabelValues(kind).Inc()

	event := repository.DiagnosticEvent{
		Kind:             kind,
		PaymentReference: paymentReference,
		Payload:          payload,
		CreatedAt:        d.now(),
	}
	if err := d.repo.Record(ctx, event); err != nil {
		d.logger.Warn("failed to record diagnostic event",
			zap.Error(err),
			zap.String("kind", kind),
			zap.String("payment_reference", paymentReference),
		)
	}
}

func errPayload(err error, kv ...any) map[string]any {
	payload := make(map[string]any, len(kv)/2+1)
	if err != nil {
		payload["error"] = err.Error()
	}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			payload[k] = kv[i+1]
		}
	}
	return payload
}
