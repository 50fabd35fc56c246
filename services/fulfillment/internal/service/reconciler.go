package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shestoi/cocktail-delivery/platform/observability"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/metrics"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
)

// FailureReconciler переводит заказ в cancelled по неуспешному или отменённому платежу.
// Заказ никогда не создаётся, а оплаченный заказ никогда не понижается
type FailureReconciler struct {
	orders      repository.OrderRepository
	diagnostics *Diagnostics
	metrics     *metrics.Metrics
	logger      *zap.Logger
	topic       string
	now         func() time.Time
}

// NewFailureReconciler создаёт FailureReconciler
func NewFailureReconciler(
	orders repository.OrderRepository,
	diagnostics *Diagnostics,
	m *metrics.Metrics,
	logger *zap.Logger,
	topic string,
) *FailureReconciler {
	return &FailureReconciler{
		orders:      orders,
		diagnostics: diagnostics,
		metrics:     m,
		logger:      logger,
		topic:       topic,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ReconcileInput данные неуспешного платежа
type ReconcileInput struct {
	Kind             EventKind
	PaymentReference string
	Amount           int64
	Metadata         map[string]string
	FailureReason    string
}

// ReconcileOutcome чем закончилась сверка
type ReconcileOutcome string

const (
	OutcomeNoReference  ReconcileOutcome = "no_reference"
	OutcomeLookupFailed ReconcileOutcome = "lookup_failed"
	OutcomeOrderMissing ReconcileOutcome = "order_missing"
	OutcomeAlreadyPaid  ReconcileOutcome = "already_paid"
	OutcomeUnchanged    ReconcileOutcome = "unchanged"
	OutcomeUpdateFailed ReconcileOutcome = "update_failed"
	OutcomeCancelled    ReconcileOutcome = "cancelled"
)

// ReconcileResult итог сверки
type ReconcileResult struct {
	OrderID string
	Outcome ReconcileOutcome
}

// Reconcile идемпотентно отменяет неоплаченный заказ.
// Все сбои поглощаются и пишутся в журнал, повтор остаётся за провайдером
func (r *FailureReconciler) Reconcile(ctx context.Context, in ReconcileInput) ReconcileResult {
	ctx, span := observability.StartSpan(ctx, tracerName, "FailureReconciler.Reconcile")
	defer span.End()

	res := r.reconcile(ctx, in)
	span.SetAttributes(
		attribute.String("payment.reference", in.PaymentReference),
		attribute.String("reconcile.outcome", string(res.Outcome)),
	)
	return res
}

func (r *FailureReconciler) reconcile(ctx context.Context, in ReconcileInput) ReconcileResult {
	if in.PaymentReference == "" {
		return ReconcileResult{Outcome: OutcomeNoReference}
	}

	logger := observability.L(ctx, r.logger).With(
		zap.String("payment_reference", in.PaymentReference),
		zap.String("event_kind", string(in.Kind)),
	)
	payload := func(err error, kv ...any) map[string]any {
		base := []any{
			"event_kind", string(in.Kind),
			"amount", in.Amount,
			"metadata", in.Metadata,
			"failure_reason", in.FailureReason,
		}
		return errPayload(err, append(base, kv...)...)
	}

	order, err := r.orders.GetByPaymentReference(ctx, in.PaymentReference)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// ожидаемо, если checkout упал до создания заказа
			logger.Info("no order for failed payment")
			r.diagnostics.Record(ctx, DiagOrderMissing, in.PaymentReference, payload(nil))
			return ReconcileResult{Outcome: OutcomeOrderMissing}
		}
		logger.Error("failed to look up order for failed payment", zap.Error(err))
		r.diagnostics.Record(ctx, DiagCancelLookupFailed, in.PaymentReference, payload(err))
		return ReconcileResult{Outcome: OutcomeLookupFailed}
	}

	logger = logger.With(zap.String("order_id", order.ID))

	// опоздавшее событие о неудаче не должно понижать оплаченный заказ
	if order.IsPaid {
		logger.Warn("failure event for already paid order ignored")
		r.diagnostics.Record(ctx, DiagOrderAlreadyPaid, in.PaymentReference, payload(nil, "order_id", order.ID))
		return ReconcileResult{OrderID: order.ID, Outcome: OutcomeAlreadyPaid}
	}

	upd := cancellationUpdate(order)
	if upd.IsEmpty() {
		logger.Debug("order already cancelled")
		return ReconcileResult{OrderID: order.ID, Outcome: OutcomeUnchanged}
	}

	outbox, err := newOrderCancelledEvent(r.topic, order, in.FailureReason, r.now())
	if err == nil {
		err = r.orders.UpdatePaymentState(ctx, order.ID, upd, outbox)
	}
	if err != nil {
		logger.Error("failed to cancel order", zap.Error(err))
		r.diagnostics.Record(ctx, DiagOrderUpdateFailed, in.PaymentReference, payload(err, "order_id", order.ID))
		return ReconcileResult{OrderID: order.ID, Outcome: OutcomeUpdateFailed}
	}

	r.metrics.OrdersCancelled.Inc()
	logger.Info("order cancelled", zap.String("failure_reason", in.FailureReason))
	return ReconcileResult{OrderID: order.ID, Outcome: OutcomeCancelled}
}

// cancellationUpdate содержит только те поля, которые реально меняются
func cancellationUpdate(order repository.Order) repository.PaymentStateUpdate {
	var upd repository.PaymentStateUpdate
	if order.Status != repository.StatusCancelled {
		status := repository.StatusCancelled
		upd.Status = &status
	}
	if order.IsPaid {
		paid := false
		upd.IsPaid = &paid
	}
	return upd
}
