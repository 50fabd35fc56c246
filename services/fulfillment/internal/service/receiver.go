package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shestoi/cocktail-delivery/platform/observability"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/metrics"
)

// PaymentEventReceiver проверяет входящее событие провайдера и направляет его по виду
type PaymentEventReceiver struct {
	verifier     EventVerifier
	materializer *OrderMaterializer
	reconciler   *FailureReconciler
	processed    ProcessedEventsStore
	processedTTL time.Duration
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewPaymentEventReceiver создаёт PaymentEventReceiver.
// processed может быть nil, тогда быстрая дедупликация по id события отключена
func NewPaymentEventReceiver(
	verifier EventVerifier,
	materializer *OrderMaterializer,
	reconciler *FailureReconciler,
	processed ProcessedEventsStore,
	processedTTL time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *PaymentEventReceiver {
	return &PaymentEventReceiver{
		verifier:     verifier,
		materializer: materializer,
		reconciler:   reconciler,
		processed:    processed,
		processedTTL: processedTTL,
		metrics:      m,
		logger:       logger,
	}
}

// ReceiveResult итог обработки доставки
type ReceiveResult struct {
	EventID   string
	Kind      EventKind
	Duplicate bool
}

// Receive проверяет подпись, декодирует событие и выполняет обработчик.
// Ошибки проверки оборачивают ErrInvalidSignature/ErrMalformedEvent,
// ошибки обработки возвращаются как есть, чтобы провайдер повторил доставку
func (r *PaymentEventReceiver) Receive(ctx context.Context, payload []byte, signatureHeader string) (res ReceiveResult, err error) {
	started := time.Now()
	defer func() { r.metrics.WebhookDuration.Observe(time.Since(started).Seconds()) }()

	ctx, span := observability.StartSpan(ctx, tracerName, "PaymentEventReceiver.Receive")
	defer func() { observability.EndSpan(span, err) }()

	event, err := r.verifier.Verify(payload, signatureHeader)
	if err != nil {
		r.metrics.WebhookEvents.WithLabelValues("unknown", metrics.ResultRejected).Inc()
		observability.L(ctx, r.logger).Warn("payment webhook rejected", zap.Error(err))
		return res, err
	}

	res = ReceiveResult{EventID: event.ID, Kind: event.Kind}
	span.SetAttributes(
		attribute.String("payment.event_id", event.ID),
		attribute.String("payment.event_kind", string(event.Kind)),
		attribute.String("payment.reference", event.PaymentReference),
	)
	logger := observability.L(ctx, r.logger).With(
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.String("event_kind", string(event.Kind)),
		zap.String("payment_reference", event.PaymentReference),
	)

	if r.alreadyProcessed(ctx, logger, event.ID) {
		logger.Info("payment event already processed, skipping")
		r.metrics.WebhookEvents.WithLabelValues(string(event.Kind), metrics.ResultDuplicate).Inc()
		res.Duplicate = true
		return res, nil
	}

	if err := r.Dispatch(ctx, event); err != nil {
		logger.Error("failed to handle payment event", zap.Error(err))
		result := metrics.ResultError
		if errors.Is(err, ErrMalformedEvent) {
			result = metrics.ResultRejected
		}
		r.metrics.WebhookEvents.WithLabelValues(string(event.Kind), result).Inc()
		return res, err
	}

	result := metrics.ResultProcessed
	if event.Kind == EventOther {
		result = metrics.ResultIgnored
	}
	r.metrics.WebhookEvents.WithLabelValues(string(event.Kind), result).Inc()
	r.markProcessed(ctx, logger, event.ID)
	return res, nil
}

// Dispatch выполняет обработчик по виду события. Паника обработчика превращается в ErrHandlerPanic
func (r *PaymentEventReceiver) Dispatch(ctx context.Context, event PaymentEvent) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, p)
		}
	}()

	switch event.Kind {
	case EventSucceeded:
		_, err = r.materializer.Materialize(ctx, MaterializeInput{
			PaymentReference: event.PaymentReference,
			AmountReceived:   event.AmountReceived,
			Metadata:         event.Metadata,
		})
		return err
	case EventFailed, EventCanceled:
		r.reconciler.Reconcile(ctx, ReconcileInput{
			Kind:             event.Kind,
			PaymentReference: event.PaymentReference,
			Amount:           event.Amount,
			Metadata:         event.Metadata,
			FailureReason:    event.FailureReason,
		})
		return nil
	default:
		observability.L(ctx, r.logger).Debug("payment event kind ignored",
			zap.String("event_type", event.Type),
			zap.String("event_id", event.ID),
		)
		return nil
	}
}

func (r *PaymentEventReceiver) alreadyProcessed(ctx context.Context, logger *zap.Logger, eventID string) bool {
	if r.processed == nil || eventID == "" {
		return false
	}
	ok, err := r.processed.IsProcessed(ctx, eventID)
	if err != nil {
		logger.Warn("failed to check processed events store", zap.Error(err))
		return false
	}
	return ok
}

func (r *PaymentEventReceiver) markProcessed(ctx context.Context, logger *zap.Logger, eventID string) {
	if r.processed == nil || eventID == "" {
		return
	}
	if err := r.processed.MarkProcessed(ctx, eventID, r.processedTTL); err != nil {
		logger.Warn("failed to mark payment event as processed", zap.Error(err))
	}
}
