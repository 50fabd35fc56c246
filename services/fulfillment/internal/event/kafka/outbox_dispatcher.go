package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/shestoi/cocktail-delivery/platform/observability"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/metrics"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
)

const tracerName = "fulfillment/outbox"

// MessageWriter часть kafka.Writer, нужная dispatcher
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DispatcherConfig параметры опроса outbox
type DispatcherConfig struct {
	BatchSize  int           // сколько событий забирать за один тик
	Interval   time.Duration // пауза между тиками
	MaxRetries int           // попыток публикации одного события за тик
	Backoff    time.Duration // базовая пауза между попытками, растёт линейно
}

// OutboxDispatcher публикует события заказов (order.paid, order.cancelled) из outbox в Kafka
type OutboxDispatcher struct {
	logger  *zap.Logger
	repo    repository.OutboxRepository
	writer  MessageWriter
	cfg     DispatcherConfig
	metrics *metrics.Metrics
}

// NewOutboxDispatcher создаёт новый outbox dispatcher
func NewOutboxDispatcher(
	logger *zap.Logger,
	repo repository.OutboxRepository,
	writer MessageWriter,
	cfg DispatcherConfig,
	m *metrics.Metrics,
) *OutboxDispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}

	return &OutboxDispatcher{
		logger:  logger,
		repo:    repo,
		writer:  writer,
		cfg:     cfg,
		metrics: m,
	}
}

// Start крутит цикл опроса до отмены ctx
func (d *OutboxDispatcher) Start(ctx context.Context) error {
	d.logger.Info("starting outbox dispatcher",
		zap.Int("batch_size", d.cfg.BatchSize),
		zap.Duration("interval", d.cfg.Interval),
		zap.Int("max_retries", d.cfg.MaxRetries),
	)

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := d.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("failed to process outbox batch", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher context cancelled, stopping")
			return nil
		case <-ticker.C:
		}
	}
}

// ProcessBatch публикует одну пачку pending событий.
// Ошибка отдельного события не прерывает пачку
func (d *OutboxDispatcher) ProcessBatch(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	events, err := d.repo.GetPendingOutboxEvents(ctx, d.cfg.BatchSize)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to get pending events: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	d.logger.Debug("processing outbox batch", zap.Int("count", len(events)))

	for _, event := range events {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := d.processEvent(ctx, event); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Error("failed to process outbox event",
				zap.Error(err),
				zap.String("event_id", event.EventID),
				zap.String("event_type", event.EventType),
			)
		}
	}
	return nil
}

func (d *OutboxDispatcher) message(ctx context.Context, event repository.OutboxEvent) kafka.Message {
	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(event.EventType)},
		{Key: "event_id", Value: []byte(event.EventID)},
	}
	otel.GetTextMapPropagator().Inject(ctx, observability.KafkaHeaderCarrier{Headers: &headers})

	return kafka.Message{
		Topic:   event.Topic,
		Key:     []byte(event.AggregateID), // order_id: события одного заказа в одной партиции
		Value:   event.Payload,
		Headers: headers,
	}
}

func (d *OutboxDispatcher) processEvent(ctx context.Context, event repository.OutboxEvent) (err error) {
	ctx, span := observability.StartSpan(ctx, tracerName, "OutboxDispatcher.publish")
	defer func() { observability.EndSpan(span, err) }()

	msg := d.message(ctx, event)
	var lastErr error

	for attempt := 1; attempt <= d.cfg.MaxRetries; attempt++ {
		lastErr = d.writer.WriteMessages(ctx, msg)
		if lastErr == nil {
			if markErr := d.repo.MarkOutboxEventSent(ctx, event.EventID); markErr != nil {
				// сообщение уже в Kafka, следующий тик отправит дубль; потребители дедуплицируют по event_id
				return fmt.Errorf("failed to mark event as sent: %w", markErr)
			}
			d.metrics.OutboxPublished.WithLabelValues(metrics.OutboxSent).Inc()
			d.logger.Info("outbox event published",
				zap.String("event_id", event.EventID),
				zap.String("event_type", event.EventType),
				zap.String("order_id", event.AggregateID),
				zap.Int("attempt", attempt),
			)
			return nil
		}

		d.logger.Warn("failed to publish outbox event",
			zap.Error(lastErr),
			zap.String("event_id", event.EventID),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", d.cfg.MaxRetries),
		)

		if attempt < d.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.cfg.Backoff * time.Duration(attempt)):
			}
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	d.metrics.OutboxPublished.WithLabelValues(metrics.OutboxFailed).Inc()

	errMsg := fmt.Sprintf("failed after %d attempts: %v", d.cfg.MaxRetries, lastErr)
	if markErr := d.repo.MarkOutboxEventFailed(ctx, event.EventID, errMsg); markErr != nil {
		return fmt.Errorf("failed to mark event as failed: %w", markErr)
	}
	// обратно в pending: следующий тик попробует снова
	if resetErr := d.repo.ResetOutboxEventPending(ctx, event.EventID); resetErr != nil {
		d.logger.Error("failed to reset event to pending",
			zap.Error(resetErr),
			zap.String("event_id", event.EventID),
		)
	}

	return fmt.Errorf("failed to publish event after %d attempts: %w", d.cfg.MaxRetries, lastErr)
}

// Close закрывает Kafka writer
func (d *OutboxDispatcher) Close() error {
	d.logger.Info("closing outbox dispatcher")
	return d.writer.Close()
}
