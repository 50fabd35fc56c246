package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
)

func insertOutboxEvent(ctx context.Context, tx pgx.Tx, event repository.OutboxEvent) error {
	if event.EventID == "" {
		return nil
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO outbox_events (event_id, event_type, topic, aggregate_id, payload, status)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
		event.EventID, event.EventType, event.Topic, event.AggregateID, string(event.Payload), repository.OutboxStatusPending)
	return mapError(err)
}

// GetPendingOutboxEvents возвращает pending события в порядке создания
func (r *Repository) GetPendingOutboxEvents(ctx context.Context, limit int) ([]repository.OutboxEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT event_id, event_type, topic, aggregate_id, payload::text, status, attempts, last_error, created_at
		 FROM outbox_events
		 WHERE status = $1
		 ORDER BY created_at, event_id
		 LIMIT $2`,
		repository.OutboxStatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]repository.OutboxEvent, 0)
	for rows.Next() {
		var (
			e       repository.OutboxEvent
			payload string
		)
		if err := rows.Scan(&e.EventID, &e.EventType, &e.Topic, &e.AggregateID, &payload, &e.Status, &e.Attempts, &e.LastError, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Payload = []byte(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}

// MarkOutboxEventSent помечает событие отправленным
func (r *Repository) MarkOutboxEventSent(ctx context.Context, eventID string) error {
	return r.execOutbox(ctx,
		`UPDATE outbox_events SET status = 'sent', sent_at = now() WHERE event_id = $1`,
		eventID)
}

// MarkOutboxEventFailed фиксирует неудачную попытку публикации
func (r *Repository) MarkOutboxEventFailed(ctx context.Context, eventID string, errMsg string) error {
	return r.execOutbox(ctx,
		`UPDATE outbox_events SET status = 'failed', attempts = attempts + 1, last_error = $2 WHERE event_id = $1`,
		eventID, errMsg)
}

// ResetOutboxEventPending возвращает событие в очередь на следующий тик
func (r *Repository) ResetOutboxEventPending(ctx context.Context, eventID string) error {
	return r.execOutbox(ctx,
		`UPDATE outbox_events SET status = 'pending' WHERE event_id = $1`,
		eventID)
}

func (r *Repository) execOutbox(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
