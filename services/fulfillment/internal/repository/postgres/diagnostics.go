package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
)

// Record добавляет запись в журнал аномалий
func (r *Repository) Record(ctx context.Context, event repository.DiagnosticEvent) error {
	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal diagnostic payload: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO fulfillment_diagnostics (kind, payment_reference, payload)
		 VALUES ($1, $2, $3::jsonb)`,
		event.Kind, event.PaymentReference, string(raw))
	return err
}
