package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
)

// GetByID получает заказ по ID вместе со строками
func (r *Repository) GetByID(ctx context.Context, id string) (repository.Order, error) {
	return r.getOrder(ctx, "id", id)
}

// GetByPaymentReference получает заказ по ссылке на платёж
func (r *Repository) GetByPaymentReference(ctx context.Context, paymentReference string) (repository.Order, error) {
	return r.getOrder(ctx, "payment_reference", paymentReference)
}

func (r *Repository) getOrder(ctx context.Context, column string, value string) (repository.Order, error) {
	var (
		order repository.Order
		total string
	)
	// column подставляется только из констант выше
	err := r.pool.QueryRow(ctx,
		`SELECT id, payment_reference, total_amount::text, status, is_paid, created_at, updated_at
		 FROM orders
		 WHERE `+column+` = $1`,
		value).Scan(&order.ID, &order.PaymentReference, &total, &order.Status, &order.IsPaid, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.Order{}, repository.ErrNotFound
		}
		return repository.Order{}, err
	}
	if order.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return repository.Order{}, fmt.Errorf("parse total_amount: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT cocktail_id, size_id, quantity, unit_price::text, line_total::text
		 FROM order_items
		 WHERE order_id = $1
		 ORDER BY id`,
		order.ID)
	if err != nil {
		return repository.Order{}, err
	}
	defer rows.Close()

	order.Items = make([]repository.OrderLineItem, 0)
	for rows.Next() {
		item := repository.OrderLineItem{OrderID: order.ID}
		var unitPrice, lineTotal string
		if err := rows.Scan(&item.CocktailID, &item.SizeID, &item.Quantity, &unitPrice, &lineTotal); err != nil {
			return repository.Order{}, err
		}
		if item.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return repository.Order{}, fmt.Errorf("parse unit_price: %w", err)
		}
		if item.LineTotal, err = decimal.NewFromString(lineTotal); err != nil {
			return repository.Order{}, fmt.Errorf("parse line_total: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	if err = rows.Err(); err != nil {
		return repository.Order{}, err
	}

	return order, nil
}

// CreateWithItems сохраняет заказ, строки и outbox событие в одной транзакции.
// Повторный payment_reference возвращает ErrAlreadyExists
func (r *Repository) CreateWithItems(ctx context.Context, order repository.Order, event repository.OutboxEvent) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	createdAt := order.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO orders (id, payment_reference, total_amount, status, is_paid, created_at, updated_at)
		 VALUES ($1, $2, $3::numeric, $4, $5, $6, $6)`,
		order.ID, order.PaymentReference, order.TotalAmount.String(), string(order.Status), order.IsPaid, createdAt)
	if err != nil {
		return mapError(err)
	}

	for _, item := range order.Items {
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (order_id, cocktail_id, size_id, quantity, unit_price, line_total)
			 VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric)`,
			order.ID, item.CocktailID, item.SizeID, item.Quantity, item.UnitPrice.String(), item.LineTotal.String())
		if err != nil {
			return err
		}
	}

	if err = insertOutboxEvent(ctx, tx, event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// UpdatePaymentState применяет минимальное обновление; nil поля остаются как есть
func (r *Repository) UpdatePaymentState(ctx context.Context, orderID string, upd repository.PaymentStateUpdate, event repository.OutboxEvent) error {
	var status *string
	if upd.Status != nil {
		s := string(*upd.Status)
		status = &s
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE orders
		 SET status = COALESCE($2::text, status),
		     is_paid = COALESCE($3::boolean, is_paid),
		     updated_at = now()
		 WHERE id = $1`,
		orderID, status, upd.IsPaid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	if err = insertOutboxEvent(ctx, tx, event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
