package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
)

// GetUnitPrice возвращает текущую цену размера из каталога
func (r *Repository) GetUnitPrice(ctx context.Context, cocktailID, sizeID string) (decimal.Decimal, error) {
	var price string
	err := r.pool.QueryRow(ctx,
		`SELECT price::text FROM cocktail_sizes WHERE cocktail_id = $1 AND size_id = $2`,
		cocktailID, sizeID).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, repository.ErrNotFound
		}
		return decimal.Zero, err
	}
	return decimal.NewFromString(price)
}
