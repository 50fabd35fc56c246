package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
)

// GetStock получает остаток по паре (коктейль, размер)
func (r *Repository) GetStock(ctx context.Context, cocktailID, sizeID string) (repository.InventoryRecord, error) {
	rec := repository.InventoryRecord{CocktailID: cocktailID, SizeID: sizeID}
	err := r.pool.QueryRow(ctx,
		`SELECT stock_quantity, available, updated_at
		 FROM inventory
		 WHERE cocktail_id = $1 AND size_id = $2`,
		cocktailID, sizeID).Scan(&rec.StockQuantity, &rec.Available, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.InventoryRecord{}, repository.ErrNotFound
		}
		return repository.InventoryRecord{}, err
	}
	return rec, nil
}

// SetStock перезаписывает остаток существующей записи
func (r *Repository) SetStock(ctx context.Context, rec repository.InventoryRecord) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE inventory
		 SET stock_quantity = $3, available = $4, updated_at = now()
		 WHERE cocktail_id = $1 AND size_id = $2`,
		rec.CocktailID, rec.SizeID, rec.StockQuantity, rec.Available)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
