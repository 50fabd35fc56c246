//go:build integration

package mongo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
)

func TestInventoryRepository_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:6")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(ctx))
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	repo, err := NewInventoryRepository(ctx, client, "fulfillment_test")
	require.NoError(t, err)
	require.NoError(t, repo.Ping(ctx))

	t.Run("GetStock_NotFound", func(t *testing.T) {
		_, err := repo.GetStock(ctx, "mojito", "large")
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("SetStock does not create documents", func(t *testing.T) {
		err := repo.SetStock(ctx, repository.InventoryRecord{CocktailID: "mojito", SizeID: "large", StockQuantity: 3})
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("Seed, GetStock and SetStock", func(t *testing.T) {
		require.NoError(t, repo.Seed(ctx, repository.InventoryRecord{CocktailID: "mojito", SizeID: "large", StockQuantity: 10}))

		rec, err := repo.GetStock(ctx, "mojito", "large")
		require.NoError(t, err)
		require.Equal(t, 10, rec.StockQuantity)
		require.True(t, rec.Available)

		rec.StockQuantity = 0
		rec.Available = false
		require.NoError(t, repo.SetStock(ctx, rec))

		rec, err = repo.GetStock(ctx, "mojito", "large")
		require.NoError(t, err)
		require.Equal(t, 0, rec.StockQuantity)
		require.False(t, rec.Available)
	})

	t.Run("unique index on cocktail and size", func(t *testing.T) {
		_, err := repo.col.InsertOne(ctx, InventoryDocument{CocktailID: "mojito", SizeID: "large"})
		require.True(t, mongo.IsDuplicateKeyError(err), "expected duplicate key error, got %v", err)
	})
}
