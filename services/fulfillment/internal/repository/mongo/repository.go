package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
)

const collectionName = "inventory"

// InventoryDocument представляет документ в коллекции MongoDB
type InventoryDocument struct {
	CocktailID    string    `bson:"cocktail_id"`
	SizeID        string    `bson:"size_id"`
	StockQuantity int       `bson:"stock_quantity"`
	Available     bool      `bson:"available"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func (d InventoryDocument) toRecord() repository.InventoryRecord {
	return repository.InventoryRecord{
		CocktailID:    d.CocktailID,
		SizeID:        d.SizeID,
		StockQuantity: d.StockQuantity,
		Available:     d.Available,
		UpdatedAt:     d.UpdatedAt,
	}
}

// InventoryRepository реализует repository.InventoryRepository используя MongoDB
// (INVENTORY_BACKEND=mongo)
type InventoryRepository struct {
	client *mongo.Client
	col    *mongo.Collection
}

// NewInventoryRepository создаёт новый MongoDB репозиторий остатков.
// Создаёт уникальный индекс на (cocktail_id, size_id) при инициализации
func NewInventoryRepository(ctx context.Context, client *mongo.Client, dbName string) (*InventoryRepository, error) {
	col := client.Database(dbName).Collection(collectionName)

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "cocktail_id", Value: 1}, {Key: "size_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("cocktail_size_uq"),
	}
	if _, err := col.Indexes().CreateOne(ctx, indexModel); err != nil {
		return nil, err
	}

	return &InventoryRepository{
		client: client,
		col:    col,
	}, nil
}

func stockFilter(cocktailID, sizeID string) bson.M {
	return bson.M{"cocktail_id": cocktailID, "size_id": sizeID}
}

// GetStock получает остаток по паре (коктейль, размер).
// Возвращает ErrNotFound, если документа нет
func (r *InventoryRepository) GetStock(ctx context.Context, cocktailID, sizeID string) (repository.InventoryRecord, error) {
	var doc InventoryDocument
	err := r.col.FindOne(ctx, stockFilter(cocktailID, sizeID)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return repository.InventoryRecord{}, repository.ErrNotFound
		}
		return repository.InventoryRecord{}, err
	}
	return doc.toRecord(), nil
}

// SetStock перезаписывает остаток существующего документа, upsert не делается
func (r *InventoryRepository) SetStock(ctx context.Context, rec repository.InventoryRecord) error {
	update := bson.M{
		"$set": bson.M{
			"stock_quantity": rec.StockQuantity,
			"available":      rec.Available,
			"updated_at":     time.Now().UTC(),
		},
	}

	res, err := r.col.UpdateOne(ctx, stockFilter(rec.CocktailID, rec.SizeID), update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Seed заводит или перезаписывает документ остатка. Сервис остатки не создаёт, метод для тестов и локальных стендов
func (r *InventoryRepository) Seed(ctx context.Context, rec repository.InventoryRecord) error {
	doc := InventoryDocument{
		CocktailID:    rec.CocktailID,
		SizeID:        rec.SizeID,
		StockQuantity: rec.StockQuantity,
		Available:     rec.StockQuantity > 0,
		UpdatedAt:     time.Now().UTC(),
	}
	_, err := r.col.ReplaceOne(ctx, stockFilter(rec.CocktailID, rec.SizeID), doc, options.Replace().SetUpsert(true))
	return err
}

// Ping проверяет доступность MongoDB
func (r *InventoryRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}
