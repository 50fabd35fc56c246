package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
)

// StockCache ограниченный по размеру и времени кэш остатков для горячих ключей.
// Экземпляр принадлежит app и передаётся в сервисы явно
type StockCache struct {
	lru *expirable.LRU[string, repository.InventoryRecord]
}

// NewStockCache создаёт кэш на size записей с временем жизни ttl
func NewStockCache(size int, ttl time.Duration) *StockCache {
	return &StockCache{
		lru: expirable.NewLRU[string, repository.InventoryRecord](size, nil, ttl),
	}
}

func key(cocktailID, sizeID string) string {
	return cocktailID + "/" + sizeID
}

// Get возвращает закэшированную запись
func (c *StockCache) Get(cocktailID, sizeID string) (repository.InventoryRecord, bool) {
	return c.lru.Get(key(cocktailID, sizeID))
}

// Add кладёт запись в кэш
func (c *StockCache) Add(rec repository.InventoryRecord) {
	c.lru.Add(key(rec.CocktailID, rec.SizeID), rec)
}

// Invalidate удаляет запись после изменения остатка
func (c *StockCache) Invalidate(cocktailID, sizeID string) {
	c.lru.Remove(key(cocktailID, sizeID))
}

// Len количество живых записей
func (c *StockCache) Len() int {
	return c.lru.Len()
}
