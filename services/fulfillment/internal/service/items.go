package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MetadataItemsKey ключ metadata со строками заказа в JSON
const MetadataItemsKey = "items"

var (
	errItemsMissing   = errors.New("metadata has no items")
	errItemsTruncated = errors.New("items metadata is truncated")
	errItemsMalformed = errors.New("items metadata is not a JSON array of objects")
	errItemInvalid    = errors.New("invalid line item")
)

// truncationMarkers добавляются в конец значения, когда витрина обрезает metadata под лимит провайдера
var truncationMarkers = []string{"...", "…"}

// LineItemRequest строка заказа из metadata события
type LineItemRequest struct {
	CocktailID string
	SizeID     string
	Quantity   int
	UnitPrice  decimal.Decimal
	LineTotal  decimal.Decimal
}

// ParseLineItems разбирает metadata["items"].
// Работает по принципу всё или ничего: одна битая строка обнуляет весь список,
// потому что частичный заказ не совпадёт с тем, что было оплачено.
// При ошибке возвращает nil и причину.
func ParseLineItems(metadata map[string]string) ([]LineItemRequest, error) {
	raw := strings.TrimSpace(metadata[MetadataItemsKey])
	if raw == "" {
		return nil, errItemsMissing
	}
	for _, marker := range truncationMarkers {
		if strings.HasSuffix(raw, marker) {
			return nil, errItemsTruncated
		}
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var rawItems []map[string]any
	if err := dec.Decode(&rawItems); err != nil {
		return nil, fmt.Errorf("%w: %v", errItemsMalformed, err)
	}
	if dec.More() {
		return nil, errItemsMalformed
	}
	if len(rawItems) == 0 {
		return nil, errItemsMissing
	}

	items := make([]LineItemRequest, 0, len(rawItems))
	for i, raw := range rawItems {
		item, err := normalizeItem(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: items[%d]: %v", errItemInvalid, i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func normalizeItem(raw map[string]any) (LineItemRequest, error) {
	var item LineItemRequest

	cocktailID, ok := toID(raw["cocktail_id"])
	if !ok {
		return item, errors.New("cocktail_id is required")
	}
	// исторически размер приходил под двумя именами
	sizeID, ok := toID(raw["size_id"])
	if !ok {
		sizeID, ok = toID(raw["cocktail_size_id"])
	}
	if !ok {
		return item, errors.New("size_id or cocktail_size_id is required")
	}

	qty, ok := toDecimal(raw["quantity"])
	if !ok || !qty.IsInteger() || !qty.IsPositive() || qty.GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
		return item, errors.New("quantity must be a positive integer")
	}

	price, ok := toDecimal(raw["unit_price"])
	if !ok || price.IsNegative() {
		return item, errors.New("unit_price must be a non-negative number")
	}

	item.CocktailID = cocktailID
	item.SizeID = sizeID
	item.Quantity = int(qty.IntPart())
	item.UnitPrice = price
	item.LineTotal = price.Mul(qty)

	if v, present := raw["line_total"]; present && v != nil {
		total, ok := toDecimal(v)
		if !ok || total.IsNegative() {
			return item, errors.New("line_total must be a non-negative number")
		}
		item.LineTotal = total
	}
	return item, nil
}

// toID принимает строку или число
func toID(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}

// toDecimal принимает число или числовую строку
func toDecimal(v any) (decimal.Decimal, bool) {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	default:
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
