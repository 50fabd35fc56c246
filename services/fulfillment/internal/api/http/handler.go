package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"github.com/shestoi/cocktail-delivery/platform/observability"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/service"
)

// SignatureHeader заголовок подписи webhook провайдера
const SignatureHeader = "Stripe-Signature"

// PaymentReceiver принимает сырое тело webhook
type PaymentReceiver interface {
	Receive(ctx context.Context, payload []byte, signatureHeader string) (service.ReceiveResult, error)
}

// OrderQueries чтение заказов и остатков для витрины
type OrderQueries interface {
	GetOrder(ctx context.Context, id string) (repository.Order, error)
	GetOrderByPaymentReference(ctx context.Context, paymentReference string) (repository.Order, error)
	GetStock(ctx context.Context, cocktailID, sizeID string) (repository.InventoryRecord, error)
}

// Handler содержит HTTP-обработчики fulfillment
type Handler struct {
	receiver     PaymentReceiver
	queries      OrderQueries
	maxBodyBytes int64
	logger       *zap.Logger
}

// DefaultMaxBodyBytes лимит тела webhook, если не задан в конфиге
const DefaultMaxBodyBytes = 64 << 10

// NewHandler создаёт новый HTTP handler
func NewHandler(receiver PaymentReceiver, queries OrderQueries, maxBodyBytes int64, logger *zap.Logger) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{
		receiver:     receiver,
		queries:      queries,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// OrderItem строка заказа в ответе
type OrderItem struct {
	CocktailID string `json:"cocktail_id"`
	SizeID     string `json:"size_id"`
	Quantity   int    `json:"quantity"`
	UnitPrice  string `json:"unit_price"`
	LineTotal  string `json:"line_total"`
}

// OrderResponse представляет HTTP ответ с информацией о заказе
type OrderResponse struct {
	ID               string      `json:"id"`
	PaymentReference string      `json:"payment_reference"`
	TotalAmount      string      `json:"total_amount"`
	Status           string      `json:"status"`
	IsPaid           bool        `json:"is_paid"`
	Items            []OrderItem `json:"items"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// StockResponse остаток по паре (коктейль, размер)
type StockResponse struct {
	CocktailID    string `json:"cocktail_id"`
	SizeID        string `json:"size_id"`
	StockQuantity int    `json:"stock_quantity"`
	Available     bool   `json:"available"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewOrderResponse переводит доменный заказ в DTO ответа (HTTP и fulfillmentctl)
func NewOrderResponse(o repository.Order) OrderResponse {
	items := make([]OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItem{
			CocktailID: it.CocktailID,
			SizeID:     it.SizeID,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice.StringFixed(2),
			LineTotal:  it.LineTotal.StringFixed(2),
		})
	}
	return OrderResponse{
		ID:               o.ID,
		PaymentReference: o.PaymentReference,
		TotalAmount:      o.TotalAmount.StringFixed(2),
		Status:           string(o.Status),
		IsPaid:           o.IsPaid,
		Items:            items,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// PostPaymentWebhook обрабатывает POST /webhooks/payments.
// 400 провайдер не повторяет, 500 приводит к повторной доставке
func (h *Handler) PostPaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.L(ctx, h.logger)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("webhook body too large", zap.Int64("limit", tooLarge.Limit))
			writeError(w, http.StatusBadRequest, fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit))
			return
		}
		logger.Warn("failed to read webhook body", zap.Error(err))
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	res, err := h.receiver.Receive(ctx, body, r.Header.Get(SignatureHeader))
	if err != nil {
		if errors.Is(err, service.ErrInvalidSignature) || errors.Is(err, service.ErrMalformedEvent) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("payment webhook processing failed", zap.Error(err), zap.String("event_id", res.EventID))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// bindPath достаёт обязательный path параметр в стиле simple
func bindPath(r *http.Request, name string) (string, error) {
	var value string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &value, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", fmt.Errorf("parameter '%s' is empty", name)
	}
	return value, nil
}

func (h *Handler) writeOrder(w http.ResponseWriter, r *http.Request, order repository.Order, err error) {
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		observability.L(r.Context(), h.logger).Error("failed to get order", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get order")
		return
	}
	writeJSON(w, http.StatusOK, NewOrderResponse(order))
}

// GetOrder обрабатывает GET /orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := bindPath(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := h.queries.GetOrder(r.Context(), id)
	h.writeOrder(w, r, order, err)
}

// GetOrderByPaymentReference обрабатывает GET /orders/by-payment/{paymentReference}
func (h *Handler) GetOrderByPaymentReference(w http.ResponseWriter, r *http.Request) {
	ref, err := bindPath(r, "paymentReference")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := h.queries.GetOrderByPaymentReference(r.Context(), ref)
	h.writeOrder(w, r, order, err)
}

// GetStock обрабатывает GET /inventory/{cocktailId}/{sizeId}
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	cocktailID, err := bindPath(r, "cocktailId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sizeID, err := bindPath(r, "sizeId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.queries.GetStock(r.Context(), cocktailID, sizeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "inventory record not found")
			return
		}
		observability.L(r.Context(), h.logger).Error("failed to get stock", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get stock")
		return
	}

	writeJSON(w, http.StatusOK, StockResponse{
		CocktailID:    rec.CocktailID,
		SizeID:        rec.SizeID,
		StockQuantity: rec.StockQuantity,
		Available:     rec.Available,
	})
}
