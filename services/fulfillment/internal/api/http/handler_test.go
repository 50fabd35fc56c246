package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	platformhealth "github.com/shestoi/cocktail-delivery/platform/health/http"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/cache"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/metrics"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/payment/stripe"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository/memory"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/service"
)

const webhookSecret = "whsec_http_test"

// receiverFunc подменяет PaymentEventReceiver в тестах маппинга ошибок
type receiverFunc func(ctx context.Context, payload []byte, sig string) (service.ReceiveResult, error)

func (f receiverFunc) Receive(ctx context.Context, payload []byte, sig string) (service.ReceiveResult, error) {
	return f(ctx, payload, sig)
}

type stack struct {
	storage *memory.Storage
	router  http.Handler
}

// newStack собирает роутер поверх настоящих сервисов, in-memory хранилища и проверки подписи Stripe
func newStack(t *testing.T) *stack {
	t.Helper()
	storage := memory.NewStorage()
	m := metrics.New(prometheus.NewRegistry())
	logger := zap.NewNop()
	stockCache := cache.NewStockCache(16, time.Minute)

	diag := service.NewDiagnostics(storage, m, logger)
	adjuster := service.NewInventoryAdjuster(storage, stockCache, diag, m, logger, true)
	materializer := service.NewOrderMaterializer(storage, storage, adjuster, diag, m, logger, "order-events")
	reconciler := service.NewFailureReconciler(storage, diag, m, logger, "order-events")
	receiver := service.NewPaymentEventReceiver(stripe.NewVerifier(webhookSecret, 5*time.Minute),
		materializer, reconciler, service.NewMemoryProcessedEventsStore(), time.Hour, m, logger)
	queries := service.NewOrderQueryService(storage, storage, stockCache, m, logger)

	handler := NewHandler(receiver, queries, 1<<16, logger)
	router := NewRouter(handler, RouterConfig{
		AllowedOrigins: []string{"https://shop.example.com"},
		Health:         platformhealth.Handler(),
		Metrics:        metrics.Handler(prometheus.NewRegistry()),
	}, logger)

	return &stack{storage: storage, router: router}
}

func (s *stack) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func signedWebhook(t *testing.T, payload string) *http.Request {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    webhookSecret,
		Timestamp: time.Now(),
	})
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(payload))
	req.Header.Set(SignatureHeader, signed.Header)
	return req
}

func succeededEvent(eventID, ref string, amount int64, items string) string {
	return fmt.Sprintf(`{"id":%q,"object":"event","type":"payment_intent.succeeded","data":{"object":{
		"id":%q,"object":"payment_intent","amount":%d,"amount_received":%d,"metadata":{"items":%q}}}}`,
		eventID, ref, amount, amount, items)
}

func TestWebhook_SucceededCreatesOrder(t *testing.T) {
	s := newStack(t)
	s.storage.SeedInventory("c1", "s1", 10)

	payload := succeededEvent("evt_1", "pi_abc", 1000, `[{"cocktail_id":"c1","size_id":"s1","quantity":2,"unit_price":5}]`)

	rec := s.do(signedWebhook(t, payload))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"received":true}`, rec.Body.String())

	rec = s.do(httptest.NewRequest(http.MethodGet, "/orders/by-payment/pi_abc", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total_amount":"10.00"`)
	require.Contains(t, rec.Body.String(), `"status":"paid"`)
	require.Contains(t, rec.Body.String(), `"line_total":"10.00"`)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/inventory/c1/s1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"cocktail_id":"c1","size_id":"s1","stock_quantity":8,"available":true}`, rec.Body.String())

	// повторная доставка того же события
	rec = s.do(signedWebhook(t, payload))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, s.storage.Orders(), 1)

	order := s.storage.Orders()[0]
	rec = s.do(httptest.NewRequest(http.MethodGet, "/orders/"+order.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, order.TotalAmount.Equal(decimal.RequireFromString("10")))
}

func TestWebhook_CanceledKeepsPaidOrder(t *testing.T) {
	s := newStack(t)
	s.storage.SeedInventory("c1", "s1", 10)

	require.Equal(t, http.StatusOK, s.do(signedWebhook(t,
		succeededEvent("evt_1", "pi_x", 500, `[{"cocktail_id":"c1","size_id":"s1","quantity":1,"unit_price":5}]`))).Code)

	canceled := `{"id":"evt_2","object":"event","type":"payment_intent.canceled","data":{"object":{
		"id":"pi_x","object":"payment_intent","amount":500,"cancellation_reason":"requested_by_customer"}}}`
	require.Equal(t, http.StatusOK, s.do(signedWebhook(t, canceled)).Code)

	order, err := s.storage.GetByPaymentReference(context.Background(), "pi_x")
	require.NoError(t, err)
	// заказ уже оплачен, отмена его не трогает
	require.Equal(t, repository.StatusPaid, order.Status)
	require.True(t, order.IsPaid)
}

func TestWebhook_Rejections(t *testing.T) {
	s := newStack(t)

	t.Run("missing signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(`{}`))
		rec := s.do(req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "error")
	})

	t.Run("bad signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(`{}`))
		req.Header.Set(SignatureHeader, "t=1,v1=deadbeef")
		require.Equal(t, http.StatusBadRequest, s.do(req).Code)
	})

	t.Run("signed garbage", func(t *testing.T) {
		require.Equal(t, http.StatusBadRequest, s.do(signedWebhook(t, "not json")).Code)
	})

	require.Empty(t, s.storage.Orders())
}

func TestWebhook_ErrorMapping(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		body         string
		expectedCode int
	}{
		{name: "processed", expectedCode: http.StatusOK, body: `{}`},
		{name: "invalid signature", err: fmt.Errorf("%w: bad", service.ErrInvalidSignature), expectedCode: http.StatusBadRequest, body: `{}`},
		{name: "malformed", err: fmt.Errorf("%w: bad", service.ErrMalformedEvent), expectedCode: http.StatusBadRequest, body: `{}`},
		{name: "existence check failed", err: service.ErrOrderExistenceCheck, expectedCode: http.StatusInternalServerError, body: `{}`},
		{name: "create failed", err: fmt.Errorf("%w: %w", service.ErrOrderCreate, errors.New("db down")), expectedCode: http.StatusInternalServerError, body: `{}`},
		{name: "body too large", expectedCode: http.StatusBadRequest, body: strings.Repeat("x", 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			receiver := receiverFunc(func(ctx context.Context, payload []byte, sig string) (service.ReceiveResult, error) {
				called = true
				require.Equal(t, "sig", sig)
				return service.ReceiveResult{EventID: "evt"}, tt.err
			})
			router := NewRouter(NewHandler(receiver, nil, 32, zap.NewNop()), RouterConfig{}, nil)

			req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(tt.body))
			req.Header.Set(SignatureHeader, "sig")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, tt.expectedCode, rec.Code)
			require.Equal(t, len(tt.body) <= 32, called)
		})
	}
}

func TestWebhook_PanicRecovered(t *testing.T) {
	receiver := receiverFunc(func(context.Context, []byte, string) (service.ReceiveResult, error) {
		panic("boom")
	})
	router := NewRouter(NewHandler(receiver, nil, 0, zap.NewNop()), RouterConfig{}, zap.NewNop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestReadEndpoints(t *testing.T) {
	s := newStack(t)

	tests := []struct {
		name         string
		path         string
		expectedCode int
	}{
		{name: "order not found", path: "/orders/missing", expectedCode: http.StatusNotFound},
		{name: "order by payment not found", path: "/orders/by-payment/pi_missing", expectedCode: http.StatusNotFound},
		{name: "stock not found", path: "/inventory/c1/s1", expectedCode: http.StatusNotFound},
		{name: "health", path: "/health", expectedCode: http.StatusOK},
		{name: "metrics", path: "/metrics", expectedCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.Equal(t, tt.expectedCode, rec.Code)
		})
	}
}

func TestReadEndpoints_CORS(t *testing.T) {
	s := newStack(t)
	s.storage.SeedInventory("c1", "s1", 3)

	req := httptest.NewRequest(http.MethodGet, "/inventory/c1/s1", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	rec := s.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "https://shop.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/inventory/c1/s1", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = s.do(req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
