package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	platformobservability "github.com/shestoi/cocktail-delivery/platform/observability"
)

// RouterConfig дополнительные endpoints и настройки роутера
type RouterConfig struct {
	AllowedOrigins []string     // CORS для витрины, только GET
	Health         http.Handler // GET /health
	Metrics        http.Handler // GET /metrics
}

// NewRouter создаёт и настраивает HTTP роутер fulfillment.
// logger используется для observability HTTP middleware (trace_id в логах)
func NewRouter(handler *Handler, cfg RouterConfig, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	if logger != nil {
		router.Use(platformobservability.HTTPMiddleware("fulfillment", logger))
	}
	// паника в обработчике превращается в 500, процесс продолжает работу
	router.Use(middleware.Recoverer)

	router.Post("/webhooks/payments", handler.PostPaymentWebhook)

	router.Group(func(r chi.Router) {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet},
		}).Handler)

		r.Get("/orders/{id}", handler.GetOrder)
		r.Get("/orders/by-payment/{paymentReference}", handler.GetOrderByPaymentReference)
		r.Get("/inventory/{cocktailId}/{sizeId}", handler.GetStock)
	})

	if cfg.Health != nil {
		router.Method(http.MethodGet, "/health", cfg.Health)
	}
	if cfg.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	return router
}
