package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fulfillment"

// Результаты обработки webhook
const (
	ResultProcessed = "processed"
	ResultDuplicate = "duplicate"
	ResultIgnored   = "ignored"
	ResultRejected  = "rejected"
	ResultError     = "error"

	OutboxSent   = "sent"
	OutboxFailed = "failed"
)

// Metrics содержит prometheus-коллекторы сервиса.
// Создаётся один раз в app и передаётся в сервисы, глобального реестра нет
type Metrics struct {
	WebhookEvents      *prometheus.CounterVec
	WebhookDuration    prometheus.Histogram
	OrdersMaterialized prometheus.Counter
	OrdersCancelled    prometheus.Counter
	InventoryFailures  *prometheus.CounterVec
	Diagnostics        *prometheus.CounterVec
	OutboxPublished    *prometheus.CounterVec
	StockCache         *prometheus.CounterVec
}

// New создаёт и регистрирует коллекторы в reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Payment webhook events by kind and result",
		}, []string{"kind", "result"}),
		WebhookDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_duration_seconds",
			Help:      "Payment webhook processing latency",
			Buckets:   prometheus.DefBuckets,
		}),
		OrdersMaterialized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_materialized_total",
			Help:      "Orders created from succeeded payments",
		}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_cancelled_total",
			Help:      "Orders cancelled by failed or canceled payments",
		}),
		InventoryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_adjustment_failures_total",
			Help:      "Per-item inventory adjustment failures",
		}, []string{"stage"}),
		Diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Diagnostic records by kind",
		}, []string{"kind"}),
		OutboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_total",
			Help:      "Outbox events by publish result",
		}, []string{"result"}),
		StockCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_cache_requests_total",
			Help:      "Stock cache lookups by result",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.WebhookEvents,
		m.WebhookDuration,
		m.OrdersMaterialized,
		m.OrdersCancelled,
		m.InventoryFailures,
		m.Diagnostics,
		m.OutboxPublished,
		m.StockCache,
	)
	return m
}

// NewNop возвращает коллекторы без регистрации (для тестов и CLI)
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler отдаёт метрики из gatherer для /metrics
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
