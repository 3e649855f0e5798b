// Package metrics собирает метрики сервера в отдельном prometheus реестре.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tripsync"

// Metrics метрики HTTP слоя, потока изменений и push уведомлений
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	DocumentWrites *prometheus.CounterVec

	FeedSubscribers   prometheus.Gauge
	FeedBatches       prometheus.Counter
	FeedSlowConsumers prometheus.Counter

	PushNotifications *prometheus.CounterVec
}

// New создает метрики и регистрирует их в новом реестре
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "code"}),

		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method", "route"}),

		DocumentWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_writes_total",
			Help:      "Committed document changes by kind",
		}, []string{"kind"}),

		FeedSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_subscribers",
			Help:      "Current number of change feed subscribers",
		}),

		FeedBatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_batches_total",
			Help:      "Snapshot batches delivered to subscribers",
		}),

		FeedSlowConsumers: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_slow_consumers_total",
			Help:      "Subscriptions terminated because their queue was full",
		}),

		PushNotifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_notifications_total",
			Help:      "Push notifications by result",
		}, []string{"result"}),
	}
}

// Handler отдает метрики в формате prometheus
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry реестр метрик, используется в тестах
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
