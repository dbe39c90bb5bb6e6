package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics are registered per server instance so tests and reloads each get
// a clean registry.
type metrics struct {
	registry *prometheus.Registry

	requests            *prometheus.CounterVec
	duration            *prometheus.HistogramVec
	responseErrors      *prometheus.CounterVec
	activeSubscriptions prometheus.Gauge
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &metrics{
		registry: reg,
		requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "qiufen_requests_total",
			Help: "Total number of GraphQL requests, by operation kind and HTTP status.",
		}, []string{"kind", "status"}),
		duration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qiufen_request_duration_seconds",
			Help:    "Duration of GraphQL requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		responseErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "qiufen_response_errors_total",
			Help: "Total number of error entries returned in GraphQL responses, by code.",
		}, []string{"code"}),
		activeSubscriptions: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "qiufen_active_subscriptions",
			Help: "Number of subscriptions currently streaming.",
		}),
	}
}

func (m *metrics) observe(kind string, status int, d time.Duration, resp *Response) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(kind, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(kind).Observe(d.Seconds())
	if resp == nil {
		return
	}
	for _, e := range resp.Errors {
		code, _ := e.Extensions["code"].(string)
		if code == "" {
			code = "UNKNOWN"
		}
		m.responseErrors.WithLabelValues(code).Inc()
	}
}

func (m *metrics) subscriptionStarted() {
	if m != nil {
		m.activeSubscriptions.Inc()
	}
}

func (m *metrics) subscriptionEnded() {
	if m != nil {
		m.activeSubscriptions.Dec()
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
