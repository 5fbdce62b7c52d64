package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	Requests        *prometheus.CounterVec
	RequestDuration prometheus.Histogram

	RefreshTotal  prometheus.Counter
	RefreshErrors prometheus.Counter
	FeedTimestamp prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		reg: reg,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arrivals_http_requests_total",
			Help: "HTTP requests served, by handler and status.",
		}, []string{"handler", "status"}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arrivals_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}),
		RefreshTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arrivals_realtime_refresh_total",
			Help: "Realtime feed refresh attempts.",
		}),
		RefreshErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arrivals_realtime_refresh_errors_total",
			Help: "Realtime feed refreshes that failed.",
		}),
		FeedTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arrivals_realtime_feed_timestamp",
			Help: "Header timestamp of the current realtime snapshot.",
		}),
	}

	reg.MustRegister(
		m.Requests,
		m.RequestDuration,
		m.RefreshTotal,
		m.RefreshErrors,
		m.FeedTimestamp,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
