package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry             *prometheus.Registry
	notificationsTotal   *prometheus.CounterVec
	notificationDuration *prometheus.HistogramVec
	activeNotifications  prometheus.Gauge
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobboard_worker_lead_notifications_total",
			Help: "Total lead notifications by lead kind and outcome.",
		}, []string{"kind", "outcome"}),
		notificationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobboard_worker_lead_notification_duration_seconds",
			Help:    "Time spent delivering one lead notification.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind", "outcome"}),
		activeNotifications: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jobboard_worker_active_notifications",
			Help: "Lead notifications currently being delivered.",
		}),
	}

	registry.MustRegister(
		m.notificationsTotal,
		m.notificationDuration,
		m.activeNotifications,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
