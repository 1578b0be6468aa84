package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector the server exposes on /metrics
type Registry struct {
	reg *prometheus.Registry

	CheckResults      *prometheus.CounterVec
	WebhookDeliveries *prometheus.CounterVec
	WebhookDropped    prometheus.Counter
	LicensesByState   *prometheus.GaugeVec
	HTTPRequests      *prometheus.CounterVec
}

// New builds a registry with the license server collectors registered.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		CheckResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keyforge",
			Name:      "license_checks_total",
			Help:      "License checks by outcome code.",
		}, []string{"outcome"}),
		WebhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keyforge",
			Name:      "webhook_deliveries_total",
			Help:      "Webhook delivery attempts by result.",
		}, []string{"result"}),
		WebhookDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "keyforge",
			Name:      "webhook_dropped_total",
			Help:      "Webhook events dropped because the queue was full.",
		}),
		LicensesByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "keyforge",
			Name:      "licenses",
			Help:      "Licenses by derived state, refreshed by the stats job.",
		}, []string{"state"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keyforge",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
	}

	r.reg.MustRegister(
		r.CheckResults,
		r.WebhookDeliveries,
		r.WebhookDropped,
		r.LicensesByState,
		r.HTTPRequests,
		prometheus.NewGoCollector(),
	)
	return r
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
