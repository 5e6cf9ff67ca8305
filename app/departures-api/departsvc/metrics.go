package departsvc

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the web service's prometheus instruments on a private registry
type Collector struct {
	reg *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec // route, code labels
	RequestDuration *prometheus.HistogramVec

	PagesServed *prometheus.CounterVec // source label
}

// NewCollector creates and registers the web service's instruments
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "departures_api_requests_total",
			Help: "Total requests served per route and status code.",
		}, []string{"route", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "departures_api_request_duration_seconds",
			Help:    "Request handling duration per route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		PagesServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "departures_api_pages_served_total",
			Help: "Total departures pages served per data source tier.",
		}, []string{"source"}),
	}

	reg.MustRegister(c.RequestsTotal, c.RequestDuration, c.PagesServed)
	return c
}

// Handler exposes the private registry for the /metrics endpoint
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
