package poller

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the poller's prometheus instruments on a private registry
type Collector struct {
	reg *prometheus.Registry

	FeedFetches  *prometheus.CounterVec // mode, feed labels
	FeedFailures *prometheus.CounterVec

	RecordsCached *prometheus.GaugeVec

	CyclesRun     prometheus.Counter
	CyclesSkipped prometheus.Counter
	CycleDuration prometheus.Histogram

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
}

// NewCollector creates and registers the poller's instruments
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rt_poller_feed_fetches_total",
			Help: "Total feed retrievals attempted per mode and feed type.",
		}, []string{"mode", "feed"}),
		FeedFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rt_poller_feed_failures_total",
			Help: "Total feed retrievals that failed per mode and feed type.",
		}, []string{"mode", "feed"}),
		RecordsCached: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rt_poller_records_cached",
			Help: "Records written to the cache on the last cycle per mode and feed type.",
		}, []string{"mode", "feed"}),
		CyclesRun: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rt_poller_cycles_total",
			Help: "Total poll cycles run.",
		}),
		CyclesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rt_poller_cycles_skipped_total",
			Help: "Total poll cycles skipped because another poller held the lock.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rt_poller_cycle_duration_seconds",
			Help:    "Duration of complete poll cycles.",
			Buckets: prometheus.DefBuckets,
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rt_poller_nats_published_total",
			Help: "Total cycle results published over NATS.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rt_poller_nats_publish_errors_total",
			Help: "Total cycle result publications that failed.",
		}),
	}

	reg.MustRegister(
		c.FeedFetches,
		c.FeedFailures,
		c.RecordsCached,
		c.CyclesRun,
		c.CyclesSkipped,
		c.CycleDuration,
		c.NATSPublished,
		c.NATSPublishErrs,
	)
	return c
}

// Handler exposes the private registry for a /metrics endpoint
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
