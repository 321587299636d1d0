// Package metrics collects and exposes Prometheus metrics for the
// publish pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector registers and updates the bot's metrics.
type Collector struct {
	registry *prometheus.Registry

	published       prometheus.Counter
	publishErrors   prometheus.Counter
	fetchErrors     prometheus.Counter
	aiFallbacks     prometheus.Counter
	imageFallbacks  prometheus.Counter
	stateSaveErrors prometheus.Counter
	rateDeferred    prometheus.Counter
	cycleDuration   prometheus.Histogram
}

// NewCollector creates a Collector on a private registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsbot_published_total",
			Help: "Entries successfully published to the channel.",
		}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsbot_publish_errors_total",
			Help: "Publish attempts that failed and will be retried.",
		}),
		fetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsbot_fetch_errors_total",
			Help: "Per-feed fetch failures.",
		}),
		aiFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsbot_ai_fallbacks_total",
			Help: "Posts published with original text after a rewrite failure.",
		}),
		imageFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsbot_image_fallbacks_total",
			Help: "Posts where the configured image source was unavailable.",
		}),
		stateSaveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsbot_state_save_errors_total",
			Help: "Failed state file writes. Progress since the last flush is at risk.",
		}),
		rateDeferred: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsbot_rate_deferred_total",
			Help: "Candidates deferred to a later cycle by the rate limiter.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newsbot_cycle_duration_seconds",
			Help:    "Duration of one full poll cycle.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	c.registry.MustRegister(
		c.published,
		c.publishErrors,
		c.fetchErrors,
		c.aiFallbacks,
		c.imageFallbacks,
		c.stateSaveErrors,
		c.rateDeferred,
		c.cycleDuration,
	)
	return c
}

// IncPublished counts a successful publish.
func (c *Collector) IncPublished() { c.published.Inc() }

// IncPublishError counts a failed publish attempt.
func (c *Collector) IncPublishError() { c.publishErrors.Inc() }

// IncFetchError counts a per-feed fetch failure.
func (c *Collector) IncFetchError() { c.fetchErrors.Inc() }

// IncAIFallback counts a rewrite failure that fell back to feed text.
func (c *Collector) IncAIFallback() { c.aiFallbacks.Inc() }

// IncImageFallback counts a degraded image attachment.
func (c *Collector) IncImageFallback() { c.imageFallbacks.Inc() }

// IncStateSaveError counts a failed state flush.
func (c *Collector) IncStateSaveError() { c.stateSaveErrors.Inc() }

// IncRateDeferred counts a candidate held back by the rate gate.
func (c *Collector) IncRateDeferred() { c.rateDeferred.Inc() }

// ObserveCycle records the duration of one poll cycle.
func (c *Collector) ObserveCycle(d time.Duration) { c.cycleDuration.Observe(d.Seconds()) }

// Handler returns the HTTP handler serving the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	return mux
}
