package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for the moderation loop.
type Collector struct {
	registry *prometheus.Registry

	commentsAnalyzed prometheus.Counter
	commentsRemoved  prometheus.Counter
	commentsSkipped  prometheus.Counter
	verdicts         *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	providerErrors   *prometheus.CounterVec
	ledgerPublishes  prometheus.Counter
	pollCycles       prometheus.Counter
}

// NewCollector constructs a collector backed by a private registry.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		commentsAnalyzed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "modwatch",
			Name:      "comments_analyzed_total",
			Help:      "Total number of comments sent to the LLM for analysis.",
		}),
		commentsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "modwatch",
			Name:      "comments_removed_total",
			Help:      "Total number of comments removed.",
		}),
		commentsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "modwatch",
			Name:      "comments_skipped_total",
			Help:      "Total number of comments skipped without analysis.",
		}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modwatch",
			Name:      "verdicts_total",
			Help:      "Analysis outcomes by verdict.",
		}, []string{"verdict"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "modwatch",
			Name:      "provider_latency_seconds",
			Help:      "Latency distribution for LLM provider calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modwatch",
			Name:      "provider_errors_total",
			Help:      "Failed LLM provider calls by provider.",
		}, []string{"provider"}),
		ledgerPublishes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "modwatch",
			Name:      "ledger_publishes_total",
			Help:      "Successful transparency ledger publications.",
		}),
		pollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "modwatch",
			Name:      "poll_cycles_total",
			Help:      "Completed poll cycles against the platform.",
		}),
	}

	collectors := []prometheus.Collector{
		c.commentsAnalyzed,
		c.commentsRemoved,
		c.commentsSkipped,
		c.verdicts,
		c.providerLatency,
		c.providerErrors,
		c.ledgerPublishes,
		c.pollCycles,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// CommentAnalyzed records one analysis with its verdict.
func (c *Collector) CommentAnalyzed(verdict string) {
	c.commentsAnalyzed.Inc()
	c.verdicts.WithLabelValues(verdict).Inc()
}

// CommentRemoved records a removal.
func (c *Collector) CommentRemoved() {
	c.commentsRemoved.Inc()
}

// CommentSkipped records a comment that was not analyzed.
func (c *Collector) CommentSkipped() {
	c.commentsSkipped.Inc()
}

// ProviderCall records a provider round trip.
func (c *Collector) ProviderCall(provider string, duration time.Duration, err error) {
	c.providerLatency.WithLabelValues(provider).Observe(duration.Seconds())
	if err != nil {
		c.providerErrors.WithLabelValues(provider).Inc()
	}
}

// LedgerPublished records a successful wiki publication.
func (c *Collector) LedgerPublished() {
	c.ledgerPublishes.Inc()
}

// PollCycle records a completed poll cycle.
func (c *Collector) PollCycle() {
	c.pollCycles.Inc()
}
