// Package metrics exposes Prometheus instrumentation for the acquisition and
// enrichment pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline collects counters and gauges for the launch pipeline on a private
// registry.
type Pipeline struct {
	registry *prometheus.Registry

	fetchAttempts  *prometheus.CounterVec
	fetchFailures  prometheus.Counter
	enrichments    *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	queueRejected  prometheus.Counter
	queueRunning   prometheus.Gauge
	queueWaiting   prometheus.Gauge
	launchUpdates  prometheus.Counter
	milestoneFires prometheus.Counter
}

// NewPipeline constructs the collector with all metrics registered.
func NewPipeline() (*Pipeline, error) {
	registry := prometheus.NewRegistry()

	p := &Pipeline{
		registry: registry,
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "launchfeed",
			Subsystem: "fetch",
			Name:      "attempts_total",
			Help:      "Launch page fetch attempts, split by first try vs retry.",
		}, []string{"kind"}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "launchfeed",
			Subsystem: "fetch",
			Name:      "failures_total",
			Help:      "Fetch cycles that surfaced an error past the retry budget.",
		}),
		enrichments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "launchfeed",
			Subsystem: "enrichment",
			Name:      "results_total",
			Help:      "Enrichment resolutions by outcome (fresh, cached, degraded).",
		}, []string{"outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "launchfeed",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by entry kind and hit/miss result.",
		}, []string{"kind", "result"}),
		queueRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "launchfeed",
			Subsystem: "queue",
			Name:      "rejected_total",
			Help:      "Submissions rejected because the waiting room was full.",
		}),
		queueRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "launchfeed",
			Subsystem: "queue",
			Name:      "running",
			Help:      "Operations currently holding a concurrency slot.",
		}),
		queueWaiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "launchfeed",
			Subsystem: "queue",
			Name:      "waiting",
			Help:      "Callers parked in the FIFO waiting room.",
		}),
		launchUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "launchfeed",
			Subsystem: "milestone",
			Name:      "updates_total",
			Help:      "Milestone re-checks that detected a material change.",
		}),
		milestoneFires: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "launchfeed",
			Subsystem: "milestone",
			Name:      "fires_total",
			Help:      "Milestone timers that fired.",
		}),
	}

	collectors := []prometheus.Collector{
		p.fetchAttempts, p.fetchFailures, p.enrichments, p.cacheLookups,
		p.queueRejected, p.queueRunning, p.queueWaiting,
		p.launchUpdates, p.milestoneFires,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Handler returns the scrape endpoint for the private registry.
func (p *Pipeline) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Pipeline) FetchAttempt(isRetry bool) {
	kind := "first"
	if isRetry {
		kind = "retry"
	}
	p.fetchAttempts.WithLabelValues(kind).Inc()
}

func (p *Pipeline) FetchFailure() {
	p.fetchFailures.Inc()
}

// Enrichment outcomes used by the orchestrator.
const (
	EnrichmentFresh    = "fresh"
	EnrichmentCached   = "cached"
	EnrichmentDegraded = "degraded"
)

func (p *Pipeline) EnrichmentResult(outcome string) {
	p.enrichments.WithLabelValues(outcome).Inc()
}

func (p *Pipeline) CacheLookup(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cacheLookups.WithLabelValues(kind, result).Inc()
}

func (p *Pipeline) QueueRejected() {
	p.queueRejected.Inc()
}

func (p *Pipeline) SetQueueDepth(running, waiting int) {
	p.queueRunning.Set(float64(running))
	p.queueWaiting.Set(float64(waiting))
}

func (p *Pipeline) LaunchUpdated() {
	p.launchUpdates.Inc()
}

func (p *Pipeline) MilestoneFired() {
	p.milestoneFires.Inc()
}
