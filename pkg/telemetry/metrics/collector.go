package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config configures the metrics collector.
type Config struct {
	// Namespace is the metric name prefix. Default: "lantern".
	Namespace string

	// DurationBuckets are the histogram buckets for evaluation latency.
	// Defaults target a low-latency read path (100µs to ~5s).
	DurationBuckets []float64
}

// Collector owns every Prometheus metric the evaluation path records,
// registered against a private registry.
type Collector struct {
	registry *prometheus.Registry

	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	cacheHitsTotal     prometheus.Counter
	cacheMissesTotal   prometheus.Counter
	cacheEntries       prometheus.Gauge
	storeErrorsTotal   *prometheus.CounterVec
	killSwitchTotal    *prometheus.CounterVec
	rolloutRejections  *prometheus.CounterVec
}

// NewCollector creates and registers all metrics. A nil registry creates a
// private one.
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if cfg.Namespace == "" {
		cfg.Namespace = "lantern"
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5}
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,

		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "evaluations_total",
				Help:      "Total number of flag evaluations by result and source",
			},
			[]string{"result", "source"},
		),

		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of flag evaluations in seconds",
				Buckets:   cfg.DurationBuckets,
			},
		),

		cacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of decision cache hits",
			},
		),

		cacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of decision cache misses",
			},
		),

		cacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "cache_entries",
				Help:      "Current number of entries in the decision cache",
			},
		),

		storeErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "store_errors_total",
				Help:      "Total number of classified flag store errors",
			},
			[]string{"operation", "class"},
		),

		killSwitchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "kill_switch_engaged_total",
				Help:      "Total number of evaluations short-circuited by a kill-switch",
			},
			[]string{"scope"},
		),

		rolloutRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "rollout_rejections_total",
				Help:      "Total number of rollout evaluations rejected, by gate",
			},
			[]string{"gate"},
		),
	}

	registry.MustRegister(
		c.evaluationsTotal,
		c.evaluationDuration,
		c.cacheHitsTotal,
		c.cacheMissesTotal,
		c.cacheEntries,
		c.storeErrorsTotal,
		c.killSwitchTotal,
		c.rolloutRejections,
	)

	return c
}

// RecordEvaluation records a completed evaluation.
//
// Parameters:
//   - enabled: the decision returned to the caller
//   - source: where it came from ("cache", "database", "kill_switch",
//     "fallback")
//   - duration: end-to-end evaluation latency
func (c *Collector) RecordEvaluation(enabled bool, source string, duration time.Duration) {
	result := "disabled"
	if enabled {
		result = "enabled"
	}
	c.evaluationsTotal.WithLabelValues(result, source).Inc()
	c.evaluationDuration.Observe(duration.Seconds())
}

// RecordCacheHit records a decision cache hit.
func (c *Collector) RecordCacheHit() {
	c.cacheHitsTotal.Inc()
}

// RecordCacheMiss records a decision cache miss.
func (c *Collector) RecordCacheMiss() {
	c.cacheMissesTotal.Inc()
}

// SetCacheEntries updates the cache size gauge.
func (c *Collector) SetCacheEntries(n int) {
	c.cacheEntries.Set(float64(n))
}

// RecordStoreError records a classified store failure.
func (c *Collector) RecordStoreError(operation, class string) {
	c.storeErrorsTotal.WithLabelValues(operation, class).Inc()
}

// RecordKillSwitch records an evaluation forced off by a kill-switch.
func (c *Collector) RecordKillSwitch(scope string) {
	c.killSwitchTotal.WithLabelValues(scope).Inc()
}

// RecordRolloutRejection records a rollout rejection by gate.
func (c *Collector) RecordRolloutRejection(gate string) {
	c.rolloutRejections.WithLabelValues(gate).Inc()
}

// Registry returns the collector's registry, for tests and for mounting
// additional collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
