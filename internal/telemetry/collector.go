// Package telemetry exports build statistics as Prometheus metrics.
//
// A Collector is an engine.Observer: attach it with engine.WithObserver
// and every finished build or estimate is counted. Metrics are exposed
// over HTTP with Handler, or written once to a node-exporter textfile
// with WriteTextfile for one-shot CLI runs.
//
// Metrics (namespace "sprig", subsystem "engine" by default):
//   - builds_total{kind,outcome}: finished builds and estimates
//   - objects_total{label}: emitted objects per label
//   - rejected_total{reason}: terminals dropped by size, references dropped by depth
//   - fallbacks_total: fallback rules built
//   - rng_draws_total: 32-bit words drawn from the generator
//   - build_objects: objects per build
//   - build_max_depth: deepest recursion per build
package telemetry

import (
	"net/http"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/sprig/internal/engine"
)

// OtherLabel replaces object labels once the label limit is reached.
const OtherLabel = "other"

// Config controls metric naming and label cardinality.
type Config struct {
	Namespace string
	Subsystem string

	// MaxLabels bounds the distinct values of the label dimension.
	MaxLabels int

	ObjectBuckets []float64
	DepthBuckets  []float64
}

// Collector records engine results.
type Collector struct {
	registry *prometheus.Registry
	labels   *CardinalityLimiter

	builds    *prometheus.CounterVec
	objects   *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	fallbacks prometheus.Counter
	draws     prometheus.Counter

	buildObjects  prometheus.Histogram
	buildMaxDepth prometheus.Histogram
}

// NewCollector creates a collector and registers its metrics with
// registry. If registry is nil a fresh one is created.
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "sprig"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "engine"
	}
	if cfg.MaxLabels <= 0 {
		cfg.MaxLabels = 256
	}
	if len(cfg.ObjectBuckets) == 0 {
		// 1 to ~1M objects
		cfg.ObjectBuckets = prometheus.ExponentialBuckets(1, 4, 11)
	}
	if len(cfg.DepthBuckets) == 0 {
		cfg.DepthBuckets = []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000, 10000}
	}

	c := &Collector{
		registry: registry,
		labels:   NewCardinalityLimiter(cfg.MaxLabels),

		builds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "builds_total",
				Help:      "Total number of finished builds and estimates",
			},
			[]string{"kind", "outcome"},
		),
		objects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "objects_total",
				Help:      "Total number of emitted objects by label",
			},
			[]string{"label"},
		),
		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rejected_total",
				Help:      "Total number of objects or rule references dropped by policy",
			},
			[]string{"reason"},
		),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fallbacks_total",
			Help:      "Total number of fallback rules built at maxdepth",
		}),
		draws: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "rng_draws_total",
			Help:      "Total number of 32-bit words drawn from the random generator",
		}),
		buildObjects: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "build_objects",
			Help:      "Objects emitted per build",
			Buckets:   cfg.ObjectBuckets,
		}),
		buildMaxDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "build_max_depth",
			Help:      "Deepest rule recursion reached per build",
			Buckets:   cfg.DepthBuckets,
		}),
	}

	registry.MustRegister(
		c.builds,
		c.objects,
		c.rejected,
		c.fallbacks,
		c.draws,
		c.buildObjects,
		c.buildMaxDepth,
	)
	return c
}

// ObserveBuild records one finished build or estimate.
//
// Implements engine.Observer.
func (c *Collector) ObserveBuild(r *engine.Result) {
	kind := "build"
	if r.Estimate {
		kind = "estimate"
	}
	c.builds.WithLabelValues(kind, Outcome(r.Stats)).Inc()

	// Estimates count objects without emitting them.
	if r.Estimate {
		return
	}

	labels := make([]string, 0, len(r.Labels))
	for label := range r.Labels {
		labels = append(labels, label)
	}
	// Sorted, so the labels that fit under the limit do not depend on map order.
	sort.Strings(labels)
	for _, label := range labels {
		n := r.Labels[label]
		if !c.labels.Allow(label) {
			label = OtherLabel
		}
		c.objects.WithLabelValues(label).Add(float64(n))
	}
	c.rejected.WithLabelValues("size").Add(float64(r.Stats.SizeRejected))
	c.rejected.WithLabelValues("depth").Add(float64(r.Stats.DepthExceeded))
	c.fallbacks.Add(float64(r.Stats.Fallbacks))
	c.draws.Add(float64(r.Draws))
	c.buildObjects.Observe(float64(r.Stats.Emitted))
	c.buildMaxDepth.Observe(float64(r.Stats.MaxDepth))
}

// Outcome classifies how a build ended: "stopped" by the caller,
// "capped" at maxobjects, or "complete".
func Outcome(st engine.Stats) string {
	switch {
	case st.Stopped:
		return "stopped"
	case st.CapReached:
		return "capped"
	default:
		return "complete"
	}
}

// Registry returns the registry the metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler serving the collector's registry in
// the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// WriteTextfile writes the current metrics to path in the text format
// read by the node exporter's textfile collector. The file is replaced
// atomically.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of distinct label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter admitting at most
// maxCardinality distinct values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value may be used as a label value: it was seen
// before, or the limit has not been reached.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
