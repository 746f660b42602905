// Package metrics registers the Prometheus instrumentation layered onto
// collector and snapshot calls, per SPEC_FULL.md §4.G/§10. Nothing in
// spec.md names a metrics component; this is purely the ambient
// observability the teacher pack's services (kubernetes, rdk) always
// carry alongside their actual logic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors bundles the counters/histograms this module exposes. A
// zero-value Collectors is unusable; use NewCollectors.
type Collectors struct {
	triggerTotal      *prometheus.CounterVec
	collectionSeconds prometheus.Histogram
	snapshotFailed    prometheus.Counter
	snapshotGroups    prometheus.Histogram
}

// NewCollectors builds and registers a Collectors against reg. Passing a
// fresh prometheus.NewRegistry() (rather than the global default
// registry) is recommended for anything other than a single-process
// CLI, so tests and multiple Collectors instances in one binary don't
// collide on metric names.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		triggerTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "threadstack",
			Name:      "trigger_total",
			Help:      "Count of TriggerAsync calls, labeled by outcome.",
		}, []string{"outcome"}),
		collectionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "threadstack",
			Name:      "collection_seconds",
			Help:      "Wall time spent in AwaitCollection, regardless of outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		snapshotFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "threadstack",
			Name:      "snapshot_failed_threads_total",
			Help:      "Cumulative count of threads that failed to respond across all snapshots.",
		}),
		snapshotGroups: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "threadstack",
			Name:      "snapshot_groups",
			Help:      "Number of distinct stack groups produced per snapshot.",
			Buckets:   prometheus.LinearBuckets(1, 2, 10),
		}),
	}

	reg.MustRegister(c.triggerTotal, c.collectionSeconds, c.snapshotFailed, c.snapshotGroups)
	return c
}

// ObserveTrigger records one TriggerAsync outcome: "ok" or "error".
func (c *Collectors) ObserveTrigger(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	c.triggerTotal.WithLabelValues(outcome).Inc()
}

// ObserveCollection records how long one AwaitCollection call took.
func (c *Collectors) ObserveCollection(seconds float64) {
	c.collectionSeconds.Observe(seconds)
}

// ObserveSnapshot records a completed SnapshotAll's failure count and
// group count.
func (c *Collectors) ObserveSnapshot(numFailed, numGroups int) {
	c.snapshotFailed.Add(float64(numFailed))
	c.snapshotGroups.Observe(float64(numGroups))
}
