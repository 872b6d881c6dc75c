package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments one Engine with counters and histograms registered
// against a private registry, never prometheus.DefaultRegisterer, so
// constructing more than one Engine in the same process (every engine test
// does this) never panics on a duplicate registration.
type Metrics struct {
	registry *prometheus.Registry

	queriesTotal    prometheus.Counter
	queryDuration   prometheus.Histogram
	rowsTouched     prometheus.Counter
	commitsApplied  prometheus.Counter
	commitRejected  prometheus.Counter
}

// NewMetrics builds a fresh, independently-registered Metrics instance.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		queriesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "queryengine_queries_total",
			Help: "Total statements executed via Engine.ExecuteQuery.",
		}),
		queryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "queryengine_query_duration_seconds",
			Help:    "Wall-clock duration of Engine.ExecuteQuery calls.",
			Buckets: prometheus.DefBuckets,
		}),
		rowsTouched: f.NewCounter(prometheus.CounterOpts{
			Name: "queryengine_rows_touched_total",
			Help: "Rows returned or mutated across all executed statements.",
		}),
		commitsApplied: f.NewCounter(prometheus.CounterOpts{
			Name: "queryengine_commits_applied_total",
			Help: "Commit gate calls that applied their deltas successfully.",
		}),
		commitRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "queryengine_commits_rejected_total",
			Help: "Commit gate calls rejected by validation or a version mismatch.",
		}),
	}
}

// Registry exposes the private registry, e.g. for serving /metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// startQuery records one ExecuteQuery call's latency; callers defer the
// returned function.
func (m *Metrics) startQuery() func() {
	m.queriesTotal.Inc()
	start := time.Now()
	return func() {
		m.queryDuration.Observe(time.Since(start).Seconds())
	}
}

// observeResult counts rows a finished query returned or mutated.
func (m *Metrics) observeResult(r *QueryResult) {
	m.rowsTouched.Add(float64(len(r.Rows) + r.AffectedCount))
}

// observeCommit records a successfully applied commit.
func (m *Metrics) observeCommit() { m.commitsApplied.Inc() }

// observeRejection records a commit the gate refused to apply.
func (m *Metrics) observeRejection() { m.commitRejected.Inc() }
