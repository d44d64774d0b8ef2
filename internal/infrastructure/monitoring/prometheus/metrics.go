// Package prometheus exports the operational metrics of the index builder,
// the similarity queries and the design evaluations.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the platform registers.  It satisfies
// index.BuildObserver, so the builder reports progress without importing
// this package.
type Metrics struct {
	buildChunks    prometheus.Counter
	buildRecords   prometheus.Counter
	buildSkipped   prometheus.Counter
	buildIndexed   prometheus.Gauge
	buildDuration  prometheus.Histogram
	queryDuration  *prometheus.HistogramVec
	queryNeighbors prometheus.Histogram
	evaluations    *prometheus.CounterVec
	evalDuration   prometheus.Histogram
	archiveBest    prometheus.Gauge
}

// New constructs and registers the collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		buildChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "antimet", Subsystem: "index",
			Name: "build_chunks_total",
			Help: "Chunks processed during index builds.",
		}),
		buildRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "antimet", Subsystem: "index",
			Name: "build_records_total",
			Help: "Compound records read during index builds.",
		}),
		buildSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "antimet", Subsystem: "index",
			Name: "build_skipped_total",
			Help: "Compounds skipped during index builds (featurization failures).",
		}),
		buildIndexed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "antimet", Subsystem: "index",
			Name: "indexed_fingerprints",
			Help: "Fingerprints in the most recently completed index.",
		}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "antimet", Subsystem: "index",
			Name:    "build_duration_seconds",
			Help:    "Wall time of completed index builds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "antimet", Subsystem: "index",
			Name:    "query_duration_seconds",
			Help:    "Latency of similarity queries by kind.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		queryNeighbors: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "antimet", Subsystem: "index",
			Name:    "query_neighbors",
			Help:    "Neighbors returned per similarity query.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "antimet", Subsystem: "design",
			Name: "evaluations_total",
			Help: "Candidate evaluations by outcome (scored, infeasible, failed).",
		}, []string{"outcome"}),
		evalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "antimet", Subsystem: "design",
			Name:    "evaluation_duration_seconds",
			Help:    "Latency of single candidate evaluations.",
			Buckets: prometheus.DefBuckets,
		}),
		archiveBest: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "antimet", Subsystem: "design",
			Name: "archive_best_fitness",
			Help: "Fitness of the best archived solution of the current run.",
		}),
	}
	reg.MustRegister(
		m.buildChunks, m.buildRecords, m.buildSkipped, m.buildIndexed, m.buildDuration,
		m.queryDuration, m.queryNeighbors,
		m.evaluations, m.evalDuration, m.archiveBest,
	)
	return m
}

// ChunkProcessed implements index.BuildObserver.
func (m *Metrics) ChunkProcessed(records int) {
	m.buildChunks.Inc()
	m.buildRecords.Add(float64(records))
}

// CompoundSkipped implements index.BuildObserver.
func (m *Metrics) CompoundSkipped() { m.buildSkipped.Inc() }

// BuildCompleted implements index.BuildObserver.
func (m *Metrics) BuildCompleted(indexed int, elapsed time.Duration) {
	m.buildIndexed.Set(float64(indexed))
	m.buildDuration.Observe(elapsed.Seconds())
}

// ObserveQuery records one similarity query.
func (m *Metrics) ObserveQuery(kind string, neighbors int, elapsed time.Duration) {
	m.queryDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	m.queryNeighbors.Observe(float64(neighbors))
}

// ObserveEvaluation records one candidate evaluation.
func (m *Metrics) ObserveEvaluation(outcome string, elapsed time.Duration) {
	m.evaluations.WithLabelValues(outcome).Inc()
	m.evalDuration.Observe(elapsed.Seconds())
}

// SetBestFitness records the best archived fitness of the running search.
func (m *Metrics) SetBestFitness(f float64) { m.archiveBest.Set(f) }
