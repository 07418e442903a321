// Package metrics holds the Prometheus collectors of the query pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stage names used as label values.
const (
	StageRetrieval  = "retrieval"
	StageGeneration = "generation"
)

// Metrics groups the pipeline collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	queries            *prometheus.CounterVec
	stageDuration      *prometheus.HistogramVec
	stageFailures      *prometheus.CounterVec
	documentsRetrieved prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rag",
			Name:      "queries_total",
			Help:      "Queries answered, by terminal outcome.",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rag",
			Name:      "stage_duration_seconds",
			Help:      "Latency of the retrieval and generation calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rag",
			Name:      "stage_failures_total",
			Help:      "Backend failures recovered locally, by stage.",
		}, []string{"stage"}),
		documentsRetrieved: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rag",
			Name:      "documents_retrieved",
			Help:      "Number of documents returned per retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.queries, m.stageDuration, m.stageFailures, m.documentsRetrieved)
	}
	return m
}

// ObserveQuery counts a finished query.
func (m *Metrics) ObserveQuery(outcome string) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(outcome).Inc()
}

// ObserveStage records one backend call.
func (m *Metrics) ObserveStage(stage string, start time.Time, failed bool) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if failed {
		m.stageFailures.WithLabelValues(stage).Inc()
	}
}

// ObserveDocuments records the size of a retrieval result.
func (m *Metrics) ObserveDocuments(n int) {
	if m == nil {
		return
	}
	m.documentsRetrieved.Observe(float64(n))
}
