package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveQuery("answered")
	m.ObserveQuery("answered")
	m.ObserveQuery("no_evidence")
	m.ObserveStage(StageRetrieval, time.Now(), false)
	m.ObserveStage(StageGeneration, time.Now(), true)
	m.ObserveDocuments(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.queries.WithLabelValues("answered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues("no_evidence")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageFailures.WithLabelValues(StageGeneration)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.stageFailures.WithLabelValues(StageRetrieval)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.stageDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveQuery("answered")
		m.ObserveStage(StageRetrieval, time.Now(), true)
		m.ObserveDocuments(1)
	})
}
