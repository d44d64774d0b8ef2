package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_BuildObserver(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ChunkProcessed(100)
	m.ChunkProcessed(42)
	m.CompoundSkipped()
	m.BuildCompleted(140, 3*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.buildChunks))
	assert.Equal(t, 142.0, testutil.ToFloat64(m.buildRecords))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.buildSkipped))
	assert.Equal(t, 140.0, testutil.ToFloat64(m.buildIndexed))
}

func TestMetrics_Evaluations(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveEvaluation("scored", 10*time.Millisecond)
	m.ObserveEvaluation("infeasible", 5*time.Millisecond)
	m.ObserveEvaluation("scored", 12*time.Millisecond)
	m.SetBestFitness(0.8)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.evaluations.WithLabelValues("scored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evaluations.WithLabelValues("infeasible")))
	assert.Equal(t, 0.8, testutil.ToFloat64(m.archiveBest))
}
