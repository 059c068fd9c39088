package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/oggyb/muzz-match/internal/metrics"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.Decision("like")
		m.MatchCreated()
		m.Rewind("applied")
		m.MessagesMarkedRead(3)
	})
}

func TestCounters(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.Decision("like")
	m.Decision("like")
	m.Decision("pass")
	m.MatchConflict()
	m.MessagesMarkedRead(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Decisions.WithLabelValues("like")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Decisions.WithLabelValues("pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MatchConflicts))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesRead))
}
