package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("sales:quotes.expire").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("sales:quotes.expire").End(boom), boom)

	skipped := m.Track("sales:quotes.expire")
	skipped.Skip()
	require.NoError(t, skipped.End(nil))

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("sales:quotes.expire", statusSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("sales:quotes.expire", statusFailure)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("sales:quotes.expire", statusSkipped)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("sales:quotes.expire")))
	require.Positive(t, testutil.ToFloat64(m.lastSuccess.WithLabelValues("sales:quotes.expire")))
}

func TestDriftCounterIgnoresNonPositive(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddDrift(0)
	m.AddDrift(-2)
	m.AddDrift(3)
	require.Equal(t, 3.0, testutil.ToFloat64(m.drift))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	tracker := m.Track("inventory:stock.reconcile")
	tracker.Skip()
	require.NoError(t, tracker.End(nil))
	m.AddDrift(5)
}
