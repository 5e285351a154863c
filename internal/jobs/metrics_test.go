package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("forecast_warmup").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("forecast_warmup").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("forecast_warmup", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("forecast_warmup", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("forecast_warmup")))
}

func TestCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddMaterialized("optimistic", 12)
	m.AddMaterialized("optimistic", 0)
	m.AddWarmed(6)

	require.Equal(t, 12.0, testutil.ToFloat64(m.materialized.WithLabelValues("optimistic")))
	require.Equal(t, 6.0, testutil.ToFloat64(m.warmed))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AddMaterialized("optimistic", 3)
	m.AddWarmed(1)
	require.NoError(t, m.Track("noop").End(nil))
}
