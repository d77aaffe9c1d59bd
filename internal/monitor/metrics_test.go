package monitor

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordStageTraining("outcome_control", "trained")
	m.RecordBudgetExceeded()
	m.RecordStrategyScored()
}

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()
	require.NoError(t, m.Register(prometheus.NewRegistry()))

	m.RecordStageTraining("outcome_control", "trained")
	m.RecordStageTraining("outcome_control", "trained")
	m.RecordStageTraining("propensity", "failed")
	m.RecordBudgetExceeded()
	m.RecordStrategyScored()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.stageTrainings.WithLabelValues("outcome_control", "trained")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageTrainings.WithLabelValues("propensity", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.budgetExceeded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.strategiesScored))
}

func TestMetricsDoubleRegister(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))
	assert.Error(t, m.Register(reg))
}
