package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for the uplift search.
// A nil *Metrics is valid and records nothing, so the core can run
// without monitoring wired in.
type Metrics struct {
	stageTrainings   *prometheus.CounterVec
	budgetExceeded   prometheus.Counter
	strategiesScored prometheus.Counter
}

// NewMetrics creates the search metrics
func NewMetrics() *Metrics {
	return &Metrics{
		stageTrainings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uplift_stage_trainings_total",
				Help: "Total number of (stage, candidate) training events",
			},
			[]string{"stage", "status"},
		),
		budgetExceeded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "uplift_budget_exceeded_total",
				Help: "Number of fit runs stopped by the time budget",
			},
		),
		strategiesScored: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "uplift_strategies_scored_total",
				Help: "Total number of assembled strategy combinations scored",
			},
		),
	}
}

// Register registers all instruments with a registry
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.stageTrainings, m.budgetExceeded, m.strategiesScored} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordStageTraining counts one training event for a stage
func (m *Metrics) RecordStageTraining(stage, status string) {
	if m == nil {
		return
	}
	m.stageTrainings.WithLabelValues(stage, status).Inc()
}

// RecordBudgetExceeded counts a run cut short by its budget
func (m *Metrics) RecordBudgetExceeded() {
	if m == nil {
		return
	}
	m.budgetExceeded.Inc()
}

// RecordStrategyScored counts one scored strategy combination
func (m *Metrics) RecordStrategyScored() {
	if m == nil {
		return
	}
	m.strategiesScored.Inc()
}
