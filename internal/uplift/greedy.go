package uplift

import (
	"context"
	"math"
	"sort"

	"autouplift/internal/automl"
	"autouplift/internal/dataset"
	"autouplift/internal/errors"
	"autouplift/internal/logger"
	"autouplift/internal/monitor"
)

// GreedyCandidate is one whole-strategy candidate for the greedy
// search: a display name and the full construction spec.
type GreedyCandidate struct {
	Name string
	Spec *StrategySpec
}

// AutoUplift is the simple greedy search: every candidate strategy is
// trained in full, scored on the held-out split and the best one kept.
// Shared stages across candidates are retrained each time; use
// AutoUpliftTX when candidates overlap.
type AutoUplift struct {
	cfg                Config
	candidates         []GreedyCandidate
	imbalanceThreshold float64
	log                logger.Logger
	metrics            *monitor.Metrics

	scores        []float64
	best          MetaLearner
	bestCandidate *GreedyCandidate
	fitted        bool
}

// NewAutoUplift creates a greedy search. With a nil candidate list the
// defaults are generated at fit time, including data-dependent
// candidates when the treatment assignment is imbalanced beyond
// imbalanceThreshold.
func NewAutoUplift(cfg Config, candidates []GreedyCandidate, imbalanceThreshold float64, log logger.Logger, metrics *monitor.Metrics) (*AutoUplift, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if cfg.Metric == "" {
		cfg.Metric = MetricAdjQini
	}
	if cfg.MetricFn == nil {
		cfg.MetricFn = UpliftAUC
	}
	if cfg.BaseTask == "" {
		cfg.BaseTask = automl.TaskBinary
	}
	if cfg.TestSize <= 0.0 || cfg.TestSize >= 1.0 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfig,
			"test size must be in (0, 1), got %v", cfg.TestSize)
	}
	if imbalanceThreshold <= 0 {
		imbalanceThreshold = 0.2
	}
	return &AutoUplift{
		cfg:                cfg,
		candidates:         candidates,
		imbalanceThreshold: imbalanceThreshold,
		log:                log,
		metrics:            metrics,
	}, nil
}

// Fit trains every candidate strategy fully and keeps the best one
func (a *AutoUplift) Fit(ctx context.Context, data *dataset.Frame, roles dataset.Roles) error {
	if err := roles.Validate(data); err != nil {
		return err
	}

	train, test, err := dataset.TrainTestSplit(data, roles, a.cfg.TestSize, a.cfg.Seed)
	if err != nil {
		return err
	}
	targetCol, _ := roles.TargetColumn()
	treatmentCol, _ := roles.TreatmentColumn()
	testTarget, _ := test.Column(targetCol)
	testTreatment, _ := test.Column(treatmentCol)

	if len(a.candidates) == 0 {
		candidates, err := a.generateCandidates(data, roles)
		if err != nil {
			return err
		}
		a.candidates = candidates
	}
	a.scores = make([]float64, len(a.candidates))
	for i := range a.scores {
		a.scores[i] = math.NaN()
	}

	timer := NewTimer(a.cfg.Timeout)
	timer.Start()

	for i, candidate := range a.candidates {
		ml, err := candidate.Spec.Instantiate()
		if err != nil {
			return err
		}
		if err := ml.Fit(ctx, train, roles); err != nil {
			return errors.Wrap(err, errors.ErrCodeTrainingFailed, "candidate fit failed").
				WithContext("candidate", candidate.Name)
		}
		a.log.Info("uplift candidate fitted", "index", i, "candidate", candidate.Name)

		pred, err := ml.Predict(test)
		if err != nil {
			return err
		}
		score, err := a.cfg.MetricFn(testTarget, pred, testTreatment, a.cfg.Metric, a.cfg.NormedMetric)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeMetricFailed, "metric evaluation failed")
		}
		a.scores[i] = score

		if a.best == nil ||
			(a.cfg.IncreasingMetric && score > a.scores[a.bestIndex()]) ||
			(!a.cfg.IncreasingMetric && score < a.scores[a.bestIndex()]) {
			a.best = ml
			a.bestCandidate = &a.candidates[i]
		}

		if timer.LimitExceeded() {
			a.metrics.RecordBudgetExceeded()
			a.log.Warn("training time budget exceeded",
				"time_spent", timer.TimeSpent().String(),
				"fitted", i+1, "total", len(a.candidates))
			break
		}
	}

	if a.best == nil {
		return errors.ErrNoFeasibleStrategy
	}
	a.fitted = true
	return nil
}

func (a *AutoUplift) bestIndex() int {
	for i := range a.candidates {
		if a.bestCandidate == &a.candidates[i] {
			return i
		}
	}
	return 0
}

// Predict returns uplift predictions from the best candidate
func (a *AutoUplift) Predict(data *dataset.Frame) ([]float64, error) {
	if !a.fitted {
		return nil, errors.ErrNotFitted
	}
	return a.best.Predict(data)
}

// CreateBestStrategy returns a re-instantiable spec of the winning
// candidate, optionally with base-learner parameter overrides
func (a *AutoUplift) CreateBestStrategy(overrides automl.Params) (*StrategySpec, error) {
	if !a.fitted {
		return nil, errors.ErrNotFitted
	}
	spec := a.bestCandidate.Spec.Clone()
	if len(overrides) > 0 {
		spec.UpdateBaseParams(overrides)
	}
	return spec, nil
}

// Rating returns the candidates ranked by held-out score; candidates
// the budget cut off carry a NaN score and rank last
func (a *AutoUplift) Rating() ([]RatingRow, error) {
	if !a.fitted {
		return nil, errors.ErrNotFitted
	}
	rows := make([]RatingRow, len(a.candidates))
	for i, candidate := range a.candidates {
		rows[i] = RatingRow{
			Strategy:   candidate.Spec.Strategy,
			Assignment: candidate.Name,
			Score:      a.scores[i],
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		si, sj := rows[i].Score, rows[j].Score
		if math.IsNaN(sj) {
			return !math.IsNaN(si)
		}
		if math.IsNaN(si) {
			return false
		}
		if a.cfg.IncreasingMetric {
			return si > sj
		}
		return si < sj
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}

// generateCandidates builds the default whole-strategy candidates,
// plus data-dependent ones when treatment assignment is imbalanced
func (a *AutoUplift) generateCandidates(data *dataset.Frame, roles dataset.Roles) ([]GreedyCandidate, error) {
	candidates := []GreedyCandidate{
		{Name: "__TLearner__Default__", Spec: a.defaultSpec(StrategyT, false)},
		{Name: "__XLearner__Default__", Spec: a.defaultSpec(StrategyX, false)},
	}

	treatmentCol, err := roles.TreatmentColumn()
	if err != nil {
		return nil, err
	}
	rate, err := data.Mean(treatmentCol)
	if err != nil {
		return nil, err
	}
	if math.Abs(rate-0.5) > a.imbalanceThreshold {
		a.log.Info("treatment assignment is imbalanced, adding data-dependent candidates",
			"treatment_rate", rate)
		candidates = append(candidates, GreedyCandidate{
			Name: "__XLearner__MeanOutcome__",
			Spec: a.defaultSpec(StrategyX, true),
		})
	}
	return candidates, nil
}

// defaultSpec builds a strategy spec from the default candidates;
// with meanOutcome the outcome stages use the mean baseline instead
// of the linear model
func (a *AutoUplift) defaultSpec(strategy StrategyKind, meanOutcome bool) *StrategySpec {
	stages, _ := strategy.Stages()
	specStages := make(map[ChainName]LearnerWrapper, len(stages))
	for _, stage := range stages {
		task := stage.TaskFor(a.cfg.BaseTask)
		wrapper := LinearCandidate(task, automl.Params{})
		if meanOutcome && (stage.Kind == StageOutcomeControl || stage.Kind == StageOutcomeTreatment) {
			wrapper = MeanCandidate()
		}
		specStages[stage.Chain()] = wrapper
	}
	return &StrategySpec{
		Name:     "__ML__" + string(strategy),
		Strategy: strategy,
		Stages:   specStages,
	}
}
