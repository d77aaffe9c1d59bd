package uplift

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"autouplift/internal/automl"
	"autouplift/internal/dataset"
	"autouplift/internal/errors"
	"autouplift/internal/logger"
	"autouplift/internal/monitor"
)

// Config configures the staged uplift search
type Config struct {
	BaseTask         automl.Task
	Strategies       []StrategyKind
	Metric           string
	NormedMetric     bool
	IncreasingMetric bool
	TestSize         float64
	Timeout          time.Duration // negative = unbounded
	LearnerTimeout   time.Duration // 0 = derived from Timeout
	Seed             int64
	Level2Burst      int
	MetricFn         MetricFunc
	// Baselearners overrides the default per-stage candidate lists.
	// Keys are stage full identities; order within a list is the
	// enumeration order used by the scheduler.
	Baselearners map[ChainName][]LearnerWrapper
}

// DefaultConfig returns the default search configuration: both
// strategies, adjusted normalized Qini, higher is better, unbounded
// budget.
func DefaultConfig() Config {
	return Config{
		BaseTask:         automl.TaskBinary,
		Strategies:       []StrategyKind{StrategyT, StrategyX},
		Metric:           MetricAdjQini,
		NormedMetric:     true,
		IncreasingMetric: true,
		TestSize:         0.2,
		Timeout:          -1,
		Seed:             42,
		Level2Burst:      3,
		MetricFn:         UpliftAUC,
	}
}

// AutoUpliftTX selects the best meta-learner between the T-learner
// and X-learner families without retraining their shared stages: each
// distinct (stage, candidate) pair is trained once, and all feasible
// full strategies are reassembled from the cached stage models.
type AutoUpliftTX struct {
	cfg     Config
	log     logger.Logger
	metrics *monitor.Metrics

	trainer        *StageTrainer
	timer          *Timer
	table          *ScoreTable
	best           *ScoreEntry
	bestPredictor  MetaLearner
	bestSpec       *StrategySpec
	completed      int
	total          int
	budgetExceeded bool
	fitted         bool
}

// NewAutoUpliftTX creates a staged uplift search
func NewAutoUpliftTX(cfg Config, log logger.Logger, metrics *monitor.Metrics) (*AutoUpliftTX, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if len(cfg.Strategies) == 0 {
		cfg.Strategies = []StrategyKind{StrategyT, StrategyX}
	}
	for _, strategy := range cfg.Strategies {
		if _, err := strategy.Stages(); err != nil {
			return nil, err
		}
	}
	if cfg.Metric == "" {
		cfg.Metric = MetricAdjQini
	}
	if cfg.MetricFn == nil {
		cfg.MetricFn = UpliftAUC
	}
	if cfg.TestSize <= 0.0 || cfg.TestSize >= 1.0 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfig,
			"test size must be in (0, 1), got %v", cfg.TestSize)
	}
	if cfg.BaseTask == "" {
		cfg.BaseTask = automl.TaskBinary
	}
	if cfg.Level2Burst <= 0 {
		cfg.Level2Burst = 3
	}
	return &AutoUpliftTX{cfg: cfg, log: log, metrics: metrics}, nil
}

// Fit runs the staged search: splits the data, schedules stage
// training under the time budget, assembles and scores every feasible
// strategy from the cache and materializes the best one.
func (a *AutoUpliftTX) Fit(ctx context.Context, data *dataset.Frame, roles dataset.Roles) error {
	if err := roles.Validate(data); err != nil {
		return err
	}

	runID := uuid.NewString()
	log := a.log.WithField("run_id", runID)

	train, test, err := dataset.TrainTestSplit(data, roles, a.cfg.TestSize, a.cfg.Seed)
	if err != nil {
		return err
	}
	targetCol, _ := roles.TargetColumn()
	treatmentCol, _ := roles.TreatmentColumn()
	testTarget, _ := test.Column(targetCol)
	testTreatment, _ := test.Column(treatmentCol)

	stages, _, err := allStages(a.cfg.Strategies)
	if err != nil {
		return err
	}

	candidates := a.cfg.Baselearners
	if candidates == nil {
		candidates = a.defaultStageCandidates(stages)
	}

	a.trainer = NewStageTrainer(a.cfg.BaseTask, log, a.metrics)
	a.timer = NewTimer(a.cfg.Timeout)
	rng := rand.New(rand.NewSource(a.cfg.Seed))
	scheduler := NewScheduler(stages, candidates, a.cfg.Level2Burst, rng, log)
	a.total = scheduler.TotalSubmissions()

	a.timer.Start()
	completed, exceeded, err := scheduler.Run(func(sub Submission) error {
		return a.trainer.Evaluate(ctx, sub, train, test, roles)
	}, a.timer)
	if err != nil {
		return err
	}
	a.completed = completed
	a.budgetExceeded = exceeded
	if exceeded {
		a.metrics.RecordBudgetExceeded()
		log.Warn("training time budget exceeded, proceeding with partial results",
			"time_spent", a.timer.TimeSpent().String(),
			"completed", completed,
			"total", a.total)
	}

	assembler := NewAssembler(a.trainer, a.cfg.Strategies, a.cfg.MetricFn,
		a.cfg.Metric, a.cfg.NormedMetric, log, a.metrics)
	table, err := assembler.AssembleAndScore(testTarget, testTreatment)
	if err != nil {
		return err
	}
	a.table = table

	best, err := selectBest(table, a.cfg.IncreasingMetric)
	if err != nil {
		return err
	}
	a.best = best

	predictor, err := buildPredictor(best)
	if err != nil {
		return err
	}
	a.bestPredictor = predictor
	a.bestSpec = buildSpec(best)
	a.fitted = true

	log.Info("best strategy selected",
		"strategy", best.Strategy,
		"assignment", best.AssignmentKey(),
		"score", best.Score)
	return nil
}

// Predict returns uplift predictions from the best strategy
func (a *AutoUpliftTX) Predict(data *dataset.Frame) ([]float64, error) {
	if !a.fitted {
		return nil, errors.ErrNotFitted
	}
	return a.bestPredictor.Predict(data)
}

// Best returns the winning score-table entry
func (a *AutoUpliftTX) Best() (*ScoreEntry, error) {
	if !a.fitted {
		return nil, errors.ErrNotFitted
	}
	return a.best, nil
}

// BestPredictor returns the fitted composed predictor of the winning
// strategy; no retraining is performed.
func (a *AutoUpliftTX) BestPredictor() (MetaLearner, error) {
	if !a.fitted {
		return nil, errors.ErrNotFitted
	}
	return a.bestPredictor, nil
}

// CreateBestStrategy returns a re-instantiable specification of the
// winning strategy. Overrides, if any, are applied uniformly to every
// base-learner wrapper in the returned spec; the internal copy is
// never mutated.
func (a *AutoUpliftTX) CreateBestStrategy(overrides automl.Params) (*StrategySpec, error) {
	if !a.fitted {
		return nil, errors.ErrNotFitted
	}
	spec := a.bestSpec.Clone()
	if len(overrides) > 0 {
		spec.UpdateBaseParams(overrides)
	}
	return spec, nil
}

// RatingRow is one line of the strategy rating
type RatingRow struct {
	Strategy   StrategyKind
	Assignment string
	Score      float64
	Rank       int
}

// Rating returns every scored strategy combination ranked best-first
func (a *AutoUpliftTX) Rating() ([]RatingRow, error) {
	if !a.fitted {
		return nil, errors.ErrNotFitted
	}
	rows := make([]RatingRow, 0, a.table.Len())
	for _, entry := range a.table.Entries() {
		rows = append(rows, RatingRow{
			Strategy:   entry.Strategy,
			Assignment: entry.AssignmentKey(),
			Score:      entry.Score,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if a.cfg.IncreasingMetric {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].Score < rows[j].Score
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}

// Completed reports how many submissions finished out of the full
// enumeration, and whether the budget cut the run short
func (a *AutoUpliftTX) Completed() (completed, total int, budgetExceeded bool) {
	return a.completed, a.total, a.budgetExceeded
}

// defaultStageCandidates builds the default candidate list per stage.
// Bucketing follows each stage's resolved task: binary-task stages
// get binary candidates, regression stages regression candidates.
func (a *AutoUpliftTX) defaultStageCandidates(stages []*Stage) map[ChainName][]LearnerWrapper {
	learnerTimeout := a.singleLearnerTimeout()
	out := make(map[ChainName][]LearnerWrapper, len(stages))
	for _, stage := range stages {
		out[stage.Chain()] = DefaultCandidates(stage.TaskFor(a.cfg.BaseTask), learnerTimeout)
	}
	return out
}

// singleLearnerTimeout derives a per-learner budget when only a global
// one is configured: the global budget is split across the number of
// base learners the enabled strategies require.
func (a *AutoUpliftTX) singleLearnerTimeout() time.Duration {
	if a.cfg.LearnerTimeout > 0 {
		return a.cfg.LearnerTimeout
	}
	if a.cfg.Timeout < 0 {
		return 0
	}
	learners := 0
	for _, strategy := range a.cfg.Strategies {
		switch strategy {
		case StrategyT:
			learners += 2
		case StrategyX:
			learners += 5
		}
	}
	if learners == 0 {
		return 0
	}
	return a.cfg.Timeout / time.Duration(learners)
}

// DefaultCandidates returns the default candidates for a stage task
func DefaultCandidates(task automl.Task, learnerTimeout time.Duration) []LearnerWrapper {
	params := automl.Params{}
	if learnerTimeout > 0 {
		params["timeout"] = learnerTimeout.Seconds()
	}
	return []LearnerWrapper{
		LinearCandidate(task, params),
		MeanCandidate(),
	}
}

// selectBest picks the extremal entry under the configured direction.
// Only a strictly better score replaces the incumbent, so ties keep
// the first entry in insertion order.
func selectBest(table *ScoreTable, increasing bool) (*ScoreEntry, error) {
	entries := table.Entries()
	if len(entries) == 0 {
		return nil, errors.ErrNoFeasibleStrategy
	}
	best := entries[0]
	for _, entry := range entries[1:] {
		if (increasing && entry.Score > best.Score) || (!increasing && entry.Score < best.Score) {
			best = entry
		}
	}
	return best, nil
}

// buildPredictor composes the winning entry's already-trained stage
// models into a fitted predictor
func buildPredictor(entry *ScoreEntry) (MetaLearner, error) {
	switch entry.Strategy {
	case StrategyT:
		return NewFittedTLearner(
			entry.Stages[Level1Chain(StageOutcomeControl)].Model,
			entry.Stages[Level1Chain(StageOutcomeTreatment)].Model,
		), nil
	case StrategyX:
		return NewFittedXLearner(
			entry.Stages[Level1Chain(StageOutcomeControl)].Model,
			entry.Stages[Level1Chain(StageOutcomeTreatment)].Model,
			entry.Stages[Level1Chain(StagePropensity)].Model,
			entry.Stages[Level2Chain(StageOutcomeTreatment, StageEffectControl)].Model,
			entry.Stages[Level2Chain(StageOutcomeControl, StageEffectTreatment)].Model,
		), nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnknownStrategy, "unknown strategy type %q", entry.Strategy)
	}
}

// buildSpec captures the winning assignment as construction recipes
func buildSpec(entry *ScoreEntry) *StrategySpec {
	stages := make(map[ChainName]LearnerWrapper, len(entry.Stages))
	for chain, record := range entry.Stages {
		stages[chain] = record.Candidate.Clone()
	}
	return &StrategySpec{
		Name:     "__ML__" + string(entry.Strategy),
		Strategy: entry.Strategy,
		Stages:   stages,
	}
}
