package uplift

import (
	"fmt"
	"sort"
	"strings"

	"autouplift/internal/errors"
	"autouplift/internal/logger"
	"autouplift/internal/monitor"
)

// StageAssignment names the candidate actually used at one stage
type StageAssignment struct {
	Chain     ChainName
	Candidate string
}

// ScoreEntry is one scored strategy combination
type ScoreEntry struct {
	Strategy   StrategyKind
	Assignment []StageAssignment // sorted by chain, then candidate
	Stages     map[ChainName]*TrainedStage
	Score      float64
}

// AssignmentKey renders the assignment as a stable string
func (e *ScoreEntry) AssignmentKey() string {
	parts := make([]string, len(e.Assignment))
	for i, a := range e.Assignment {
		parts[i] = fmt.Sprintf("%s=%s", a.Chain, a.Candidate)
	}
	return strings.Join(parts, ",")
}

type scoreKey struct {
	strategy   StrategyKind
	assignment string
}

// ScoreTable maps (strategy type, stage assignment) to a held-out
// score. Insertion order is preserved and used for tie-breaking.
type ScoreTable struct {
	entries []*ScoreEntry
	index   map[scoreKey]int
}

// NewScoreTable creates an empty score table
func NewScoreTable() *ScoreTable {
	return &ScoreTable{index: make(map[scoreKey]int)}
}

// Len returns the number of entries
func (t *ScoreTable) Len() int {
	return len(t.entries)
}

// Entries returns the entries in insertion order
func (t *ScoreTable) Entries() []*ScoreEntry {
	return append([]*ScoreEntry(nil), t.entries...)
}

// insert records an entry unless an identical key already exists
func (t *ScoreTable) insert(entry *ScoreEntry) {
	key := scoreKey{strategy: entry.Strategy, assignment: entry.AssignmentKey()}
	if _, ok := t.index[key]; ok {
		return
	}
	t.index[key] = len(t.entries)
	t.entries = append(t.entries, entry)
}

// Assembler reconstructs every full strategy that can be built from
// the cached trained stage records and scores each on the held-out
// split.
type Assembler struct {
	trainer    *StageTrainer
	strategies []StrategyKind
	metric     MetricFunc
	metricName string
	normed     bool
	log        logger.Logger
	metrics    *monitor.Metrics
}

// NewAssembler creates an assembler over a trainer's cache
func NewAssembler(trainer *StageTrainer, strategies []StrategyKind, metric MetricFunc, metricName string, normed bool, log logger.Logger, metrics *monitor.Metrics) *Assembler {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Assembler{
		trainer:    trainer,
		strategies: strategies,
		metric:     metric,
		metricName: metricName,
		normed:     normed,
		log:        log,
		metrics:    metrics,
	}
}

// AssembleAndScore walks the cross-product of cached records, checks
// prerequisite-candidate consistency, computes each feasible
// strategy's held-out prediction and scores it.
func (a *Assembler) AssembleAndScore(testTarget, testTreatment []float64) (*ScoreTable, error) {
	if err := a.checkFeasibility(); err != nil {
		return nil, err
	}

	table := NewScoreTable()
	chains := a.trainer.Chains()

	lists := make([][]*TrainedStage, len(chains))
	for i, chain := range chains {
		lists[i] = a.trainer.Records(chain)
	}

	// odometer over the per-chain record lists, last index fastest
	pick := make([]int, len(chains))
	for {
		combo := make(map[ChainName]*TrainedStage, len(chains))
		for i, chain := range chains {
			combo[chain] = lists[i][pick[i]]
		}

		for _, strategy := range a.strategies {
			if err := a.scoreCombination(table, strategy, combo, testTarget, testTreatment); err != nil {
				return nil, err
			}
		}

		i := len(pick) - 1
		for ; i >= 0; i-- {
			pick[i]++
			if pick[i] < len(lists[i]) {
				break
			}
			pick[i] = 0
		}
		if i < 0 {
			break
		}
	}

	a.log.Info("strategy assembly complete",
		"combinations_scored", table.Len(), "cached_stages", len(chains))
	return table, nil
}

// checkFeasibility verifies at least one strategy has every required
// stage trained
func (a *Assembler) checkFeasibility() error {
	for _, strategy := range a.strategies {
		stages, err := strategy.Stages()
		if err != nil {
			return err
		}
		feasible := true
		for _, stage := range stages {
			if len(a.trainer.Records(stage.Chain())) == 0 {
				feasible = false
				break
			}
		}
		if feasible {
			return nil
		}
	}
	return errors.WithDetails(errors.ErrCodeNoFeasibleStrategy,
		"no strategy has all required stages trained",
		fmt.Sprintf("cached stages: %v", a.trainer.Chains()), nil)
}

// scoreCombination assembles one strategy from one cross-product
// combination, rejecting chains whose second-level record was trained
// against a different prerequisite candidate than the combination uses
func (a *Assembler) scoreCombination(table *ScoreTable, strategy StrategyKind, combo map[ChainName]*TrainedStage, testTarget, testTreatment []float64) error {
	stages, err := strategy.Stages()
	if err != nil {
		return err
	}

	picked := make(map[ChainName]*TrainedStage, len(stages))
	for _, stage := range stages {
		chain := stage.Chain()
		record, ok := combo[chain]
		if !ok {
			return nil
		}
		if record.PrereqCandidate != nil {
			prereqChain, _ := chain.PrereqChain()
			prereqRecord, ok := combo[prereqChain]
			if !ok || prereqRecord.Candidate.Name != record.PrereqCandidate.Name {
				return nil
			}
		}
		picked[chain] = record
	}

	pred, err := predictFromRecords(strategy, picked)
	if err != nil {
		return err
	}

	score, err := a.metric(testTarget, pred, testTreatment, a.metricName, a.normed)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeMetricFailed, "metric evaluation failed")
	}

	assignment := make([]StageAssignment, 0, len(picked))
	for chain, record := range picked {
		assignment = append(assignment, StageAssignment{Chain: chain, Candidate: record.Candidate.Name})
	}
	sort.Slice(assignment, func(i, j int) bool {
		if assignment[i].Chain.String() != assignment[j].Chain.String() {
			return assignment[i].Chain.String() < assignment[j].Chain.String()
		}
		return assignment[i].Candidate < assignment[j].Candidate
	})

	table.insert(&ScoreEntry{
		Strategy:   strategy,
		Assignment: assignment,
		Stages:     picked,
		Score:      score,
	})
	a.metrics.RecordStrategyScored()
	return nil
}

// predictFromRecords computes a strategy's uplift prediction from its
// cached held-out stage predictions:
//
//	TLearner: treatment outcome - control outcome
//	XLearner: p * effect_treatment + (1 - p) * effect_control
func predictFromRecords(strategy StrategyKind, records map[ChainName]*TrainedStage) ([]float64, error) {
	switch strategy {
	case StrategyT:
		control := records[Level1Chain(StageOutcomeControl)].TestPred
		treatment := records[Level1Chain(StageOutcomeTreatment)].TestPred
		out := make([]float64, len(control))
		for i := range out {
			out[i] = treatment[i] - control[i]
		}
		return out, nil
	case StrategyX:
		controlEffect := records[Level2Chain(StageOutcomeTreatment, StageEffectControl)].TestPred
		treatmentEffect := records[Level2Chain(StageOutcomeControl, StageEffectTreatment)].TestPred
		propensity := records[Level1Chain(StagePropensity)].TestPred
		out := make([]float64, len(propensity))
		for i := range out {
			out[i] = propensity[i]*treatmentEffect[i] + (1-propensity[i])*controlEffect[i]
		}
		return out, nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnknownStrategy, "unknown strategy type %q", strategy)
	}
}
