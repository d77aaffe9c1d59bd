package uplift

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autouplift/internal/automl"
	"autouplift/internal/dataset"
	uerrors "autouplift/internal/errors"
)

func evaluateAll(t *testing.T, trainer *StageTrainer, subs []Submission, train, test *dataset.Frame, roles dataset.Roles) {
	t.Helper()
	for _, sub := range subs {
		require.NoError(t, trainer.Evaluate(context.Background(), sub, train, test, roles))
	}
}

func heldOut(t *testing.T, test *dataset.Frame) (target, treatment []float64) {
	t.Helper()
	target, err := test.Column("target")
	require.NoError(t, err)
	treatment, err = test.Column("treatment")
	require.NoError(t, err)
	return target, treatment
}

func TestAssembleTLearnerCrossProduct(t *testing.T) {
	train, roles := upliftFrame(t, 40)
	test := train.Select([]int{0, 1, 2, 3, 4, 5})
	trainer := NewStageTrainer(automl.TaskBinary, nil, nil)

	control := stageByKind(t, StrategyT, StageOutcomeControl)
	treatment := stageByKind(t, StrategyT, StageOutcomeTreatment)
	evaluateAll(t, trainer, []Submission{
		{{Stage: control, Candidate: constCandidate("__A__", 0.2)}},
		{{Stage: control, Candidate: constCandidate("__B__", 0.4)}},
		{{Stage: treatment, Candidate: constCandidate("__A__", 0.7)}},
		{{Stage: treatment, Candidate: constCandidate("__B__", 0.9)}},
	}, train, test, roles)

	assembler := NewAssembler(trainer, []StrategyKind{StrategyT}, UpliftAUC, MetricAdjQini, true, nil, nil)
	target, treatmentCol := heldOut(t, test)
	table, err := assembler.AssembleAndScore(target, treatmentCol)
	require.NoError(t, err)

	// 2 control candidates x 2 treatment candidates
	assert.Equal(t, 4, table.Len())
	for _, entry := range table.Entries() {
		assert.Equal(t, StrategyT, entry.Strategy)
		assert.Len(t, entry.Assignment, 2)
	}
}

func TestAssembleEnforcesPrerequisiteConsistency(t *testing.T) {
	train, roles := upliftFrame(t, 40)
	test := train.Select([]int{0, 1, 2, 3})
	trainer := NewStageTrainer(automl.TaskBinary, nil, nil)

	outcomeControl := stageByKind(t, StrategyX, StageOutcomeControl)
	outcomeTreatment := stageByKind(t, StrategyX, StageOutcomeTreatment)
	propensity := stageByKind(t, StrategyX, StagePropensity)
	effectControl := stageByKind(t, StrategyX, StageEffectControl)
	effectTreatment := stageByKind(t, StrategyX, StageEffectTreatment)

	ocA := constCandidate("__A__", 0.2)
	otA := constCandidate("__A__", 0.7)
	otB := constCandidate("__B__", 0.9)
	leaf := constCandidate("__Leaf__", 0.1)

	evaluateAll(t, trainer, []Submission{
		{{Stage: outcomeControl, Candidate: ocA}},
		{{Stage: outcomeTreatment, Candidate: otA}},
		{{Stage: outcomeTreatment, Candidate: otB}},
		{{Stage: propensity, Candidate: constCandidate("__A__", 0.5)}},
		{{Stage: outcomeTreatment, Candidate: otA}, {Stage: effectControl, Candidate: leaf}},
		{{Stage: outcomeTreatment, Candidate: otB}, {Stage: effectControl, Candidate: leaf}},
		{{Stage: outcomeControl, Candidate: ocA}, {Stage: effectTreatment, Candidate: leaf}},
	}, train, test, roles)

	assembler := NewAssembler(trainer, []StrategyKind{StrategyX}, UpliftAUC, MetricAdjQini, true, nil, nil)
	target, treatmentCol := heldOut(t, test)
	table, err := assembler.AssembleAndScore(target, treatmentCol)
	require.NoError(t, err)

	// one X-learner per outcome_treatment candidate: the effect_control
	// record trained against the other prerequisite is never paired
	require.Equal(t, 2, table.Len())
	for _, entry := range table.Entries() {
		effectRecord := entry.Stages[Level2Chain(StageOutcomeTreatment, StageEffectControl)]
		prereqRecord := entry.Stages[Level1Chain(StageOutcomeTreatment)]
		assert.Equal(t, prereqRecord.Candidate.Name, effectRecord.PrereqCandidate.Name)
	}
}

func TestAssembleNoFeasibleStrategy(t *testing.T) {
	train, roles := upliftFrame(t, 40)
	trainer := NewStageTrainer(automl.TaskBinary, nil, nil)

	evaluateAll(t, trainer, []Submission{
		{{Stage: stageByKind(t, StrategyT, StageOutcomeControl), Candidate: constCandidate("__A__", 0.2)}},
	}, train, train, roles)

	assembler := NewAssembler(trainer, []StrategyKind{StrategyT}, UpliftAUC, MetricAdjQini, true, nil, nil)
	target, treatmentCol := heldOut(t, train)
	_, err := assembler.AssembleAndScore(target, treatmentCol)
	assert.True(t, errors.Is(err, uerrors.ErrNoFeasibleStrategy))
}

func TestAssemblePartialCacheStillScoresCompleteStrategies(t *testing.T) {
	train, roles := upliftFrame(t, 40)
	test := train.Select([]int{0, 1, 2, 3})
	trainer := NewStageTrainer(automl.TaskBinary, nil, nil)

	// both T stages trained, X missing its propensity and effect stages
	evaluateAll(t, trainer, []Submission{
		{{Stage: stageByKind(t, StrategyT, StageOutcomeControl), Candidate: constCandidate("__A__", 0.2)}},
		{{Stage: stageByKind(t, StrategyT, StageOutcomeTreatment), Candidate: constCandidate("__A__", 0.7)}},
	}, train, test, roles)

	assembler := NewAssembler(trainer, []StrategyKind{StrategyT, StrategyX}, UpliftAUC, MetricAdjQini, true, nil, nil)
	target, treatmentCol := heldOut(t, test)
	table, err := assembler.AssembleAndScore(target, treatmentCol)
	require.NoError(t, err)

	require.Equal(t, 1, table.Len())
	assert.Equal(t, StrategyT, table.Entries()[0].Strategy)
}

func TestScoreTableInsertIsIdempotent(t *testing.T) {
	table := NewScoreTable()
	first := &ScoreEntry{
		Strategy:   StrategyT,
		Assignment: []StageAssignment{{Chain: Level1Chain(StageOutcomeControl), Candidate: "__A__"}},
		Score:      0.5,
	}
	duplicate := &ScoreEntry{
		Strategy:   StrategyT,
		Assignment: []StageAssignment{{Chain: Level1Chain(StageOutcomeControl), Candidate: "__A__"}},
		Score:      0.9,
	}
	table.insert(first)
	table.insert(duplicate)

	require.Equal(t, 1, table.Len())
	assert.Equal(t, 0.5, table.Entries()[0].Score)
}

func TestSelectBest(t *testing.T) {
	table := NewScoreTable()
	entries := []*ScoreEntry{
		{Strategy: StrategyT, Assignment: []StageAssignment{{Candidate: "__A__"}}, Score: 0.3},
		{Strategy: StrategyT, Assignment: []StageAssignment{{Candidate: "__B__"}}, Score: 0.8},
		{Strategy: StrategyT, Assignment: []StageAssignment{{Candidate: "__C__"}}, Score: 0.1},
	}
	for _, e := range entries {
		table.insert(e)
	}

	best, err := selectBest(table, true)
	require.NoError(t, err)
	assert.Equal(t, 0.8, best.Score)

	worst, err := selectBest(table, false)
	require.NoError(t, err)
	assert.Equal(t, 0.1, worst.Score)
}

func TestSelectBestTieKeepsFirst(t *testing.T) {
	table := NewScoreTable()
	table.insert(&ScoreEntry{Strategy: StrategyT, Assignment: []StageAssignment{{Candidate: "__First__"}}, Score: 0.5})
	table.insert(&ScoreEntry{Strategy: StrategyT, Assignment: []StageAssignment{{Candidate: "__Second__"}}, Score: 0.5})

	best, err := selectBest(table, true)
	require.NoError(t, err)
	assert.Equal(t, "__First__", best.Assignment[0].Candidate)
}

func TestSelectBestEmptyTable(t *testing.T) {
	_, err := selectBest(NewScoreTable(), true)
	assert.True(t, errors.Is(err, uerrors.ErrNoFeasibleStrategy))
}

func TestPredictFromRecordsTLearner(t *testing.T) {
	records := map[ChainName]*TrainedStage{
		Level1Chain(StageOutcomeControl):   {TestPred: []float64{0.2, 0.3}},
		Level1Chain(StageOutcomeTreatment): {TestPred: []float64{0.7, 0.5}},
	}
	pred, err := predictFromRecords(StrategyT, records)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.2}, pred, 1e-12)
}

func TestPredictFromRecordsXLearner(t *testing.T) {
	records := map[ChainName]*TrainedStage{
		Level1Chain(StagePropensity):                              {TestPred: []float64{0.5, 1.0}},
		Level2Chain(StageOutcomeTreatment, StageEffectControl):    {TestPred: []float64{0.2, 0.2}},
		Level2Chain(StageOutcomeControl, StageEffectTreatment):    {TestPred: []float64{0.6, 0.6}},
	}
	pred, err := predictFromRecords(StrategyX, records)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.4, 0.6}, pred, 1e-12)
}
