package uplift

import (
	"context"

	"autouplift/internal/automl"
	"autouplift/internal/dataset"
	"autouplift/internal/errors"
	"autouplift/internal/logger"
	"autouplift/internal/monitor"
)

// StagePair is one (stage, candidate) assignment
type StagePair struct {
	Stage     *Stage
	Candidate LearnerWrapper
}

// Submission is the unit of work handed to the trainer: a stage chain
// of length 1, or length 2 where the first pair names the prerequisite
// stage and the candidate its record was trained with.
type Submission []StagePair

// Chain returns the full identity of the stage being trained
func (s Submission) Chain() ChainName {
	return s[len(s)-1].Stage.Chain()
}

// TrainedStage is one immutable cache record: the candidate wrapper,
// the prerequisite candidate it was conditioned on (nil for level-1
// stages), the trained model and its held-out predictions.
type TrainedStage struct {
	Candidate       LearnerWrapper
	PrereqCandidate *LearnerWrapper
	Model           automl.Learner
	TestPred        []float64
}

// StageTrainer prepares stage-specific training slices, fits candidate
// models and caches the results keyed by stage full identity. Each
// (stage, candidate) pair is trained at most once per run.
type StageTrainer struct {
	baseTask automl.Task
	cache    map[ChainName][]*TrainedStage
	chains   []ChainName // cache key insertion order
	log      logger.Logger
	metrics  *monitor.Metrics
}

// NewStageTrainer creates a stage trainer
func NewStageTrainer(baseTask automl.Task, log logger.Logger, metrics *monitor.Metrics) *StageTrainer {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &StageTrainer{
		baseTask: baseTask,
		cache:    make(map[ChainName][]*TrainedStage),
		log:      log,
		metrics:  metrics,
	}
}

// Chains returns the cached stage identities in insertion order
func (t *StageTrainer) Chains() []ChainName {
	return append([]ChainName(nil), t.chains...)
}

// Records returns the cached records for a stage identity, in
// insertion order
func (t *StageTrainer) Records(chain ChainName) []*TrainedStage {
	return t.cache[chain]
}

// TotalRecords returns the number of cached records across all stages
func (t *StageTrainer) TotalRecords() int {
	n := 0
	for _, records := range t.cache {
		n += len(records)
	}
	return n
}

// find returns the cached record for a candidate on a stage. For
// second-level stages records are distinct per prerequisite candidate;
// prereqName is empty for first-level lookups.
func (t *StageTrainer) find(chain ChainName, candidateName, prereqName string) *TrainedStage {
	for _, record := range t.cache[chain] {
		if record.Candidate.Name != candidateName {
			continue
		}
		recPrereq := ""
		if record.PrereqCandidate != nil {
			recPrereq = record.PrereqCandidate.Name
		}
		if recPrereq == prereqName {
			return record
		}
	}
	return nil
}

// Evaluate trains one (stage, candidate) pair: prepares the stage's
// training slice, fits the candidate, predicts the held-out split and
// appends an immutable record to the cache. An already-cached pair is
// not retrained.
func (t *StageTrainer) Evaluate(ctx context.Context, sub Submission, train, test *dataset.Frame, roles dataset.Roles) error {
	if len(sub) == 0 || len(sub) > maxChainDepth {
		detail := ""
		if len(sub) > 0 {
			detail = sub.Chain().String()
		}
		return errors.WithDetails(errors.ErrCodeChainTooDeep,
			"stage chain must be one or two levels",
			detail, nil).WithContext("depth", len(sub))
	}

	chain := sub.Chain()
	pair := sub[len(sub)-1]
	prereqName := ""
	if len(sub) == 2 {
		prereqName = sub[0].Candidate.Name
	}
	if t.find(chain, pair.Candidate.Name, prereqName) != nil {
		t.log.Debug("stage candidate already trained, skipping",
			"stage", chain.String(), "candidate", pair.Candidate.Name)
		return nil
	}

	stageTrain, stageRoles, prereqCandidate, err := t.prepareStageData(sub, train, roles)
	if err != nil {
		t.metrics.RecordStageTraining(chain.String(), "failed")
		return err
	}
	if stageTrain.Len() == 0 {
		t.metrics.RecordStageTraining(chain.String(), "failed")
		return errors.WithDetails(errors.ErrCodeEmptyTrainingSlice,
			"stage training slice contains no rows", chain.String(), nil)
	}

	model := pair.Candidate.Build()
	if err := model.Fit(ctx, stageTrain, stageRoles); err != nil {
		t.metrics.RecordStageTraining(chain.String(), "failed")
		return errors.Wrap(err, errors.ErrCodeTrainingFailed, "candidate fit failed").
			WithContext("stage", chain.String()).
			WithContext("candidate", pair.Candidate.Name)
	}

	testPred, err := model.Predict(test)
	if err != nil {
		t.metrics.RecordStageTraining(chain.String(), "failed")
		return errors.Wrap(err, errors.ErrCodeTrainingFailed, "held-out prediction failed")
	}

	if _, ok := t.cache[chain]; !ok {
		t.chains = append(t.chains, chain)
	}
	t.cache[chain] = append(t.cache[chain], &TrainedStage{
		Candidate:       pair.Candidate,
		PrereqCandidate: prereqCandidate,
		Model:           model,
		TestPred:        testPred,
	})
	t.metrics.RecordStageTraining(chain.String(), "trained")
	t.log.Debug("stage candidate trained",
		"stage", chain.String(), "candidate", pair.Candidate.Name, "rows", stageTrain.Len())
	return nil
}

// prepareStageData builds the training slice for the submission's
// final stage. For level-2 stages it resolves the prerequisite's
// cached record and derives the residual target from its predictions.
func (t *StageTrainer) prepareStageData(sub Submission, train *dataset.Frame, roles dataset.Roles) (*dataset.Frame, dataset.Roles, *LearnerWrapper, error) {
	stage := sub[len(sub)-1].Stage

	if len(sub) == 1 {
		frame, stageRoles, err := prepareLevel1(stage.Kind, train, roles)
		return frame, stageRoles, nil, err
	}

	prereqPair := sub[0]
	prereqChain := prereqPair.Stage.Chain()
	record := t.find(prereqChain, prereqPair.Candidate.Name, "")
	if record == nil {
		return nil, nil, nil, errors.WithDetails(errors.ErrCodeMissingPrerequisite,
			"prerequisite stage has no trained record",
			prereqChain.String(), nil).WithContext("candidate", prereqPair.Candidate.Name)
	}

	frame, stageRoles, err := prepareLevel2(stage.Kind, train, roles, record.Model)
	if err != nil {
		return nil, nil, nil, err
	}
	prereqCandidate := prereqPair.Candidate.Clone()
	return frame, stageRoles, &prereqCandidate, nil
}

// prepareLevel1 applies the slicing rule of a first-level stage:
//
//	outcome_control:   treatment == 0 rows, treatment column dropped
//	outcome_treatment: treatment == 1 rows, treatment column dropped
//	propensity:        all rows, treatment becomes the target, the
//	                   original target column is dropped
func prepareLevel1(kind StageKind, train *dataset.Frame, roles dataset.Roles) (*dataset.Frame, dataset.Roles, error) {
	treatmentCol, err := roles.TreatmentColumn()
	if err != nil {
		return nil, nil, err
	}
	targetCol, err := roles.TargetColumn()
	if err != nil {
		return nil, nil, err
	}

	switch kind {
	case StagePropensity:
		stageRoles := roles.Without(dataset.RoleTreatment)
		stageRoles[dataset.RoleTarget] = treatmentCol
		frame, err := train.Drop(targetCol)
		if err != nil {
			return nil, nil, err
		}
		return frame, stageRoles, nil
	case StageOutcomeControl, StageOutcomeTreatment:
		group := 0.0
		if kind == StageOutcomeTreatment {
			group = 1.0
		}
		filtered, err := train.FilterEq(treatmentCol, group)
		if err != nil {
			return nil, nil, err
		}
		frame, err := filtered.Drop(treatmentCol)
		if err != nil {
			return nil, nil, err
		}
		return frame, roles.Without(dataset.RoleTreatment), nil
	default:
		return nil, nil, errors.Newf(errors.ErrCodeUnknownStage, "unknown level-1 stage %q", kind)
	}
}

// prepareLevel2 applies the slicing rule of a second-level stage. The
// derived target is the residual between the prerequisite model's
// prediction on the stage's group and the observed target:
//
//	effect_control:   treatment == 0 rows, target = pred - target
//	effect_treatment: treatment == 1 rows, target = target - pred
func prepareLevel2(kind StageKind, train *dataset.Frame, roles dataset.Roles, prereq automl.Learner) (*dataset.Frame, dataset.Roles, error) {
	treatmentCol, err := roles.TreatmentColumn()
	if err != nil {
		return nil, nil, err
	}
	targetCol, err := roles.TargetColumn()
	if err != nil {
		return nil, nil, err
	}

	var group float64
	switch kind {
	case StageEffectControl:
		group = 0.0
	case StageEffectTreatment:
		group = 1.0
	default:
		return nil, nil, errors.Newf(errors.ErrCodeUnknownStage, "unknown level-2 stage %q", kind)
	}

	filtered, err := train.FilterEq(treatmentCol, group)
	if err != nil {
		return nil, nil, err
	}
	frame, err := filtered.Drop(treatmentCol)
	if err != nil {
		return nil, nil, err
	}

	oppositePred, err := prereq.Predict(frame)
	if err != nil {
		return nil, nil, err
	}
	target, err := frame.Column(targetCol)
	if err != nil {
		return nil, nil, err
	}

	derived := make([]float64, len(target))
	for i := range target {
		if kind == StageEffectControl {
			derived[i] = oppositePred[i] - target[i]
		} else {
			derived[i] = target[i] - oppositePred[i]
		}
	}
	frame, err = frame.SetColumn(targetCol, derived)
	if err != nil {
		return nil, nil, err
	}
	return frame, roles.Without(dataset.RoleTreatment), nil
}
