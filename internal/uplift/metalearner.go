package uplift

import (
	"context"

	"autouplift/internal/automl"
	"autouplift/internal/dataset"
	"autouplift/internal/errors"
)

// MetaLearner is a composed uplift predictor built from staged
// sub-models
type MetaLearner interface {
	Fit(ctx context.Context, train *dataset.Frame, roles dataset.Roles) error
	Predict(data *dataset.Frame) ([]float64, error)
}

// TLearner predicts uplift as the difference between an outcome model
// fit on the treated group and one fit on the control group.
type TLearner struct {
	Control   automl.Learner
	Treatment automl.Learner
	fitted    bool
}

// NewTLearner creates an unfitted T-learner
func NewTLearner(control, treatment automl.Learner) *TLearner {
	return &TLearner{Control: control, Treatment: treatment}
}

// NewFittedTLearner composes already-trained stage models into a
// ready-to-use T-learner
func NewFittedTLearner(control, treatment automl.Learner) *TLearner {
	return &TLearner{Control: control, Treatment: treatment, fitted: true}
}

// Fit trains both outcome models on their group slices
func (t *TLearner) Fit(ctx context.Context, train *dataset.Frame, roles dataset.Roles) error {
	controlData, controlRoles, err := prepareLevel1(StageOutcomeControl, train, roles)
	if err != nil {
		return err
	}
	if err := t.Control.Fit(ctx, controlData, controlRoles); err != nil {
		return err
	}

	treatmentData, treatmentRoles, err := prepareLevel1(StageOutcomeTreatment, train, roles)
	if err != nil {
		return err
	}
	if err := t.Treatment.Fit(ctx, treatmentData, treatmentRoles); err != nil {
		return err
	}

	t.fitted = true
	return nil
}

// Predict returns treatment outcome minus control outcome
func (t *TLearner) Predict(data *dataset.Frame) ([]float64, error) {
	if !t.fitted {
		return nil, errors.ErrNotFitted
	}
	controlPred, err := t.Control.Predict(data)
	if err != nil {
		return nil, err
	}
	treatmentPred, err := t.Treatment.Predict(data)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(controlPred))
	for i := range out {
		out[i] = treatmentPred[i] - controlPred[i]
	}
	return out, nil
}

// XLearner combines group outcome models, residual effect models
// conditioned on the opposite group's outcome model, and a propensity
// model weighting the two effect estimates.
type XLearner struct {
	OutcomeControl   automl.Learner
	OutcomeTreatment automl.Learner
	Propensity       automl.Learner
	EffectControl    automl.Learner
	EffectTreatment  automl.Learner
	fitted           bool
}

// NewXLearner creates an unfitted X-learner
func NewXLearner(outcomeControl, outcomeTreatment, propensity, effectControl, effectTreatment automl.Learner) *XLearner {
	return &XLearner{
		OutcomeControl:   outcomeControl,
		OutcomeTreatment: outcomeTreatment,
		Propensity:       propensity,
		EffectControl:    effectControl,
		EffectTreatment:  effectTreatment,
	}
}

// NewFittedXLearner composes already-trained stage models into a
// ready-to-use X-learner
func NewFittedXLearner(outcomeControl, outcomeTreatment, propensity, effectControl, effectTreatment automl.Learner) *XLearner {
	x := NewXLearner(outcomeControl, outcomeTreatment, propensity, effectControl, effectTreatment)
	x.fitted = true
	return x
}

// Fit trains all five stages in dependency order
func (x *XLearner) Fit(ctx context.Context, train *dataset.Frame, roles dataset.Roles) error {
	for _, step := range []struct {
		kind    StageKind
		learner automl.Learner
	}{
		{StageOutcomeControl, x.OutcomeControl},
		{StageOutcomeTreatment, x.OutcomeTreatment},
		{StagePropensity, x.Propensity},
	} {
		data, stageRoles, err := prepareLevel1(step.kind, train, roles)
		if err != nil {
			return err
		}
		if err := step.learner.Fit(ctx, data, stageRoles); err != nil {
			return err
		}
	}

	for _, step := range []struct {
		kind    StageKind
		prereq  automl.Learner
		learner automl.Learner
	}{
		{StageEffectControl, x.OutcomeTreatment, x.EffectControl},
		{StageEffectTreatment, x.OutcomeControl, x.EffectTreatment},
	} {
		data, stageRoles, err := prepareLevel2(step.kind, train, roles, step.prereq)
		if err != nil {
			return err
		}
		if err := step.learner.Fit(ctx, data, stageRoles); err != nil {
			return err
		}
	}

	x.fitted = true
	return nil
}

// Predict returns p*effect_treatment + (1-p)*effect_control
func (x *XLearner) Predict(data *dataset.Frame) ([]float64, error) {
	if !x.fitted {
		return nil, errors.ErrNotFitted
	}
	propensity, err := x.Propensity.Predict(data)
	if err != nil {
		return nil, err
	}
	effectControl, err := x.EffectControl.Predict(data)
	if err != nil {
		return nil, err
	}
	effectTreatment, err := x.EffectTreatment.Predict(data)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(propensity))
	for i := range out {
		out[i] = propensity[i]*effectTreatment[i] + (1-propensity[i])*effectControl[i]
	}
	return out, nil
}

// StrategySpec is a re-instantiable description of a strategy: the
// strategy type plus the candidate wrapper assigned to each stage.
// It holds recipes, not trained models, so the strategy can be
// rebuilt and retrained later, optionally with adjusted parameters.
type StrategySpec struct {
	Name     string
	Strategy StrategyKind
	Stages   map[ChainName]LearnerWrapper
}

// Clone returns a deep copy of the spec
func (s *StrategySpec) Clone() *StrategySpec {
	stages := make(map[ChainName]LearnerWrapper, len(s.Stages))
	for chain, wrapper := range s.Stages {
		stages[chain] = wrapper.Clone()
	}
	return &StrategySpec{Name: s.Name, Strategy: s.Strategy, Stages: stages}
}

// UpdateBaseParams applies parameter overrides uniformly to every
// stage wrapper in the spec. The receiver is mutated; callers wanting
// to preserve the original should Clone first.
func (s *StrategySpec) UpdateBaseParams(overrides automl.Params) {
	for chain, wrapper := range s.Stages {
		s.Stages[chain] = wrapper.WithParams(overrides)
	}
}

// Instantiate builds an unfitted meta-learner from the spec
func (s *StrategySpec) Instantiate() (MetaLearner, error) {
	switch s.Strategy {
	case StrategyT:
		return NewTLearner(
			s.Stages[Level1Chain(StageOutcomeControl)].Build(),
			s.Stages[Level1Chain(StageOutcomeTreatment)].Build(),
		), nil
	case StrategyX:
		return NewXLearner(
			s.Stages[Level1Chain(StageOutcomeControl)].Build(),
			s.Stages[Level1Chain(StageOutcomeTreatment)].Build(),
			s.Stages[Level1Chain(StagePropensity)].Build(),
			s.Stages[Level2Chain(StageOutcomeTreatment, StageEffectControl)].Build(),
			s.Stages[Level2Chain(StageOutcomeControl, StageEffectTreatment)].Build(),
		), nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnknownStrategy, "unknown strategy type %q", s.Strategy)
	}
}
