package uplift

import (
	"autouplift/internal/automl"
)

// LearnerFactory constructs a live learner from parameters
type LearnerFactory func(automl.Params) automl.Learner

// LearnerWrapper is a deferred construction recipe for a candidate
// model: a display name, a factory and the parameters the factory
// will receive. Wrappers are cheap to copy and are only instantiated
// at the moment a training event actually happens.
type LearnerWrapper struct {
	Name   string
	New    LearnerFactory
	Params automl.Params
}

// Clone returns a wrapper with independently owned parameters
func (w LearnerWrapper) Clone() LearnerWrapper {
	return LearnerWrapper{Name: w.Name, New: w.New, Params: w.Params.Clone()}
}

// WithParams returns a clone with overrides merged into the params
func (w LearnerWrapper) WithParams(overrides automl.Params) LearnerWrapper {
	return LearnerWrapper{Name: w.Name, New: w.New, Params: w.Params.Merge(overrides)}
}

// Build instantiates the learner
func (w LearnerWrapper) Build() automl.Learner {
	return w.New(w.Params.Clone())
}

// LinearCandidate builds a linear-model wrapper for a task
func LinearCandidate(task automl.Task, params automl.Params) LearnerWrapper {
	merged := automl.Params{"task": task}.Merge(params)
	return LearnerWrapper{
		Name:   "__Linear__",
		New:    func(p automl.Params) automl.Learner { return automl.NewLinearLearner(p) },
		Params: merged,
	}
}

// MeanCandidate builds a mean-baseline wrapper
func MeanCandidate() LearnerWrapper {
	return LearnerWrapper{
		Name:   "__Mean__",
		New:    func(p automl.Params) automl.Learner { return automl.NewMeanLearner(p) },
		Params: automl.Params{},
	}
}
