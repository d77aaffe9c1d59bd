package automl

import (
	"context"

	"autouplift/internal/dataset"
	"autouplift/internal/errors"
)

// MeanLearner predicts the training-set mean of the target for every
// row. It serves as the cheapest possible baseline candidate.
type MeanLearner struct {
	mean   float64
	fitted bool
}

// NewMeanLearner creates a mean learner; params are ignored
func NewMeanLearner(_ Params) *MeanLearner {
	return &MeanLearner{}
}

// Fit records the target mean
func (m *MeanLearner) Fit(_ context.Context, train *dataset.Frame, roles dataset.Roles) error {
	targetCol, err := roles.TargetColumn()
	if err != nil {
		return err
	}
	if train.Len() == 0 {
		return errors.ErrEmptyTrainingSlice
	}
	mean, err := train.Mean(targetCol)
	if err != nil {
		return err
	}
	m.mean = mean
	m.fitted = true
	return nil
}

// Predict returns the recorded mean for every row
func (m *MeanLearner) Predict(data *dataset.Frame) ([]float64, error) {
	if !m.fitted {
		return nil, errors.ErrNotFitted
	}
	out := make([]float64, data.Len())
	for i := range out {
		out[i] = m.mean
	}
	return out, nil
}
