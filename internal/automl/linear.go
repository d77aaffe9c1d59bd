package automl

import (
	"context"
	"math"

	"autouplift/internal/dataset"
	"autouplift/internal/errors"
)

// LinearLearner is a linear model: ridge regression for regression
// tasks, logistic regression trained by gradient descent for binary
// tasks. It is the default lightweight candidate for every stage.
type LinearLearner struct {
	task     Task
	l2       float64
	epochs   int
	learning float64

	weights  []float64
	bias     float64
	features []string
	fitted   bool
}

// NewLinearLearner creates a linear learner from params.
// Recognized params: task, l2, epochs, learning_rate.
func NewLinearLearner(params Params) *LinearLearner {
	return &LinearLearner{
		task:     params.TaskOf(TaskReg),
		l2:       params.Float("l2", 1e-3),
		epochs:   params.Int("epochs", 200),
		learning: params.Float("learning_rate", 0.1),
	}
}

// Fit trains the model on the frame, using the target role column as
// the label and every other column as a feature.
func (l *LinearLearner) Fit(ctx context.Context, train *dataset.Frame, roles dataset.Roles) error {
	targetCol, err := roles.TargetColumn()
	if err != nil {
		return err
	}
	if train.Len() == 0 {
		return errors.WithDetails(errors.ErrCodeEmptyTrainingSlice,
			"stage training slice contains no rows", "linear learner fit on zero rows", nil)
	}

	features, x, y, err := designMatrix(train, targetCol)
	if err != nil {
		return err
	}
	l.features = features

	switch l.task {
	case TaskBinary:
		l.weights, l.bias = fitLogistic(ctx, x, y, l.l2, l.epochs, l.learning)
	case TaskReg:
		l.weights, l.bias, err = fitRidge(x, y, l.l2)
		if err != nil {
			return err
		}
	default:
		return errors.Newf(errors.ErrCodeInvalidConfig, "unsupported task %q", l.task)
	}

	l.fitted = true
	return nil
}

// Predict returns model outputs for the frame. Binary models return
// probabilities, regression models raw values.
func (l *LinearLearner) Predict(data *dataset.Frame) ([]float64, error) {
	if !l.fitted {
		return nil, errors.ErrNotFitted
	}
	out := make([]float64, data.Len())
	for j, name := range l.features {
		col, err := data.Column(name)
		if err != nil {
			return nil, err
		}
		w := l.weights[j]
		for i, v := range col {
			out[i] += w * v
		}
	}
	for i := range out {
		out[i] += l.bias
		if l.task == TaskBinary {
			out[i] = sigmoid(out[i])
		}
	}
	return out, nil
}

// designMatrix extracts feature columns and the label column
func designMatrix(f *dataset.Frame, targetCol string) ([]string, [][]float64, []float64, error) {
	y, err := f.Column(targetCol)
	if err != nil {
		return nil, nil, nil, err
	}

	var features []string
	for _, name := range f.Columns() {
		if name != targetCol {
			features = append(features, name)
		}
	}

	x := make([][]float64, f.Len())
	for i := range x {
		x[i] = make([]float64, len(features))
	}
	for j, name := range features {
		col, _ := f.Column(name)
		for i, v := range col {
			x[i][j] = v
		}
	}
	return features, x, y, nil
}

// fitRidge solves (X'X + l2*I) w = X'y by Gaussian elimination,
// with an intercept column appended.
func fitRidge(x [][]float64, y []float64, l2 float64) ([]float64, float64, error) {
	n := len(x)
	d := 0
	if n > 0 {
		d = len(x[0])
	}
	dim := d + 1 // intercept last

	a := make([][]float64, dim)
	for i := range a {
		a[i] = make([]float64, dim+1)
	}
	row := make([]float64, dim)
	for i := 0; i < n; i++ {
		copy(row, x[i])
		row[d] = 1.0
		for p := 0; p < dim; p++ {
			for q := 0; q < dim; q++ {
				a[p][q] += row[p] * row[q]
			}
			a[p][dim] += row[p] * y[i]
		}
	}
	for p := 0; p < d; p++ {
		a[p][p] += l2
	}

	// forward elimination with partial pivoting
	for p := 0; p < dim; p++ {
		pivot := p
		for q := p + 1; q < dim; q++ {
			if math.Abs(a[q][p]) > math.Abs(a[pivot][p]) {
				pivot = q
			}
		}
		a[p], a[pivot] = a[pivot], a[p]
		if math.Abs(a[p][p]) < 1e-12 {
			continue
		}
		for q := p + 1; q < dim; q++ {
			factor := a[q][p] / a[p][p]
			for r := p; r <= dim; r++ {
				a[q][r] -= factor * a[p][r]
			}
		}
	}

	sol := make([]float64, dim)
	for p := dim - 1; p >= 0; p-- {
		if math.Abs(a[p][p]) < 1e-12 {
			sol[p] = 0
			continue
		}
		v := a[p][dim]
		for q := p + 1; q < dim; q++ {
			v -= a[p][q] * sol[q]
		}
		sol[p] = v / a[p][p]
	}

	return sol[:d], sol[d], nil
}

// fitLogistic runs full-batch gradient descent
func fitLogistic(ctx context.Context, x [][]float64, y []float64, l2 float64, epochs int, lr float64) ([]float64, float64) {
	n := len(x)
	d := 0
	if n > 0 {
		d = len(x[0])
	}
	w := make([]float64, d)
	var b float64

	grad := make([]float64, d)
	for epoch := 0; epoch < epochs; epoch++ {
		select {
		case <-ctx.Done():
			return w, b
		default:
		}

		for j := range grad {
			grad[j] = 0
		}
		var gradB float64
		for i := 0; i < n; i++ {
			z := b
			for j := 0; j < d; j++ {
				z += w[j] * x[i][j]
			}
			diff := sigmoid(z) - y[i]
			for j := 0; j < d; j++ {
				grad[j] += diff * x[i][j]
			}
			gradB += diff
		}
		scale := lr / float64(n)
		for j := 0; j < d; j++ {
			w[j] -= scale * (grad[j] + l2*w[j])
		}
		b -= scale * gradB
	}
	return w, b
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
