// Package automl provides the trainable-model boundary consumed by the
// uplift search: anything that can fit a tabular frame and produce a
// flat numeric prediction.
package automl

import (
	"context"

	"autouplift/internal/dataset"
)

// Task is the prediction task kind of a learner
type Task string

const (
	TaskBinary Task = "binary"
	TaskReg    Task = "reg"
)

// Learner is a trainable model
type Learner interface {
	Fit(ctx context.Context, train *dataset.Frame, roles dataset.Roles) error
	Predict(data *dataset.Frame) ([]float64, error)
}

// Params holds learner construction parameters. Values are scalars,
// nested Params or []Params; Clone copies all of them.
type Params map[string]interface{}

// Clone returns a deep copy of the parameters
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case Params:
		return val.Clone()
	case map[string]interface{}:
		return Params(val).Clone()
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	default:
		return v
	}
}

// Merge returns a copy of p with overrides applied on top
func (p Params) Merge(overrides Params) Params {
	out := p.Clone()
	if out == nil {
		out = make(Params, len(overrides))
	}
	for k, v := range overrides {
		out[k] = cloneValue(v)
	}
	return out
}

// Float reads a float parameter with a default
func (p Params) Float(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		switch val := v.(type) {
		case float64:
			return val
		case int:
			return float64(val)
		}
	}
	return def
}

// Int reads an int parameter with a default
func (p Params) Int(key string, def int) int {
	if v, ok := p[key]; ok {
		switch val := v.(type) {
		case int:
			return val
		case float64:
			return int(val)
		}
	}
	return def
}

// String reads a string parameter with a default
func (p Params) String(key string, def string) string {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// TaskOf reads the task parameter, falling back to def
func (p Params) TaskOf(def Task) Task {
	if v, ok := p["task"]; ok {
		switch val := v.(type) {
		case Task:
			return val
		case string:
			return Task(val)
		}
	}
	return def
}
