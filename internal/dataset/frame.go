package dataset

import (
	"autouplift/internal/errors"
)

// Frame is an in-memory numeric table with named columns.
// Mutating operations return a new Frame; column slices are shared
// between frames until a column is replaced, so callers must treat
// returned column data as read-only.
type Frame struct {
	names []string
	data  map[string][]float64
	n     int
}

// NewFrame creates a frame from column names and data.
// All columns must have the same length.
func NewFrame(names []string, data map[string][]float64) (*Frame, error) {
	n := -1
	for _, name := range names {
		col, ok := data[name]
		if !ok {
			return nil, errors.Newf(errors.ErrCodeMissingColumn, "column %q has no data", name)
		}
		if n == -1 {
			n = len(col)
		} else if len(col) != n {
			return nil, errors.Newf(errors.ErrCodeInvalidConfig,
				"column %q has %d rows, expected %d", name, len(col), n)
		}
	}
	if n == -1 {
		n = 0
	}
	return &Frame{names: append([]string(nil), names...), data: data, n: n}, nil
}

// Len returns the number of rows
func (f *Frame) Len() int {
	return f.n
}

// Columns returns the column names in order
func (f *Frame) Columns() []string {
	return append([]string(nil), f.names...)
}

// HasColumn reports whether the frame contains a column
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.data[name]
	return ok
}

// Column returns the data of a column
func (f *Frame) Column(name string) ([]float64, error) {
	col, ok := f.data[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeMissingColumn, "no column %q", name)
	}
	return col, nil
}

// Mean returns the mean of a column; zero for an empty frame
func (f *Frame) Mean(name string) (float64, error) {
	col, err := f.Column(name)
	if err != nil {
		return 0, err
	}
	if len(col) == 0 {
		return 0, nil
	}
	var sum float64
	for _, v := range col {
		sum += v
	}
	return sum / float64(len(col)), nil
}

// FilterEq returns the rows where column equals value
func (f *Frame) FilterEq(name string, value float64) (*Frame, error) {
	col, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	idx := make([]int, 0, len(col))
	for i, v := range col {
		if v == value {
			idx = append(idx, i)
		}
	}
	return f.Select(idx), nil
}

// Select returns a frame with only the given rows, in the given order
func (f *Frame) Select(idx []int) *Frame {
	data := make(map[string][]float64, len(f.names))
	for _, name := range f.names {
		src := f.data[name]
		col := make([]float64, len(idx))
		for j, i := range idx {
			col[j] = src[i]
		}
		data[name] = col
	}
	return &Frame{names: append([]string(nil), f.names...), data: data, n: len(idx)}
}

// Drop returns a frame without the given column
func (f *Frame) Drop(name string) (*Frame, error) {
	if !f.HasColumn(name) {
		return nil, errors.Newf(errors.ErrCodeMissingColumn, "no column %q", name)
	}
	names := make([]string, 0, len(f.names)-1)
	data := make(map[string][]float64, len(f.names)-1)
	for _, n := range f.names {
		if n == name {
			continue
		}
		names = append(names, n)
		data[n] = f.data[n]
	}
	return &Frame{names: names, data: data, n: f.n}, nil
}

// SetColumn returns a frame with the column replaced or appended
func (f *Frame) SetColumn(name string, values []float64) (*Frame, error) {
	if len(values) != f.n {
		return nil, errors.Newf(errors.ErrCodeInvalidConfig,
			"column %q has %d values, frame has %d rows", name, len(values), f.n)
	}
	names := append([]string(nil), f.names...)
	if !f.HasColumn(name) {
		names = append(names, name)
	}
	data := make(map[string][]float64, len(names))
	for _, n := range f.names {
		data[n] = f.data[n]
	}
	data[name] = values
	return &Frame{names: names, data: data, n: f.n}, nil
}
