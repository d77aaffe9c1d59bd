package uplift

import (
	"sort"

	"autouplift/internal/errors"
)

// MetricFunc scores an uplift prediction against the held-out target
// and treatment assignment. Implementations must be pure functions of
// their inputs.
type MetricFunc func(target, pred, treatment []float64, metric string, normed bool) (float64, error)

// Supported metric names
const (
	MetricQini    = "qini"
	MetricAdjQini = "adj_qini"
)

// UpliftAUC computes the area under the Qini curve of a prediction.
// Rows are ranked by predicted uplift, descending; at each prefix the
// curve value is the incremental number of responders attributable to
// treatment:
//
//	q(k) = Yt(k) - Yc(k) * Nt(k)/Nc(k)
//
// "qini" is the raw area, "adj_qini" subtracts the random-targeting
// diagonal. With normed, the area is divided by the sample count so
// scores are comparable across split sizes.
func UpliftAUC(target, pred, treatment []float64, metric string, normed bool) (float64, error) {
	n := len(target)
	if n == 0 {
		return 0, errors.Newf(errors.ErrCodeMetricFailed, "empty held-out split")
	}
	if len(pred) != n || len(treatment) != n {
		return 0, errors.Newf(errors.ErrCodeMetricFailed,
			"length mismatch: target %d, pred %d, treatment %d", n, len(pred), len(treatment))
	}
	switch metric {
	case MetricQini, MetricAdjQini:
	default:
		return 0, errors.Newf(errors.ErrCodeMetricFailed, "unknown uplift metric %q", metric)
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return pred[idx[a]] > pred[idx[b]]
	})

	var nt, nc, yt, yc float64
	area := 0.0
	prev := 0.0
	step := 1.0 / float64(n)
	final := 0.0
	for _, i := range idx {
		if treatment[i] == 1 {
			nt++
			yt += target[i]
		} else {
			nc++
			yc += target[i]
		}
		q := yt
		if nc > 0 {
			q = yt - yc*nt/nc
		}
		area += (q + prev) / 2 * step
		prev = q
		final = q
	}

	score := area
	if metric == MetricAdjQini {
		score -= final / 2
	}
	if normed {
		score /= float64(n)
	}
	return score, nil
}
