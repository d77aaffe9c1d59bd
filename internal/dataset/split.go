package dataset

import (
	"math/rand"

	"autouplift/internal/errors"
)

// TrainTestSplit splits a frame into train and test parts, stratified
// on target + 10*treatment so both treatment groups and both outcome
// classes keep their proportions across the split. testSize is the
// fraction of rows placed in the test part.
func TrainTestSplit(f *Frame, roles Roles, testSize float64, seed int64) (*Frame, *Frame, error) {
	if testSize <= 0.0 || testSize >= 1.0 {
		return nil, nil, errors.Newf(errors.ErrCodeInvalidConfig,
			"test size must be in (0, 1), got %v", testSize)
	}
	if err := roles.Validate(f); err != nil {
		return nil, nil, err
	}

	targetCol, _ := roles.TargetColumn()
	treatmentCol, _ := roles.TreatmentColumn()
	target, _ := f.Column(targetCol)
	treatment, _ := f.Column(treatmentCol)

	strata := make(map[float64][]int)
	order := make([]float64, 0)
	for i := 0; i < f.Len(); i++ {
		key := target[i] + 10*treatment[i]
		if _, ok := strata[key]; !ok {
			order = append(order, key)
		}
		strata[key] = append(strata[key], i)
	}

	rng := rand.New(rand.NewSource(seed))
	var trainIdx, testIdx []int
	for _, key := range order {
		idx := strata[key]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		nTest := int(float64(len(idx)) * testSize)
		if nTest == 0 && len(idx) > 1 {
			nTest = 1
		}
		testIdx = append(testIdx, idx[:nTest]...)
		trainIdx = append(trainIdx, idx[nTest:]...)
	}

	return f.Select(trainIdx), f.Select(testIdx), nil
}
