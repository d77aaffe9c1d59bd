package uplift

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autouplift/internal/automl"
	"autouplift/internal/dataset"
	uerrors "autouplift/internal/errors"
)

func TestGreedySearchDefaults(t *testing.T) {
	data, roles := upliftFrame(t, 200)

	search, err := NewAutoUplift(DefaultConfig(), nil, 0.2, nil, nil)
	require.NoError(t, err)
	require.NoError(t, search.Fit(context.Background(), data, roles))

	// balanced treatment assignment: only the two default candidates
	rating, err := search.Rating()
	require.NoError(t, err)
	require.Len(t, rating, 2)
	assert.Equal(t, 1, rating[0].Rank)
	assert.False(t, math.IsNaN(rating[0].Score))

	pred, err := search.Predict(data)
	require.NoError(t, err)
	assert.Len(t, pred, data.Len())

	spec, err := search.CreateBestStrategy(nil)
	require.NoError(t, err)
	assert.NotEmpty(t, spec.Stages)
}

func TestGreedySearchImbalanceAddsCandidate(t *testing.T) {
	// 90% treated, so the imbalance threshold trips
	n := 200
	x := make([]float64, n)
	treatment := make([]float64, n)
	target := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = float64(i%10) / 10.0
		if i%10 != 0 {
			treatment[i] = 1
		}
		if x[i] >= 0.5 || (treatment[i] == 1 && i%3 == 0) {
			target[i] = 1
		}
	}
	data, err := dataset.NewFrame(
		[]string{"x", "treatment", "target"},
		map[string][]float64{"x": x, "treatment": treatment, "target": target},
	)
	require.NoError(t, err)
	roles := dataset.Roles{dataset.RoleTarget: "target", dataset.RoleTreatment: "treatment"}

	search, err := NewAutoUplift(DefaultConfig(), nil, 0.2, nil, nil)
	require.NoError(t, err)
	require.NoError(t, search.Fit(context.Background(), data, roles))

	rating, err := search.Rating()
	require.NoError(t, err)
	require.Len(t, rating, 3)

	names := make([]string, len(rating))
	for i, row := range rating {
		names[i] = row.Assignment
	}
	assert.Contains(t, names, "__XLearner__MeanOutcome__")
}

func TestGreedySearchExplicitCandidates(t *testing.T) {
	data, roles := upliftFrame(t, 120)

	spec, err := testSpec(StrategyT)
	require.NoError(t, err)
	candidates := []GreedyCandidate{{Name: "__Custom__", Spec: spec}}

	search, err := NewAutoUplift(DefaultConfig(), candidates, 0.2, nil, nil)
	require.NoError(t, err)
	require.NoError(t, search.Fit(context.Background(), data, roles))

	rating, err := search.Rating()
	require.NoError(t, err)
	require.Len(t, rating, 1)
	assert.Equal(t, "__Custom__", rating[0].Assignment)

	best, err := search.CreateBestStrategy(automl.Params{"l2": 0.5})
	require.NoError(t, err)
	for _, wrapper := range best.Stages {
		assert.Equal(t, 0.5, wrapper.Params.Float("l2", 0))
	}
	// overrides never leak into the candidate spec
	for _, wrapper := range spec.Stages {
		assert.Zero(t, wrapper.Params.Float("l2", 0))
	}
}

func TestGreedySearchNotFitted(t *testing.T) {
	search, err := NewAutoUplift(DefaultConfig(), nil, 0.2, nil, nil)
	require.NoError(t, err)

	_, err = search.Predict(nil)
	assert.True(t, errors.Is(err, uerrors.ErrNotFitted))
	_, err = search.Rating()
	assert.True(t, errors.Is(err, uerrors.ErrNotFitted))
	_, err = search.CreateBestStrategy(nil)
	assert.True(t, errors.Is(err, uerrors.ErrNotFitted))
}

func TestGreedySearchInvalidTestSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TestSize = 1.5
	_, err := NewAutoUplift(cfg, nil, 0.2, nil, nil)
	assert.Error(t, err)
}
