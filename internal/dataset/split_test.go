package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitTestFrame(t *testing.T, n int) (*Frame, Roles) {
	t.Helper()
	ids := make([]float64, n)
	target := make([]float64, n)
	treatment := make([]float64, n)
	for i := 0; i < n; i++ {
		ids[i] = float64(i)
		treatment[i] = float64(i % 2)
		target[i] = float64((i / 2) % 2)
	}
	f, err := NewFrame(
		[]string{"id", "treatment", "target"},
		map[string][]float64{"id": ids, "treatment": treatment, "target": target},
	)
	require.NoError(t, err)
	return f, Roles{RoleTarget: "target", RoleTreatment: "treatment"}
}

func TestTrainTestSplitSizes(t *testing.T) {
	f, roles := splitTestFrame(t, 100)

	train, test, err := TrainTestSplit(f, roles, 0.2, 1)
	require.NoError(t, err)

	assert.Equal(t, 80, train.Len())
	assert.Equal(t, 20, test.Len())
}

func TestTrainTestSplitPartition(t *testing.T) {
	f, roles := splitTestFrame(t, 40)

	train, test, err := TrainTestSplit(f, roles, 0.25, 7)
	require.NoError(t, err)

	seen := make(map[float64]int)
	for _, part := range []*Frame{train, test} {
		ids, err := part.Column("id")
		require.NoError(t, err)
		for _, id := range ids {
			seen[id]++
		}
	}
	assert.Len(t, seen, 40)
	for id, count := range seen {
		assert.Equalf(t, 1, count, "row %v appears %d times", id, count)
	}
}

func TestTrainTestSplitStratified(t *testing.T) {
	f, roles := splitTestFrame(t, 80)

	_, test, err := TrainTestSplit(f, roles, 0.25, 3)
	require.NoError(t, err)

	// 4 strata of 20 rows each, 5 per stratum land in test
	target, _ := test.Column("target")
	treatment, _ := test.Column("treatment")
	counts := make(map[float64]int)
	for i := range target {
		counts[target[i]+10*treatment[i]]++
	}
	require.Len(t, counts, 4)
	for key, count := range counts {
		assert.Equalf(t, 5, count, "stratum %v has %d test rows", key, count)
	}
}

func TestTrainTestSplitDeterministic(t *testing.T) {
	f, roles := splitTestFrame(t, 60)

	_, test1, err := TrainTestSplit(f, roles, 0.2, 11)
	require.NoError(t, err)
	_, test2, err := TrainTestSplit(f, roles, 0.2, 11)
	require.NoError(t, err)

	ids1, _ := test1.Column("id")
	ids2, _ := test2.Column("id")
	assert.Equal(t, ids1, ids2)
}

func TestTrainTestSplitInvalidSize(t *testing.T) {
	f, roles := splitTestFrame(t, 10)

	_, _, err := TrainTestSplit(f, roles, 0, 1)
	assert.Error(t, err)
	_, _, err = TrainTestSplit(f, roles, 1, 1)
	assert.Error(t, err)
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	content := "x,treatment,target\n1.5,0,1\n2.5,1,0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	f, err := LoadCSV(path)
	require.NoError(t, err)

	assert.Equal(t, 2, f.Len())
	assert.Equal(t, []string{"x", "treatment", "target"}, f.Columns())
	x, _ := f.Column("x")
	assert.Equal(t, []float64{1.5, 2.5}, x)
}

func TestLoadCSVBadValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("x\nabc\n"), 0o644))

	_, err := LoadCSV(path)
	assert.Error(t, err)
}
