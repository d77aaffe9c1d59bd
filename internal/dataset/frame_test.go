package dataset

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uerrors "autouplift/internal/errors"
)

func testFrame(t *testing.T) *Frame {
	t.Helper()
	f, err := NewFrame(
		[]string{"x", "treatment", "target"},
		map[string][]float64{
			"x":         {1, 2, 3, 4},
			"treatment": {0, 1, 0, 1},
			"target":    {0, 1, 1, 0},
		},
	)
	require.NoError(t, err)
	return f
}

func TestNewFrameLengthMismatch(t *testing.T) {
	_, err := NewFrame(
		[]string{"a", "b"},
		map[string][]float64{"a": {1, 2}, "b": {1}},
	)
	assert.Error(t, err)
}

func TestNewFrameMissingColumn(t *testing.T) {
	_, err := NewFrame([]string{"a"}, map[string][]float64{})
	assert.Error(t, err)
}

func TestFilterEq(t *testing.T) {
	f := testFrame(t)

	treated, err := f.FilterEq("treatment", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, treated.Len())

	x, err := treated.Column("x")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4}, x)
}

func TestDrop(t *testing.T) {
	f := testFrame(t)

	dropped, err := f.Drop("treatment")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "target"}, dropped.Columns())
	assert.False(t, dropped.HasColumn("treatment"))
	// the source frame is untouched
	assert.True(t, f.HasColumn("treatment"))

	_, err = f.Drop("nope")
	assert.Error(t, err)
}

func TestSetColumn(t *testing.T) {
	f := testFrame(t)

	replaced, err := f.SetColumn("target", []float64{9, 9, 9, 9})
	require.NoError(t, err)
	got, _ := replaced.Column("target")
	assert.Equal(t, []float64{9, 9, 9, 9}, got)

	original, _ := f.Column("target")
	assert.Equal(t, []float64{0, 1, 1, 0}, original)

	appended, err := f.SetColumn("extra", []float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "treatment", "target", "extra"}, appended.Columns())

	_, err = f.SetColumn("short", []float64{1})
	assert.Error(t, err)
}

func TestSelectOrder(t *testing.T) {
	f := testFrame(t)
	sel := f.Select([]int{3, 0})
	x, _ := sel.Column("x")
	assert.Equal(t, []float64{4, 1}, x)
}

func TestMean(t *testing.T) {
	f := testFrame(t)
	mean, err := f.Mean("treatment")
	require.NoError(t, err)
	assert.Equal(t, 0.5, mean)

	empty := f.Select(nil)
	mean, err = empty.Mean("x")
	require.NoError(t, err)
	assert.Zero(t, mean)
}

func TestRolesValidate(t *testing.T) {
	f := testFrame(t)

	roles := Roles{RoleTarget: "target", RoleTreatment: "treatment"}
	assert.NoError(t, roles.Validate(f))

	missing := Roles{RoleTarget: "target"}
	err := missing.Validate(f)
	assert.True(t, errors.Is(err, uerrors.New(uerrors.ErrCodeMissingRole, "", nil)))

	wrongCol := Roles{RoleTarget: "target", RoleTreatment: "assignment"}
	assert.Error(t, wrongCol.Validate(f))
}

func TestRolesWithout(t *testing.T) {
	roles := Roles{RoleTarget: "target", RoleTreatment: "treatment"}
	trimmed := roles.Without(RoleTreatment)

	_, err := trimmed.TreatmentColumn()
	assert.Error(t, err)
	// the original keeps its treatment role
	col, err := roles.TreatmentColumn()
	require.NoError(t, err)
	assert.Equal(t, "treatment", col)
}
