package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Dataset {
	return New(DefaultSchema(), []Row{
		{Features: []float64{0.1, 0.2}, Target: 10},
		{Features: []float64{0.3, 0.4}, Target: 30},
		{Features: []float64{0.5, 0.6}, Target: 50},
	})
}

func TestDatasetMatrices(t *testing.T) {
	ds := sample()

	X := ds.X()
	r, c := X.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 0.6, X.At(2, 1))

	y := ds.Y()
	r, c = y.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 1, c)
	assert.Equal(t, 30.0, y.At(1, 0))

	lo, hi := ds.TargetRange()
	assert.Equal(t, 10.0, lo)
	assert.Equal(t, 50.0, hi)
}

func TestDatasetColumn(t *testing.T) {
	ds := sample()

	acc, err := ds.Column(ColumnAccuracy)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.3, 0.5}, acc)

	goal, err := ds.Column(ColumnGoalScore)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 30, 50}, goal)

	_, err = ds.Column("Speed")
	assert.Error(t, err)
}

func TestDatasetSubset(t *testing.T) {
	ds := sample()

	sub, err := ds.Subset([]int{2, 0})
	require.NoError(t, err)
	require.Equal(t, 2, sub.Len())
	assert.Equal(t, 0, sub.Rows[0].Index)
	assert.Equal(t, 50.0, sub.Rows[0].Target)
	assert.Equal(t, 10.0, sub.Rows[1].Target)

	sub.Rows[0].Features[0] = 99
	assert.Equal(t, 0.5, ds.Rows[2].Features[0])

	_, err = ds.Subset([]int{3})
	assert.Error(t, err)
}

func TestSchemaValidate(t *testing.T) {
	assert.NoError(t, DefaultSchema().Validate())
	assert.Error(t, Schema{TargetColumn: "y"}.Validate())
	assert.Error(t, Schema{FeatureColumns: []string{"a"}}.Validate())
	assert.Error(t, Schema{FeatureColumns: []string{"a", "a"}, TargetColumn: "y"}.Validate())
	assert.Error(t, Schema{FeatureColumns: []string{"a"}, TargetColumn: "a"}.Validate())
}
