package model_selection

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/lidarml/dataset"
	"github.com/YuminosukeSato/lidarml/pkg/errors"
)

func TestTrainTestSplitSizes(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		testSize  float64
		wantTrain int
		wantTest  int
	}{
		{"reference split", 100, 0.2, 80, 20},
		{"rounds test side up", 99, 0.2, 79, 20},
		{"small table", 5, 0.2, 4, 1},
		{"half", 10, 0.5, 5, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			train, test, err := TrainTestSplit(tt.n, tt.testSize, DefaultRandomState)
			require.NoError(t, err)
			assert.Len(t, train, tt.wantTrain)
			assert.Len(t, test, tt.wantTest)
		})
	}
}

func TestTrainTestSplitDisjointAndCovering(t *testing.T) {
	train, test, err := TrainTestSplit(100, 0.2, 42)
	require.NoError(t, err)

	all := append(append([]int(nil), train...), test...)
	sort.Ints(all)
	for i, idx := range all {
		assert.Equal(t, i, idx)
	}
}

func TestTrainTestSplitDeterministic(t *testing.T) {
	train1, test1, err := TrainTestSplit(100, 0.2, 42)
	require.NoError(t, err)
	train2, test2, err := TrainTestSplit(100, 0.2, 42)
	require.NoError(t, err)

	assert.Equal(t, train1, train2)
	assert.Equal(t, test1, test2)

	_, test3, err := TrainTestSplit(100, 0.2, 7)
	require.NoError(t, err)
	assert.NotEqual(t, test1, test3)
}

func TestTrainTestSplitInvalid(t *testing.T) {
	for _, size := range []float64{0, 1, -0.1, 1.5} {
		_, _, err := TrainTestSplit(10, size, 42)
		var ve *errors.ValueError
		assert.True(t, errors.As(err, &ve), "test_size=%v", size)
	}

	_, _, err := TrainTestSplit(1, 0.2, 42)
	assert.Error(t, err)

	_, _, err = TrainTestSplit(0, 0.2, 42)
	assert.ErrorIs(t, err, errors.ErrEmptyData)
}

func TestSplitDataset(t *testing.T) {
	rows := make([]dataset.Row, 10)
	for i := range rows {
		rows[i] = dataset.Row{Features: []float64{float64(i), float64(i)}, Target: float64(i)}
	}
	ds := dataset.New(dataset.DefaultSchema(), rows)

	train, test, err := SplitDataset(ds, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, 8, train.Len())
	assert.Equal(t, 2, test.Len())
	assert.Equal(t, 10, ds.Len())

	seen := map[float64]bool{}
	for _, part := range []*dataset.Dataset{train, test} {
		for i, r := range part.Rows {
			assert.Equal(t, i, r.Index)
			assert.False(t, seen[r.Target])
			seen[r.Target] = true
		}
	}
	assert.Len(t, seen, 10)
}
