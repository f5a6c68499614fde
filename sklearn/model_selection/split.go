// Package model_selection splits datasets into train and test partitions.
package model_selection

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/lidarml/dataset"
	"github.com/YuminosukeSato/lidarml/pkg/errors"
)

// DefaultTestSize and DefaultRandomState reproduce the reference 80/20 split.
const (
	DefaultTestSize    = 0.2
	DefaultRandomState = 42
)

// TrainTestSplit returns disjoint train and test row indices covering 0..n-1.
//
// The test side holds ceil(testSize*n) rows. Indices come from a permutation
// drawn from a PCG source seeded with randomState: its first nTest entries form
// the test set and the remainder the train set. The same arguments always
// produce the same slices.
func TrainTestSplit(n int, testSize float64, randomState int64) (train, test []int, err error) {
	nTrain, nTest, err := splitSizes(n, testSize)
	if err != nil {
		return nil, nil, err
	}

	seed := uint64(randomState)
	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)

	test = append([]int(nil), perm[:nTest]...)
	train = append(make([]int, 0, nTrain), perm[nTest:]...)
	return train, test, nil
}

// SplitDataset applies TrainTestSplit to ds and returns the two subsets, each
// renumbered from zero. ds is not modified.
func SplitDataset(ds *dataset.Dataset, testSize float64, randomState int64) (train, test *dataset.Dataset, err error) {
	if ds == nil {
		return nil, nil, errors.NewValueError("SplitDataset", "dataset is nil")
	}
	trainIdx, testIdx, err := TrainTestSplit(ds.Len(), testSize, randomState)
	if err != nil {
		return nil, nil, err
	}
	if train, err = ds.Subset(trainIdx); err != nil {
		return nil, nil, err
	}
	if test, err = ds.Subset(testIdx); err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

func splitSizes(n int, testSize float64) (nTrain, nTest int, err error) {
	if n <= 0 {
		return 0, 0, errors.NewModelError("TrainTestSplit", "empty data", errors.ErrEmptyData)
	}
	if math.IsNaN(testSize) || testSize <= 0 || testSize >= 1 {
		return 0, 0, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("test_size=%v should be in the open interval (0, 1)", testSize))
	}

	nTest = int(math.Ceil(testSize * float64(n)))
	nTrain = n - nTest
	if nTrain == 0 {
		return 0, 0, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("with n_samples=%d and test_size=%v the train set would be empty", n, testSize))
	}
	return nTrain, nTest, nil
}
