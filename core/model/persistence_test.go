package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/lidarml/pkg/errors"
)

func fittedWeights() *ModelWeights {
	return &ModelWeights{
		ModelType:    "LinearRegression",
		Version:      WeightsFormatVersion,
		Coefficients: []float64{0.12, -0.034},
		Intercept:    0.51,
		Features:     []string{"Accuracy", "Score"},
		Target:       "Goal Score",
		Metadata:     map[string]string{"n_samples": "80"},
		IsFitted:     true,
	}
}

func TestSaveLoadWeights(t *testing.T) {
	for _, name := range []string{"linear_regression_model.pkl", "weights.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, SaveWeights(fittedWeights(), path))

			loaded, err := LoadWeights(path)
			require.NoError(t, err)

			want := fittedWeights()
			assert.Equal(t, want.Coefficients, loaded.Coefficients)
			assert.Equal(t, want.Intercept, loaded.Intercept)
			assert.Equal(t, want.Features, loaded.Features)
			assert.Equal(t, "80", loaded.Metadata["n_samples"])
			assert.Equal(t, want.ComputeChecksum(), loaded.Checksum)
		})
	}
}

func TestSaveWeightsDoesNotMutateInput(t *testing.T) {
	w := fittedWeights()
	require.NoError(t, SaveWeights(w, filepath.Join(t.TempDir(), "w.pkl")))
	assert.Empty(t, w.Checksum)
}

func TestLoadWeightsDetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.json")
	require.NoError(t, SaveWeights(fittedWeights(), path))

	loaded, err := LoadWeights(path)
	require.NoError(t, err)
	loaded.Coefficients[0] = 99
	data, err := loaded.ToJSON()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = LoadWeights(path)
	var vErr *errors.ValidationError
	require.True(t, errors.As(err, &vErr), "got %v", err)
	assert.Equal(t, "checksum", vErr.ParamName)
}

func TestLoadWeightsMissingFile(t *testing.T) {
	_, err := LoadWeights(filepath.Join(t.TempDir(), "absent.pkl"))
	var sErr *errors.SerializationError
	assert.True(t, errors.As(err, &sErr))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestModelWeightsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ModelWeights)
		param  string
	}{
		{"missing type", func(w *ModelWeights) { w.ModelType = "" }, "model_type"},
		{"unknown version", func(w *ModelWeights) { w.Version = "0.1" }, "version"},
		{"fitted without coefficients", func(w *ModelWeights) { w.Coefficients = nil; w.Features = nil }, "coefficients"},
		{"feature count mismatch", func(w *ModelWeights) { w.Features = []string{"Accuracy"} }, "features"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := fittedWeights()
			tt.mutate(w)
			err := w.Validate()
			var vErr *errors.ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.Equal(t, tt.param, vErr.ParamName)
		})
	}
	assert.NoError(t, fittedWeights().Validate())
}

func TestModelWeightsClone(t *testing.T) {
	w := fittedWeights()
	c := w.Clone()
	c.Coefficients[0] = 1
	c.Metadata["n_samples"] = "1"
	assert.Equal(t, 0.12, w.Coefficients[0])
	assert.Equal(t, "80", w.Metadata["n_samples"])
}

func TestBaseEstimator(t *testing.T) {
	var e BaseEstimator
	assert.False(t, e.IsFitted())
	e.SetFitted()
	assert.True(t, e.IsFitted())
	e.Reset()
	assert.False(t, e.IsFitted())
}
