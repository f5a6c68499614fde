package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/lidarml/core/model"
	"github.com/YuminosukeSato/lidarml/pkg/errors"
)

func captureWarnings(t *testing.T) *[]error {
	t.Helper()
	var got []error
	errors.SetWarningHandler(func(w error) { got = append(got, w) })
	t.Cleanup(func() { errors.SetWarningHandler(func(w error) {}) })
	return &got
}

func TestStandardScalerFit(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		0.1, 10,
		0.2, 20,
		0.3, 30,
		0.4, 40,
	})

	scaler := NewStandardScaler(WithFeatureNames("Accuracy", "Score"))
	XScaled, err := scaler.FitTransform(X)
	require.NoError(t, err)

	params, err := scaler.Params()
	require.NoError(t, err)
	assert.InDelta(t, 0.25, params.Mean[0], 1e-12)
	assert.InDelta(t, 25.0, params.Mean[1], 1e-12)
	assert.InDelta(t, math.Sqrt(0.0125), params.Scale[0], 1e-12)
	assert.InDelta(t, params.Scale[0]*params.Scale[0], params.Var[0], 1e-12)
	assert.Equal(t, 4, params.NSamples)

	col := make([]float64, 4)
	for j := 0; j < 2; j++ {
		mat.Col(col, j, XScaled)
		mean, std := stat.PopMeanStdDev(col, nil)
		assert.InDelta(t, 0.0, mean, 1e-9)
		assert.InDelta(t, 1.0, std, 1e-9)
	}
}

func TestStandardScalerInverseTransform(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 5, 2, 7, 4, 9})
	scaler := NewStandardScaler()
	XScaled, err := scaler.FitTransform(X)
	require.NoError(t, err)

	back, err := scaler.InverseTransform(XScaled)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-12))
}

func TestStandardScalerZeroVariance(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		0.5, 1,
		0.5, 2,
		0.5, 3,
	})

	t.Run("skip scaling warns and keeps scale one", func(t *testing.T) {
		warnings := captureWarnings(t)

		scaler := NewStandardScaler(WithFeatureNames("Accuracy", "Score"))
		XScaled, err := scaler.FitTransform(X)
		require.NoError(t, err)

		params, _ := scaler.Params()
		assert.Equal(t, 1.0, params.Scale[0])
		assert.Equal(t, 0.0, XScaled.At(1, 0))

		require.Len(t, *warnings, 1)
		var zw *errors.ZeroVarianceWarning
		require.True(t, errors.As((*warnings)[0], &zw))
		assert.Equal(t, "Accuracy", zw.Feature)
		assert.Equal(t, 0, zw.Index)
	})

	t.Run("fail fast", func(t *testing.T) {
		scaler := NewStandardScaler(WithDegeneratePolicy(FailFast))
		err := scaler.Fit(X)
		require.Error(t, err)

		var de *errors.DegenerateFeatureError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, 0, de.Index)
		assert.False(t, scaler.IsFitted())
	})
}

func TestStandardScalerErrors(t *testing.T) {
	scaler := NewStandardScaler()

	_, err := scaler.Transform(mat.NewDense(1, 2, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	assert.ErrorIs(t, scaler.Fit(&mat.Dense{}), errors.ErrEmptyData)

	require.NoError(t, scaler.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})))
	_, err = scaler.Transform(mat.NewDense(1, 3, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	err = scaler.Fit(mat.NewDense(2, 1, []float64{1, math.NaN()}))
	var ni *errors.NumericalInstabilityError
	assert.True(t, errors.As(err, &ni))
}

func TestScalerParametersTransformVector(t *testing.T) {
	p := ScalerParameters{Mean: []float64{1, 2}, Scale: []float64{2, 4}}

	out, err := p.TransformVector([]float64{3, 10})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, out)

	_, err = p.TransformVector([]float64{1})
	assert.Error(t, err)
}

func TestStandardScalerSetParams(t *testing.T) {
	scaler := NewStandardScaler()
	require.NoError(t, scaler.SetParams(ScalerParameters{Mean: []float64{1}, Scale: []float64{2}}))
	assert.True(t, scaler.IsFitted())

	out, err := scaler.Transform(mat.NewDense(1, 1, []float64{5}))
	require.NoError(t, err)
	assert.Equal(t, 2.0, out.At(0, 0))

	assert.Error(t, scaler.SetParams(ScalerParameters{Mean: []float64{1}, Scale: []float64{0}}))
}

func TestParseDegeneratePolicy(t *testing.T) {
	p, err := ParseDegeneratePolicy("fail")
	require.NoError(t, err)
	assert.Equal(t, FailFast, p)

	p, err = ParseDegeneratePolicy("")
	require.NoError(t, err)
	assert.Equal(t, SkipScaling, p)
	assert.Equal(t, "skip", p.String())

	_, err = ParseDegeneratePolicy("ignore")
	assert.Error(t, err)
}

func TestStandardScalerAsTransformer(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})

	var tr model.Transformer = NewStandardScaler()
	Z, err := tr.FitTransform(X)
	require.NoError(t, err)

	again, err := tr.Transform(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(Z, again, 1e-12))
	assert.InDelta(t, 0.0, mat.Sum(Z), 1e-12)
}
