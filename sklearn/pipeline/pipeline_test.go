package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/lidarml/linear"
	"github.com/YuminosukeSato/lidarml/pkg/errors"
	"github.com/YuminosukeSato/lidarml/preprocessing"
)

func fixture(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(
		preprocessing.ScalerParameters{Mean: []float64{0.5, 0.5}, Scale: []float64{0.25, 0.5}},
		linear.RegressionParameters{Coef: []float64{10, 4}, Intercept: 50},
		WithFeatureNames("Accuracy", "Score"),
		WithOutputName("Goal Score"),
	)
	require.NoError(t, err)
	return p
}

func TestPipelinePredict(t *testing.T) {
	p := fixture(t)

	// scaled = ((0.9-0.5)/0.25, (0.8-0.5)/0.5) = (1.6, 0.6)
	got, err := p.Predict([]float64{0.9, 0.8})
	require.NoError(t, err)
	assert.InDelta(t, 50+16+2.4, got, 1e-12)

	named, err := p.PredictNamed(map[string]float64{"Accuracy": 0.9, "Score": 0.8, "extra": 1})
	require.NoError(t, err)
	assert.Equal(t, got, named)

	_, err = p.PredictNamed(map[string]float64{"Accuracy": 0.9})
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))

	_, err = p.Predict([]float64{0.9})
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}

func TestPipelinePredictMatrixAndScore(t *testing.T) {
	p := fixture(t)
	X := mat.NewDense(3, 2, []float64{0.5, 0.5, 0.75, 0.5, 0.5, 1.0})

	preds, err := p.PredictMatrix(X)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, preds.At(0, 0), 1e-12)
	assert.InDelta(t, 60.0, preds.At(1, 0), 1e-12)
	assert.InDelta(t, 54.0, preds.At(2, 0), 1e-12)

	score, err := p.Score(X, preds)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-12)
}

func TestPipelineFromEstimators(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		0.1, 0.2,
		0.4, 0.3,
		0.6, 0.9,
		0.9, 0.5,
	})
	y := mat.NewDense(4, 1, nil)
	for i := 0; i < 4; i++ {
		y.Set(i, 0, 20+50*X.At(i, 0)+30*X.At(i, 1))
	}

	scaler := preprocessing.NewStandardScaler()
	XScaled, err := scaler.FitTransform(X)
	require.NoError(t, err)
	reg := linear.NewLinearRegression()
	require.NoError(t, reg.Fit(XScaled, y))

	p, err := FromEstimators(scaler, reg, WithFeatureNames("Accuracy", "Score"))
	require.NoError(t, err)

	got, err := p.Predict([]float64{0.9, 0.8})
	require.NoError(t, err)
	assert.InDelta(t, 20+45+24, got, 1e-9)

	_, err = FromEstimators(preprocessing.NewStandardScaler(), reg)
	assert.Error(t, err)
}

func TestPipelineValidation(t *testing.T) {
	sp := preprocessing.ScalerParameters{Mean: []float64{0, 0}, Scale: []float64{1, 1}}

	_, err := New(sp, linear.RegressionParameters{Coef: []float64{1}})
	assert.Error(t, err)

	_, err = New(sp, linear.RegressionParameters{Coef: []float64{1, 1}}, WithFeatureNames("a"))
	assert.Error(t, err)

	_, err = New(sp, linear.RegressionParameters{Coef: []float64{1, 1}}, WithFeatureNames("a", "a"))
	assert.Error(t, err)

	_, err = New(preprocessing.ScalerParameters{Mean: []float64{0}, Scale: []float64{0}},
		linear.RegressionParameters{Coef: []float64{1}})
	assert.Error(t, err)

	p, err := New(sp, linear.RegressionParameters{Coef: []float64{1, 1}})
	require.NoError(t, err)
	assert.Equal(t, []string{"x0", "x1"}, p.FeatureNames())
	assert.Equal(t, DefaultOutputName, p.OutputName())
}

func TestPipelineImmutable(t *testing.T) {
	sp := preprocessing.ScalerParameters{Mean: []float64{0}, Scale: []float64{1}}
	rp := linear.RegressionParameters{Coef: []float64{2}, Intercept: 1}
	p, err := New(sp, rp)
	require.NoError(t, err)

	sp.Mean[0] = 100
	rp.Coef[0] = 100
	p.Scaler().Scale[0] = 100

	got, err := p.Predict([]float64{1})
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)
}

func TestPipelineString(t *testing.T) {
	s := fixture(t).String()
	assert.Contains(t, s, ScalerStep)
	assert.Contains(t, s, RegressorStep)
	assert.Contains(t, s, "Accuracy, Score -> output: Goal Score")
	assert.Contains(t, s, "intercept=50.000000")
}
