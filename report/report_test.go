package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/lidarml/metrics"
)

func sampleRun() RunMetrics {
	return RunMetrics{
		RunID:        "3f1c2a9e-0000-4000-8000-000000000001",
		Scores:       metrics.RegressionScores{N: 20, R2: 0.91, MSE: 4, RMSE: 2, MAE: 1.5},
		NTrain:       80,
		NTest:        20,
		NDropped:     3,
		Duration:     1500 * time.Millisecond,
		FeatureNames: []string{"Accuracy", "Score"},
		Coef:         []float64{12.5, 7.25},
		Intercept:    55,
		FinishedAt:   time.Unix(1760000000, 0),
	}
}

func TestWriteMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lidarml.prom")
	require.NoError(t, WriteMetrics(path, sampleRun()))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(b)

	for _, want := range []string{
		"lidarml_holdout_r2 0.91",
		"lidarml_holdout_rmse 2",
		`lidarml_rows{set="dropped"} 3`,
		`lidarml_rows{set="train"} 80`,
		`lidarml_coefficient{feature="Accuracy"} 12.5`,
		`lidarml_run_info{run_id="3f1c2a9e-0000-4000-8000-000000000001"} 1`,
		"lidarml_train_duration_seconds 1.5",
		"lidarml_last_run_timestamp_seconds 1.76e+09",
	} {
		assert.True(t, strings.Contains(body, want), "missing %q in\n%s", want, body)
	}
}

func TestWriteMetricsUndefinedR2(t *testing.T) {
	run := sampleRun()
	run.Scores.R2 = math.NaN()

	path := filepath.Join(t.TempDir(), "lidarml.prom")
	require.NoError(t, WriteMetrics(path, run))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "lidarml_holdout_r2 NaN")
}

func TestPlotPredictions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.png")
	actual := []float64{40, 55, 62, 80, 91}
	predicted := []float64{42, 53, 65, 78, 90}

	require.NoError(t, PlotPredictions(path, "Goal Score", actual, predicted))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("\x89PNG")))

	assert.Error(t, PlotPredictions(path, "", nil, nil))
	assert.Error(t, PlotPredictions(path, "", actual, predicted[:2]))
}
