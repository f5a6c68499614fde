package trainer

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/lidarml/config"
	"github.com/YuminosukeSato/lidarml/core/model"
	"github.com/YuminosukeSato/lidarml/coreml"
	"github.com/YuminosukeSato/lidarml/pkg/errors"
	"github.com/YuminosukeSato/lidarml/pkg/log"
	"github.com/YuminosukeSato/lidarml/registry"
)

// tableRule describes a generated table: a 10x10 grid of (Accuracy, Score)
// pairs with Goal Score from goal.
type tableRule struct {
	constantScore bool
	goal          func(a, s float64, i int) float64
}

var (
	// pointsRule is 20 + 50*Accuracy + 30*Score with a small perturbation.
	pointsRule = tableRule{goal: func(a, s float64, i int) float64 {
		return 20 + 50*a + 30*s + 0.25*math.Sin(float64(i))
	}}
	// unitRule keeps Accuracy, Score and Goal Score inside [0, 1].
	unitRule = tableRule{goal: func(a, s float64, i int) float64 {
		return 0.1 + 0.5*a + 0.4*s + 0.002*math.Sin(float64(i))
	}}
	constantScoreRule = tableRule{constantScore: true, goal: pointsRule.goal}
	constantGoalRule  = tableRule{goal: func(float64, float64, int) float64 { return 0.7 }}
)

// writeTable writes the grid followed by two rows with missing cells.
func writeTable(t *testing.T, dir string, rule tableRule) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Accuracy,Score,Goal Score\n")
	for i := 0; i < 100; i++ {
		a := float64(i%10)/10 + 0.05
		s := float64(i/10)/10 + 0.05
		if rule.constantScore {
			s = 0.5
		}
		fmt.Fprintf(&b, "%.4f,%.4f,%.6f\n", a, s, rule.goal(a, s, i))
	}
	b.WriteString("0.5,,0.7\n")
	b.WriteString("NA,0.5,0.7\n")

	path := filepath.Join(dir, "accuracy_scores_100_rows.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func testConfig(t *testing.T, rule tableRule) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Data.Path = writeTable(t, dir, rule)
	cfg.Export.ModelPath = filepath.Join(dir, coreml.DefaultFileName)
	cfg.Export.Author = "lidarml tests"
	return cfg
}

type recorderFunc func(ctx context.Context, r registry.Run) error

func (f recorderFunc) Record(ctx context.Context, r registry.Run) error { return f(ctx, r) }

func TestRunProducesVerifiedModel(t *testing.T) {
	cfg := testConfig(t, pointsRule)
	dir := filepath.Dir(cfg.Data.Path)
	cfg.Export.ParamsPath = filepath.Join(dir, "params.json")
	cfg.Report.PlotPath = filepath.Join(dir, "predictions.png")
	cfg.Report.MetricsPath = filepath.Join(dir, "lidarml.prom")

	logger, _ := log.NewTestLogger(log.LevelDebug)
	rep, err := Run(context.Background(), cfg, WithLogger(logger), WithRunID("run-42"))
	require.NoError(t, err)

	assert.Equal(t, "run-42", rep.RunID)
	assert.Equal(t, 100, rep.NRows)
	assert.Equal(t, 2, rep.NDropped)
	assert.Equal(t, 80, rep.NTrain)
	assert.Equal(t, 20, rep.NTest)
	assert.Equal(t, []string{"Accuracy", "Score"}, rep.FeatureNames)
	assert.Equal(t, "Goal Score", rep.TargetName)
	assert.Greater(t, rep.R2, 0.99)
	assert.Equal(t, rep.R2, rep.Scores.R2)

	// 20 + 50*0.9 + 30*0.8
	assert.Equal(t, []float64{0.9, 0.8}, rep.Sample)
	assert.InDelta(t, 89.0, rep.SamplePrediction, 0.5)
	assert.InDelta(t, rep.SamplePrediction, rep.ReloadedPrediction, 1e-6)
	assert.GreaterOrEqual(t, rep.SamplePrediction, rep.TargetMin)
	assert.LessOrEqual(t, rep.SamplePrediction, rep.TargetMax)

	assert.Contains(t, rep.Summary, "pipelineRegressor")
	assert.Contains(t, rep.PipelineSummary, "Goal Score")

	for _, path := range []string{rep.ModelPath, rep.ParamsPath, rep.PlotPath, rep.MetricsPath} {
		info, err := os.Stat(path)
		require.NoError(t, err, path)
		assert.Positive(t, info.Size(), path)
	}

	loaded, err := coreml.Load(rep.ModelPath)
	require.NoError(t, err)
	out, err := loaded.Predict(map[string]float64{"Accuracy": 0.9, "Score": 0.8})
	require.NoError(t, err)
	assert.InDelta(t, rep.SamplePrediction, out["Goal Score"], 1e-6)
	assert.Equal(t, "lidarml tests", loaded.Description.Metadata.Author)
	assert.Equal(t, "run-42", loaded.Description.Metadata.UserDefined["run_id"])

	weights, err := model.LoadWeights(rep.ParamsPath)
	require.NoError(t, err)
	assert.Equal(t, rep.Regression.Coef, weights.Coefficients)
	assert.Equal(t, "run-42", weights.Metadata["run_id"])

	assert.True(t, logger.ContainsMessage("exported Core ML model"))
	assert.True(t, logger.ContainsField(log.RunIDKey, "run-42"))
	assert.True(t, logger.ContainsField(log.TrainSamplesKey, float64(80)))
}

func TestRunUnitIntervalTable(t *testing.T) {
	cfg := testConfig(t, unitRule)

	rep, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Greater(t, rep.R2, 0.99)
	// 0.1 + 0.5*0.9 + 0.4*0.8
	assert.False(t, math.IsNaN(rep.SamplePrediction) || math.IsInf(rep.SamplePrediction, 0))
	assert.InDelta(t, 0.87, rep.SamplePrediction, 0.01)
	assert.GreaterOrEqual(t, rep.SamplePrediction, rep.TargetMin)
	assert.LessOrEqual(t, rep.SamplePrediction, rep.TargetMax)
	assert.GreaterOrEqual(t, rep.TargetMin, 0.0)
	assert.LessOrEqual(t, rep.TargetMax, 1.0)
	assert.InDelta(t, rep.SamplePrediction, rep.ReloadedPrediction, 1e-6)
}

func TestRunConstantTarget(t *testing.T) {
	cfg := testConfig(t, constantGoalRule)
	dir := filepath.Dir(cfg.Data.Path)
	cfg.Report.MetricsPath = filepath.Join(dir, "lidarml.prom")

	db, err := registry.Open(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	defer db.Close()

	rep, err := Run(context.Background(), cfg, WithRecorder(db))
	require.NoError(t, err)

	assert.True(t, math.IsNaN(rep.R2), "R2 = %v", rep.R2)
	assert.True(t, math.IsNaN(rep.Scores.R2))
	assert.InDelta(t, 0.7, rep.SamplePrediction, 1e-9)
	assert.InDelta(t, rep.SamplePrediction, rep.ReloadedPrediction, 1e-6)

	loaded, err := coreml.Load(rep.ModelPath)
	require.NoError(t, err)
	_, hasR2 := loaded.Description.Metadata.UserDefined["r2_score"]
	assert.False(t, hasR2)

	got, err := db.Get(context.Background(), rep.RunID)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got.R2))
	assert.FileExists(t, rep.MetricsPath)
}

func TestRunIsDeterministic(t *testing.T) {
	cfg := testConfig(t, pointsRule)
	first, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	second, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, first.Scaler, second.Scaler)
	assert.Equal(t, first.Regression, second.Regression)
	assert.Equal(t, first.R2, second.R2)
	assert.NotEqual(t, first.RunID, second.RunID)

	a, err := os.ReadFile(first.ModelPath)
	require.NoError(t, err)
	assert.NotEmpty(t, a)
}

func TestRunRecordsToRegistry(t *testing.T) {
	cfg := testConfig(t, pointsRule)
	db, err := registry.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer db.Close()

	start := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return start }

	rep, err := Run(context.Background(), cfg, WithRecorder(db), WithClock(clock))
	require.NoError(t, err)

	got, err := db.Get(context.Background(), rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusSucceeded, got.Status)
	assert.Equal(t, rep.NTrain, got.NTrain)
	assert.Equal(t, rep.NTest, got.NTest)
	assert.InDelta(t, rep.R2, got.R2, 1e-12)
	assert.Equal(t, rep.ModelPath, got.ModelPath)
	assert.True(t, got.StartedAt.Equal(start))
}

func TestRunFailures(t *testing.T) {
	t.Run("missing table", func(t *testing.T) {
		cfg := testConfig(t, pointsRule)
		cfg.Data.Path = filepath.Join(t.TempDir(), "absent.csv")

		var recorded registry.Run
		rec := recorderFunc(func(_ context.Context, r registry.Run) error {
			recorded = r
			return nil
		})
		rep, err := Run(context.Background(), cfg, WithRecorder(rec))
		require.Error(t, err)
		assert.Nil(t, rep)

		var pe *errors.ParseError
		assert.True(t, errors.As(err, &pe))
		assert.Equal(t, registry.StatusFailed, recorded.Status)
		assert.NotEmpty(t, recorded.Error)
		assert.True(t, math.IsNaN(recorded.R2))

		_, statErr := os.Stat(cfg.Export.ModelPath)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("cancelled context", func(t *testing.T) {
		cfg := testConfig(t, pointsRule)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := Run(ctx, cfg)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("constant feature with fail policy", func(t *testing.T) {
		cfg := testConfig(t, constantScoreRule)
		cfg.Scaler.ZeroVariance = "fail"

		_, err := Run(context.Background(), cfg)
		require.Error(t, err)
		var de *errors.DegenerateFeatureError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "Score", de.Feature)
		assert.Equal(t, 1, de.Index)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig(t, pointsRule)
		cfg.Split.TestSize = 1.5

		_, err := Run(context.Background(), cfg)
		var ve *errors.ValidationError
		assert.True(t, errors.As(err, &ve))
	})

	t.Run("recorder error does not fail the run", func(t *testing.T) {
		cfg := testConfig(t, pointsRule)
		rec := recorderFunc(func(context.Context, registry.Run) error {
			return errors.New("disk full")
		})
		logger, _ := log.NewTestLogger(log.LevelInfo)
		_, err := Run(context.Background(), cfg, WithRecorder(rec), WithLogger(logger))
		require.NoError(t, err)
		assert.True(t, logger.ContainsMessage("failed to record run"))
	})
}
