// Package trainer runs the Goal Score training flow end to end: load, split,
// scale, fit, evaluate, export to Core ML, reload and verify.
package trainer

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/lidarml/config"
	"github.com/YuminosukeSato/lidarml/core/model"
	"github.com/YuminosukeSato/lidarml/coreml"
	"github.com/YuminosukeSato/lidarml/dataset"
	"github.com/YuminosukeSato/lidarml/linear"
	"github.com/YuminosukeSato/lidarml/metrics"
	"github.com/YuminosukeSato/lidarml/pkg/errors"
	"github.com/YuminosukeSato/lidarml/pkg/log"
	"github.com/YuminosukeSato/lidarml/preprocessing"
	"github.com/YuminosukeSato/lidarml/registry"
	"github.com/YuminosukeSato/lidarml/report"
	"github.com/YuminosukeSato/lidarml/sklearn/model_selection"
	"github.com/YuminosukeSato/lidarml/sklearn/pipeline"
)

// Recorder stores the outcome of a run.
type Recorder interface {
	Record(ctx context.Context, r registry.Run) error
}

// Option configures Run.
type Option func(*runner)

// WithLogger sets the logger. The default wraps slog.Default().
func WithLogger(l log.Logger) Option {
	return func(r *runner) { r.logger = l }
}

// WithRecorder records every run, failed or not.
func WithRecorder(rec Recorder) Option {
	return func(r *runner) { r.recorder = rec }
}

// WithRunID fixes the run ID instead of generating a random UUID.
func WithRunID(id string) Option {
	return func(r *runner) { r.runID = id }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *runner) { r.now = now }
}

// Report is the outcome of a successful run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	DataPath string
	NRows    int
	NDropped int
	NTrain   int
	NTest    int

	FeatureNames []string
	TargetName   string
	TargetMin    float64
	TargetMax    float64

	// R2 is the holdout coefficient of determination, NaN when undefined.
	R2         float64
	Scores     metrics.RegressionScores
	Scaler     preprocessing.ScalerParameters
	Regression linear.RegressionParameters

	// PipelineSummary describes the in-memory pipeline and Summary the
	// exported Core ML model.
	PipelineSummary string
	Summary         string

	Sample             []float64
	SamplePrediction   float64
	ReloadedPrediction float64

	ModelPath   string
	ParamsPath  string
	PlotPath    string
	MetricsPath string
}

type runner struct {
	cfg      config.Config
	logger   log.Logger
	recorder Recorder
	runID    string
	now      func() time.Time
}

// Run executes the training flow with cfg. Stages run strictly in order and
// ctx is checked before each one. Any failure aborts the run.
func Run(ctx context.Context, cfg config.Config, opts ...Option) (*Report, error) {
	r := &runner{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.NewSlogLogger(slog.Default())
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	r.logger = r.logger.With(log.RunIDKey, r.runID, log.ModelNameKey, linear.ModelType)

	rep := &Report{RunID: r.runID, StartedAt: r.now(), DataPath: cfg.Data.Path}
	err := r.run(ctx, rep)
	rep.FinishedAt = r.now()

	if r.recorder != nil {
		if recErr := r.recorder.Record(context.WithoutCancel(ctx), runRecord(rep, err)); recErr != nil {
			r.logger.Warn("failed to record run", log.ErrAttrKey, recErr)
		}
	}
	if err != nil {
		return nil, err
	}
	r.logger.Info("training run finished",
		log.R2ScoreKey, rep.R2,
		log.DurationMsKey, rep.FinishedAt.Sub(rep.StartedAt).Milliseconds(),
	)
	return rep, nil
}

func stage(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "run cancelled before %s", name)
	}
	return nil
}

func (r *runner) run(ctx context.Context, rep *Report) error {
	cfg := r.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.logger.Debug("configuration",
		log.ConfigVersionKey, config.Version,
		log.RandomSeedKey, cfg.Split.RandomState,
		log.TestSizeKey, cfg.Split.TestSize,
	)
	schema := cfg.Schema()
	rep.FeatureNames = schema.FeatureColumns
	rep.TargetName = schema.TargetColumn

	// 1. load
	if err := stage(ctx, log.OperationLoad); err != nil {
		return err
	}
	ds, err := dataset.LoadCSV(cfg.Data.Path, schema)
	if err != nil {
		return err
	}
	rep.NRows, rep.NDropped = ds.Len(), ds.Dropped
	rep.TargetMin, rep.TargetMax = ds.TargetRange()
	r.logger.Info("loaded dataset",
		log.OperationKey, log.OperationLoad,
		log.DataPathKey, cfg.Data.Path,
		log.SamplesKey, ds.Len(),
		log.FeaturesKey, ds.NFeatures(),
		log.DroppedKey, ds.Dropped,
	)

	// 2. split
	if err := stage(ctx, log.OperationSplit); err != nil {
		return err
	}
	train, test, err := model_selection.SplitDataset(ds, cfg.Split.TestSize, cfg.Split.RandomState)
	if err != nil {
		return err
	}
	rep.NTrain, rep.NTest = train.Len(), test.Len()
	r.logger.Info("split dataset",
		log.OperationKey, log.OperationSplit,
		log.TrainSamplesKey, train.Len(),
		log.TestSamplesKey, test.Len(),
	)

	// 3. scale
	if err := stage(ctx, log.OperationFitTransform); err != nil {
		return err
	}
	policy, err := preprocessing.ParseDegeneratePolicy(cfg.Scaler.ZeroVariance)
	if err != nil {
		return err
	}
	scaler := preprocessing.NewStandardScaler(
		preprocessing.WithDegeneratePolicy(policy),
		preprocessing.WithFeatureNames(schema.FeatureColumns...),
	)
	XTrain, err := scaler.FitTransform(train.X())
	if err != nil {
		return err
	}
	if rep.Scaler, err = scaler.Params(); err != nil {
		return err
	}
	r.logger.Debug("fitted scaler",
		log.OperationKey, log.OperationFitTransform,
		log.PhaseKey, log.PhasePreprocessing,
		"scaler.mean", rep.Scaler.Mean,
		"scaler.scale", rep.Scaler.Scale,
	)

	// 4. fit and evaluate
	if err := stage(ctx, log.OperationFit); err != nil {
		return err
	}
	reg := linear.NewLinearRegression(
		linear.WithFeatureNames(schema.FeatureColumns...),
		linear.WithTargetName(schema.TargetColumn),
	)
	if err := reg.Fit(XTrain, train.Y()); err != nil {
		return err
	}
	if rep.Regression, err = reg.Params(); err != nil {
		return err
	}
	r.logger.Info("fitted regressor",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, train.Len(),
		"regression.coef", rep.Regression.Coef,
		"regression.intercept", rep.Regression.Intercept,
	)

	XTest, err := scaler.Transform(test.X())
	if err != nil {
		return err
	}
	yPred, err := reg.Predict(XTest)
	if err != nil {
		return err
	}
	predictions := make([]float64, test.Len())
	for i := range predictions {
		predictions[i] = yPred.At(i, 0)
	}
	if rep.Scores, err = metrics.Evaluate(test.Targets(), predictions); err != nil {
		return err
	}
	rep.R2 = rep.Scores.R2
	r.logger.Info("evaluated regressor",
		log.OperationKey, log.OperationScore,
		log.PhaseKey, log.PhaseValidation,
		log.R2ScoreKey, rep.R2,
		log.MSEKey, rep.Scores.MSE,
		log.MAEKey, rep.Scores.MAE,
	)

	// 5. pipeline
	p, err := pipeline.FromEstimators(scaler, reg,
		pipeline.WithFeatureNames(schema.FeatureColumns...),
		pipeline.WithOutputName(schema.TargetColumn),
	)
	if err != nil {
		return err
	}
	rep.PipelineSummary = p.String()

	// 6. export
	if err := stage(ctx, log.OperationExport); err != nil {
		return err
	}
	if err := r.export(p, reg, rep); err != nil {
		return err
	}

	// 7. reload and verify
	if err := stage(ctx, log.OperationVerify); err != nil {
		return err
	}
	if err := r.verify(p, reg, rep); err != nil {
		return err
	}

	// diagnostics
	if cfg.Report.PlotPath != "" {
		if err := report.PlotPredictions(cfg.Report.PlotPath, schema.TargetColumn, test.Targets(), predictions); err != nil {
			return err
		}
		rep.PlotPath = cfg.Report.PlotPath
	}
	if cfg.Report.MetricsPath != "" {
		err := report.WriteMetrics(cfg.Report.MetricsPath, report.RunMetrics{
			RunID:        rep.RunID,
			Scores:       rep.Scores,
			NTrain:       rep.NTrain,
			NTest:        rep.NTest,
			NDropped:     rep.NDropped,
			Duration:     r.now().Sub(rep.StartedAt),
			FeatureNames: schema.FeatureColumns,
			Coef:         rep.Regression.Coef,
			Intercept:    rep.Regression.Intercept,
			FinishedAt:   r.now(),
		})
		if err != nil {
			return err
		}
		rep.MetricsPath = cfg.Report.MetricsPath
	}
	return nil
}

func (r *runner) export(p *pipeline.Pipeline, reg *linear.LinearRegression, rep *Report) error {
	cfg := r.cfg.Export
	opts := []coreml.ExportOption{
		coreml.WithAuthor(cfg.Author),
		coreml.WithShortDescription(cfg.ShortDescription),
		coreml.WithVersion(cfg.Version),
		coreml.WithLicense(cfg.License),
		coreml.WithUserDefined("run_id", rep.RunID),
		coreml.WithUserDefined("n_train", strconv.Itoa(rep.NTrain)),
	}
	if !math.IsNaN(rep.R2) {
		opts = append(opts, coreml.WithMetric("r2_score", rep.R2))
	}
	m, err := coreml.FromPipeline(p, opts...)
	if err != nil {
		return err
	}
	if err := m.Save(cfg.ModelPath); err != nil {
		return err
	}
	rep.ModelPath = cfg.ModelPath
	rep.Summary = m.Summary()
	r.logger.Info("exported Core ML model",
		log.OperationKey, log.OperationExport,
		log.PhaseKey, log.PhaseExport,
		log.ArtifactPathKey, cfg.ModelPath,
		log.ArtifactFormatKey, "mlmodel",
	)

	if cfg.ParamsPath == "" {
		return nil
	}
	weights, err := reg.ExportWeights()
	if err != nil {
		return err
	}
	weights.Metadata["run_id"] = rep.RunID
	if err := model.SaveWeights(weights, cfg.ParamsPath); err != nil {
		return err
	}
	rep.ParamsPath = cfg.ParamsPath
	r.logger.Info("saved regression parameters",
		log.OperationKey, log.OperationExport,
		log.ArtifactPathKey, cfg.ParamsPath,
		log.ArtifactFormatKey, model.WeightsFormatVersion,
	)
	return nil
}

// verify reloads every written artifact and checks that it reproduces the
// in-memory pipeline on the configured sample.
func (r *runner) verify(p *pipeline.Pipeline, reg *linear.LinearRegression, rep *Report) error {
	tol := r.cfg.Verify.Tolerance
	sample, err := r.cfg.SampleVector()
	if err != nil {
		return err
	}
	rep.Sample = sample

	want, err := p.Predict(sample)
	if err != nil {
		return err
	}
	rep.SamplePrediction = want

	loaded, err := coreml.Load(rep.ModelPath)
	if err != nil {
		return err
	}
	out, err := loaded.Predict(r.cfg.Verify.Sample)
	if err != nil {
		return err
	}
	got, ok := out[p.OutputName()]
	if !ok {
		return errors.NewSerializationError("trainer.verify", "reloaded model has no output "+p.OutputName(), nil)
	}
	rep.ReloadedPrediction = got
	if diff := math.Abs(got - want); diff > tol || math.IsNaN(diff) {
		return errors.NewSerializationError("trainer.verify",
			"reloaded model prediction differs from pipeline", errors.Newf("|%g - %g| > %g", got, want, tol))
	}
	r.logger.Info("verified reloaded model",
		log.OperationKey, log.OperationVerify,
		log.PhaseKey, log.PhaseInference,
		log.PredictionKey, got,
	)

	if rep.ParamsPath == "" {
		return nil
	}
	weights, err := model.LoadWeights(rep.ParamsPath)
	if err != nil {
		return err
	}
	restored := linear.NewLinearRegression()
	if err := restored.ImportWeights(weights); err != nil {
		return err
	}
	params, err := restored.Params()
	if err != nil {
		return err
	}
	orig, err := reg.Params()
	if err != nil {
		return err
	}
	if len(params.Coef) != len(orig.Coef) || math.Abs(params.Intercept-orig.Intercept) > tol {
		return errors.NewSerializationError("trainer.verify", "reloaded regression parameters differ", nil)
	}
	for j := range orig.Coef {
		if math.Abs(params.Coef[j]-orig.Coef[j]) > tol {
			return errors.NewSerializationError("trainer.verify", "reloaded regression parameters differ", nil)
		}
	}
	return nil
}

func runRecord(rep *Report, err error) registry.Run {
	run := registry.Run{
		ID:         rep.RunID,
		StartedAt:  rep.StartedAt,
		FinishedAt: rep.FinishedAt,
		Status:     registry.StatusSucceeded,
		DataPath:   rep.DataPath,
		NRows:      rep.NRows,
		NDropped:   rep.NDropped,
		NTrain:     rep.NTrain,
		NTest:      rep.NTest,
		R2:         rep.R2,
		MSE:        rep.Scores.MSE,
		MAE:        rep.Scores.MAE,
		Features:   rep.FeatureNames,
		Coef:       rep.Regression.Coef,
		Intercept:  rep.Regression.Intercept,
		ModelPath:  rep.ModelPath,
	}
	if err != nil {
		run.Status = registry.StatusFailed
		run.Error = err.Error()
		if rep.Scores.N == 0 {
			run.R2, run.MSE, run.MAE = math.NaN(), math.NaN(), math.NaN()
		}
	}
	return run
}
