// Package pipeline chains a fitted standard scaler and a fitted linear
// regressor into one immutable predictor.
package pipeline

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/lidarml/linear"
	"github.com/YuminosukeSato/lidarml/metrics"
	"github.com/YuminosukeSato/lidarml/pkg/errors"
	"github.com/YuminosukeSato/lidarml/preprocessing"
)

// Step names, in evaluation order.
const (
	ScalerStep    = "standardscaler"
	RegressorStep = "linearregression"
)

// DefaultOutputName is used when no output name is given.
const DefaultOutputName = "y"

// Option configures a Pipeline at construction.
type Option func(*Pipeline)

// WithFeatureNames names the inputs in model order.
func WithFeatureNames(names ...string) Option {
	return func(p *Pipeline) {
		p.featureNames = append([]string(nil), names...)
	}
}

// WithOutputName names the predicted value.
func WithOutputName(name string) Option {
	return func(p *Pipeline) {
		p.outputName = name
	}
}

// Pipeline applies scaler then regressor. It is never mutated after New.
type Pipeline struct {
	scaler       preprocessing.ScalerParameters
	regression   linear.RegressionParameters
	featureNames []string
	outputName   string
}

// New validates that both stages agree on the feature count and builds the
// pipeline from copies of the given parameters.
func New(scaler preprocessing.ScalerParameters, reg linear.RegressionParameters, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		scaler:     scaler.Clone(),
		regression: reg.Clone(),
		outputName: DefaultOutputName,
	}
	for _, opt := range opts {
		opt(p)
	}

	n := len(p.scaler.Mean)
	if n == 0 {
		return nil, errors.NewValueError("pipeline.New", "scaler has no features")
	}
	if len(p.scaler.Scale) != n {
		return nil, errors.NewDimensionError("pipeline.New", n, len(p.scaler.Scale), 1)
	}
	if len(p.regression.Coef) != n {
		return nil, errors.NewDimensionError("pipeline.New", n, len(p.regression.Coef), 1)
	}
	for j, s := range p.scaler.Scale {
		if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, errors.NewValidationError("scaler.scale", fmt.Sprintf("invalid scale at index %d", j), s)
		}
	}
	if p.featureNames == nil {
		p.featureNames = make([]string, n)
		for j := range p.featureNames {
			p.featureNames[j] = fmt.Sprintf("x%d", j)
		}
	}
	if len(p.featureNames) != n {
		return nil, errors.NewDimensionError("pipeline.New", n, len(p.featureNames), 1)
	}
	seen := make(map[string]bool, n)
	for _, name := range p.featureNames {
		if name == "" || seen[name] {
			return nil, errors.NewValidationError("feature_names", "names must be unique and non-empty", p.featureNames)
		}
		seen[name] = true
	}
	if p.outputName == "" {
		return nil, errors.NewValidationError("output_name", "is required", p.outputName)
	}
	return p, nil
}

// FromEstimators builds a pipeline from a fitted scaler and regressor.
func FromEstimators(s *preprocessing.StandardScaler, r *linear.LinearRegression, opts ...Option) (*Pipeline, error) {
	sp, err := s.Params()
	if err != nil {
		return nil, err
	}
	rp, err := r.Params()
	if err != nil {
		return nil, err
	}
	return New(sp, rp, opts...)
}

// Predict scales v with the fitted statistics and applies the regressor.
func (p *Pipeline) Predict(v []float64) (float64, error) {
	scaled, err := p.scaler.TransformVector(v)
	if err != nil {
		return 0, err
	}
	return p.regression.PredictVector(scaled)
}

// PredictNamed reads the features by name. Extra keys are ignored.
func (p *Pipeline) PredictNamed(inputs map[string]float64) (float64, error) {
	v := make([]float64, len(p.featureNames))
	for j, name := range p.featureNames {
		x, ok := inputs[name]
		if !ok {
			return 0, errors.NewValueError("Pipeline.PredictNamed", fmt.Sprintf("missing input feature %q", name))
		}
		v[j] = x
	}
	return p.Predict(v)
}

// PredictMatrix predicts every row of X and returns an n×1 matrix.
func (p *Pipeline) PredictMatrix(X mat.Matrix) (*mat.Dense, error) {
	scaled, err := p.scaler.TransformMatrix(X)
	if err != nil {
		return nil, err
	}
	return p.regression.PredictMatrix(scaled)
}

// Score returns R² of the predictions for raw features X against y.
func (p *Pipeline) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := p.PredictMatrix(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, yPred)
}

// Scaler returns a copy of the scaler stage parameters.
func (p *Pipeline) Scaler() preprocessing.ScalerParameters {
	return p.scaler.Clone()
}

// Regression returns a copy of the regressor stage parameters.
func (p *Pipeline) Regression() linear.RegressionParameters {
	return p.regression.Clone()
}

// FeatureNames returns the input names in model order.
func (p *Pipeline) FeatureNames() []string {
	return append([]string(nil), p.featureNames...)
}

// OutputName returns the name of the predicted value.
func (p *Pipeline) OutputName() string {
	return p.outputName
}

// NFeatures returns the input dimension.
func (p *Pipeline) NFeatures() int {
	return len(p.featureNames)
}

func (p *Pipeline) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pipeline(steps=[%s, %s])\n", ScalerStep, RegressorStep)
	fmt.Fprintf(&b, "  inputs: %s -> output: %s\n", strings.Join(p.featureNames, ", "), p.outputName)
	fmt.Fprintf(&b, "  %s:\n", ScalerStep)
	for j, name := range p.featureNames {
		fmt.Fprintf(&b, "    %-12s mean=%.6f scale=%.6f\n", name, p.scaler.Mean[j], p.scaler.Scale[j])
	}
	fmt.Fprintf(&b, "  %s:\n", RegressorStep)
	for j, name := range p.featureNames {
		fmt.Fprintf(&b, "    %-12s coef=%.6f\n", name, p.regression.Coef[j])
	}
	fmt.Fprintf(&b, "    intercept=%.6f", p.regression.Intercept)
	return b.String()
}
