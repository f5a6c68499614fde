package coreml

import (
	"fmt"
	"os"
	"strconv"

	"github.com/YuminosukeSato/lidarml/pkg/errors"
	"github.com/YuminosukeSato/lidarml/sklearn/pipeline"
)

// Stage names recorded in the exported pipeline.
const (
	VectorizerStageName = "feature_vectorizer"
	ScalerStageName     = "standard_scaler"
	RegressorStageName  = "linear_regression"
)

type exportConfig struct {
	metadata     Metadata
	descriptions map[string]string
}

// ExportOption configures FromPipeline.
type ExportOption func(*exportConfig)

// WithAuthor sets Metadata.Author.
func WithAuthor(author string) ExportOption {
	return func(c *exportConfig) { c.metadata.Author = author }
}

// WithShortDescription sets Metadata.ShortDescription.
func WithShortDescription(s string) ExportOption {
	return func(c *exportConfig) { c.metadata.ShortDescription = s }
}

// WithVersion sets Metadata.VersionString.
func WithVersion(v string) ExportOption {
	return func(c *exportConfig) { c.metadata.VersionString = v }
}

// WithLicense sets Metadata.License.
func WithLicense(l string) ExportOption {
	return func(c *exportConfig) { c.metadata.License = l }
}

// WithUserDefined adds one entry to Metadata.UserDefined.
func WithUserDefined(key, value string) ExportOption {
	return func(c *exportConfig) {
		if c.metadata.UserDefined == nil {
			c.metadata.UserDefined = make(map[string]string)
		}
		c.metadata.UserDefined[key] = value
	}
}

// WithMetric records a float metric such as the holdout R² in the metadata.
func WithMetric(key string, value float64) ExportOption {
	return WithUserDefined(key, strconv.FormatFloat(value, 'g', -1, 64))
}

// WithFeatureDescription sets the short description of a top-level input or
// output feature.
func WithFeatureDescription(name, description string) ExportOption {
	return func(c *exportConfig) {
		if c.descriptions == nil {
			c.descriptions = make(map[string]string)
		}
		c.descriptions[name] = description
	}
}

// FromPipeline converts a fitted pipeline into a PipelineRegressor with the
// stages FeatureVectorizer -> Scaler -> GLMRegressor. The scaler stage holds
// shift = -mean and scale = 1/std, which reproduces (x - mean) / std.
func FromPipeline(p *pipeline.Pipeline, opts ...ExportOption) (*Model, error) {
	if p == nil {
		return nil, errors.NewValueError("coreml.FromPipeline", "pipeline is nil")
	}
	var cfg exportConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	names := p.FeatureNames()
	output := p.OutputName()
	sp := p.Scaler()
	rp := p.Regression()
	n := len(names)

	inputs := make([]FeatureDescription, n)
	columns := make([]VectorizerInput, n)
	for j, name := range names {
		inputs[j] = FeatureDescription{Name: name, ShortDescription: cfg.descriptions[name], Type: DoubleType()}
		columns[j] = VectorizerInput{Column: name, Dimensions: 1}
	}
	vector := MultiArrayType([]int64{int64(n)}, ArrayDouble)
	result := FeatureDescription{Name: output, ShortDescription: cfg.descriptions[output], Type: DoubleType()}

	shift := make([]float64, n)
	scale := make([]float64, n)
	for j := 0; j < n; j++ {
		shift[j] = -sp.Mean[j]
		scale[j] = 1 / sp.Scale[j]
	}

	vectorizer := &Model{
		SpecificationVersion: SpecificationVersion,
		Description: Description{
			Inputs:  inputs,
			Outputs: []FeatureDescription{{Name: FeatureVectorName, Type: vector}},
		},
		FeatureVectorizer: &FeatureVectorizer{Inputs: columns},
	}
	scaler := &Model{
		SpecificationVersion: SpecificationVersion,
		Description: Description{
			Inputs:  []FeatureDescription{{Name: FeatureVectorName, Type: vector}},
			Outputs: []FeatureDescription{{Name: ScaledVectorName, Type: vector}},
		},
		Scaler: &Scaler{ShiftValue: shift, ScaleValue: scale},
	}
	regressor := &Model{
		SpecificationVersion: SpecificationVersion,
		Description: Description{
			Inputs:               []FeatureDescription{{Name: ScaledVectorName, Type: vector}},
			Outputs:              []FeatureDescription{{Name: output, Type: DoubleType()}},
			PredictedFeatureName: output,
		},
		GLMRegressor: &GLMRegressor{
			Weights: [][]float64{rp.Coef},
			Offset:  []float64{rp.Intercept},
		},
	}

	m := &Model{
		SpecificationVersion: SpecificationVersion,
		Description: Description{
			Inputs:               append([]FeatureDescription(nil), inputs...),
			Outputs:              []FeatureDescription{result},
			PredictedFeatureName: output,
			Metadata:             cfg.metadata,
		},
		PipelineRegressor: &Pipeline{
			Models: []*Model{vectorizer, scaler, regressor},
			Names:  []string{VectorizerStageName, ScalerStageName, RegressorStageName},
		},
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the structure every evaluable model must have.
func (m *Model) Validate() error {
	return m.validate("model", 0)
}

func (m *Model) validate(path string, depth int) error {
	fail := func(format string, args ...interface{}) error {
		return errors.NewSerializationError("coreml.Validate", path+": "+fmt.Sprintf(format, args...), nil)
	}
	if m == nil {
		return fail("nil model")
	}
	if depth > maxDepth {
		return fail("pipeline nested deeper than %d", maxDepth)
	}
	if m.SpecificationVersion < 1 {
		return fail("invalid specification version %d", m.SpecificationVersion)
	}
	if m.Type() == "" {
		return fail("model has no supported type")
	}
	d := m.Description
	if len(d.Inputs) == 0 || len(d.Outputs) == 0 {
		return fail("description needs at least one input and one output")
	}
	for _, f := range append(append([]FeatureDescription(nil), d.Inputs...), d.Outputs...) {
		if f.Name == "" {
			return fail("feature without a name")
		}
		if f.Type.Kind == KindUnknown {
			return fail("feature %q has no type", f.Name)
		}
	}

	switch {
	case m.PipelineRegressor != nil:
		if len(m.PipelineRegressor.Models) == 0 {
			return fail("empty pipeline")
		}
		for i, stage := range m.PipelineRegressor.Models {
			if err := stage.validate(fmt.Sprintf("%s.stage[%d]", path, i), depth+1); err != nil {
				return err
			}
		}
	case m.FeatureVectorizer != nil:
		if len(d.Outputs) != 1 || len(m.FeatureVectorizer.Inputs) == 0 {
			return fail("feature vectorizer needs inputs and exactly one output")
		}
	case m.Scaler != nil, m.GLMRegressor != nil:
		if len(d.Inputs) != 1 || len(d.Outputs) != 1 {
			return fail("%s needs exactly one input and one output", m.Type())
		}
	}
	return nil
}

// Save writes the encoded model to path.
func (m *Model) Save(path string) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.NewSerializationError("coreml.Save", "write "+path, err)
	}
	return nil
}

// Load reads and decodes the model at path.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewSerializationError("coreml.Load", "read "+path, err)
	}
	return Unmarshal(data)
}
