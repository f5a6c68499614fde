// Package config holds the trainer configuration. Defaults reproduce the
// reference training run; a YAML file and the CLI can override any field.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/lidarml/coreml"
	"github.com/YuminosukeSato/lidarml/dataset"
	"github.com/YuminosukeSato/lidarml/pkg/errors"
	"github.com/YuminosukeSato/lidarml/pkg/log"
	"github.com/YuminosukeSato/lidarml/preprocessing"
	"github.com/YuminosukeSato/lidarml/sklearn/model_selection"
)

// Version of the configuration layout, logged with each run.
const Version = "1"

// Log output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config is the full trainer configuration.
type Config struct {
	Data     DataConfig     `yaml:"data"`
	Split    SplitConfig    `yaml:"split"`
	Scaler   ScalerConfig   `yaml:"scaler"`
	Export   ExportConfig   `yaml:"export"`
	Verify   VerifyConfig   `yaml:"verify"`
	Report   ReportConfig   `yaml:"report"`
	Registry RegistryConfig `yaml:"registry"`
	Log      LogConfig      `yaml:"log"`
}

type DataConfig struct {
	Path           string   `yaml:"path"`
	FeatureColumns []string `yaml:"feature_columns"`
	TargetColumn   string   `yaml:"target_column"`
}

type SplitConfig struct {
	TestSize    float64 `yaml:"test_size"`
	RandomState int64   `yaml:"random_state"`
}

type ScalerConfig struct {
	// ZeroVariance is "skip" (scale 1.0 with a warning) or "fail".
	ZeroVariance string `yaml:"zero_variance"`
}

type ExportConfig struct {
	ModelPath string `yaml:"model_path"`
	// ParamsPath enables the raw regression parameter artifact when set.
	// A .json suffix selects JSON, anything else gob.
	ParamsPath       string `yaml:"params_path"`
	Author           string `yaml:"author"`
	ShortDescription string `yaml:"short_description"`
	Version          string `yaml:"version"`
	License          string `yaml:"license"`
}

type VerifyConfig struct {
	Sample    map[string]float64 `yaml:"sample"`
	Tolerance float64            `yaml:"tolerance"`
}

type ReportConfig struct {
	PlotPath    string `yaml:"plot_path"`
	MetricsPath string `yaml:"metrics_path"`
}

type RegistryConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Schema returns the dataset schema described by Data.
func (c Config) Schema() dataset.Schema {
	return dataset.Schema{
		FeatureColumns: append([]string(nil), c.Data.FeatureColumns...),
		TargetColumn:   c.Data.TargetColumn,
	}
}

// SampleVector orders the verification sample by feature column.
func (c Config) SampleVector() ([]float64, error) {
	v := make([]float64, len(c.Data.FeatureColumns))
	for j, name := range c.Data.FeatureColumns {
		x, ok := c.Verify.Sample[name]
		if !ok {
			return nil, errors.NewValidationError("verify.sample", fmt.Sprintf("missing value for %q", name), c.Verify.Sample)
		}
		v[j] = x
	}
	return v, nil
}

// Default returns the configuration of the reference run.
func Default() Config {
	schema := dataset.DefaultSchema()
	return Config{
		Data: DataConfig{
			Path:           dataset.DefaultPath,
			FeatureColumns: schema.FeatureColumns,
			TargetColumn:   schema.TargetColumn,
		},
		Split: SplitConfig{
			TestSize:    model_selection.DefaultTestSize,
			RandomState: model_selection.DefaultRandomState,
		},
		Scaler: ScalerConfig{ZeroVariance: preprocessing.SkipScaling.String()},
		Export: ExportConfig{
			ModelPath:        coreml.DefaultFileName,
			ShortDescription: "Predicts Goal Score from LiDAR game Accuracy and Score",
			Version:          "1.0",
		},
		Verify: VerifyConfig{
			Sample:    map[string]float64{dataset.ColumnAccuracy: 0.9, dataset.ColumnScore: 0.8},
			Tolerance: 1e-6,
		},
		Log: LogConfig{Level: "info", Format: FormatConsole},
	}
}

// Validate checks field ranges and cross-field consistency.
func (c Config) Validate() error {
	if c.Data.Path == "" {
		return errors.NewValidationError("data.path", "is required", c.Data.Path)
	}
	if err := c.Schema().Validate(); err != nil {
		return err
	}
	if c.Split.TestSize <= 0 || c.Split.TestSize >= 1 {
		return errors.NewValidationError("split.test_size", "must be in (0, 1)", c.Split.TestSize)
	}
	if _, err := preprocessing.ParseDegeneratePolicy(c.Scaler.ZeroVariance); err != nil {
		return err
	}
	if c.Export.ModelPath == "" {
		return errors.NewValidationError("export.model_path", "is required", c.Export.ModelPath)
	}
	if _, err := c.SampleVector(); err != nil {
		return err
	}
	if c.Verify.Tolerance <= 0 {
		return errors.NewValidationError("verify.tolerance", "must be positive", c.Verify.Tolerance)
	}
	if _, err := log.ToLogLevel(c.Log.Level); err != nil {
		return errors.NewValidationError("log.level", err.Error(), c.Log.Level)
	}
	if c.Log.Format != FormatConsole && c.Log.Format != FormatJSON {
		return errors.NewValidationError("log.format", "must be \"console\" or \"json\"", c.Log.Format)
	}
	return nil
}

// Load reads YAML from path over Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	return os.WriteFile(path, b, 0o644)
}
