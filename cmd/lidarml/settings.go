package main

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/lidarml/config"
	"github.com/YuminosukeSato/lidarml/pkg/errors"
	"github.com/YuminosukeSato/lidarml/pkg/log"
)

// loadConfig resolves the configuration in increasing precedence: defaults,
// the YAML file (--config or LIDARML_CONFIG), LIDARML_* environment
// variables and command-line flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	v := viper.New()
	v.SetEnvPrefix("lidarml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return config.Config{}, errors.Wrapf(err, "bind flag %s", name)
			}
		}
	}

	cfg := config.Default()
	path := v.GetString("config")
	if f := cmd.Flags().Lookup("config"); f != nil && f.Changed {
		path = f.Value.String()
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	overrideString(v, "data.path", &cfg.Data.Path)
	overrideString(v, "scaler.zero_variance", &cfg.Scaler.ZeroVariance)
	overrideString(v, "export.model_path", &cfg.Export.ModelPath)
	overrideString(v, "export.params_path", &cfg.Export.ParamsPath)
	overrideString(v, "report.plot_path", &cfg.Report.PlotPath)
	overrideString(v, "report.metrics_path", &cfg.Report.MetricsPath)
	overrideString(v, "registry.path", &cfg.Registry.Path)
	overrideString(v, "log.level", &cfg.Log.Level)
	overrideString(v, "log.format", &cfg.Log.Format)
	if isSet(v, cmd, "split.test_size") {
		cfg.Split.TestSize = v.GetFloat64("split.test_size")
	}
	if isSet(v, cmd, "split.random_state") {
		cfg.Split.RandomState = v.GetInt64("split.random_state")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// isSet ignores flag defaults, which viper reports as set.
func isSet(v *viper.Viper, cmd *cobra.Command, key string) bool {
	for name, k := range flagKeys {
		if k == key {
			if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
				return true
			}
		}
	}
	_, ok := os.LookupEnv("LIDARML_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	return ok
}

func overrideString(v *viper.Viper, key string, dst *string) {
	if s := v.GetString(key); s != "" {
		*dst = s
	}
}

// newLogger builds the process logger and routes library warnings to it.
func newLogger(w io.Writer, cfg config.LogConfig) (log.Logger, error) {
	level, err := log.ToLogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Format == config.FormatJSON {
		if err := log.SetupLogger(w, cfg.Level); err != nil {
			return nil, err
		}
		logger := log.NewSlogLogger(nil)
		errors.SetZerologWarnFunc(nil)
		errors.SetWarningHandler(func(warning error) {
			logger.Warn(warning.Error())
		})
		return logger, nil
	}
	logger := log.NewConsoleLogger(w, log.Level(level))
	logger.InstallWarnings()
	return logger, nil
}
