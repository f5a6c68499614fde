package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/lidarml/coreml"
	"github.com/YuminosukeSato/lidarml/pkg/errors"
	"github.com/YuminosukeSato/lidarml/pkg/log"
)

func predict(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return reportErr(cmd, cfg.Log, "invalid configuration", err)
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return err
	}

	inputs := make(map[string]float64, len(cfg.Verify.Sample))
	for k, v := range cfg.Verify.Sample {
		inputs[k] = v
	}
	for k, raw := range inputFlag {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			err = errors.NewValueError("predict", fmt.Sprintf("input %s=%q is not a number", k, raw))
			logger.Error("invalid input", err)
			return err
		}
		inputs[k] = v
	}

	m, err := coreml.Load(cfg.Export.ModelPath)
	if err != nil {
		logger.Error("failed to load model", err, log.ArtifactPathKey, cfg.Export.ModelPath)
		return err
	}
	out, err := m.Predict(inputs)
	if err != nil {
		logger.Error("prediction failed", err)
		return err
	}

	names := make([]string, 0, len(out))
	for name := range out {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %.6f\n", name, out[name])
	}
	return nil
}

func predictCMD() *cobra.Command {
	predictCmd := &cobra.Command{
		Use:   "predict",
		Short: "evaluate an exported Core ML model",
		Long:  "load a Core ML model written by train and evaluate it on --input, falling back to verify.sample",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return predict(cmd)
		},
	}
	attachFlags(predictCmd, append([]string{"model", "input"}, configFlagNames...))
	return predictCmd
}
