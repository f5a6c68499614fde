package main

import (
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/lidarml/config"
	"github.com/YuminosukeSato/lidarml/registry"
	"github.com/YuminosukeSato/lidarml/trainer"
)

func train(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return reportErr(cmd, cfg.Log, "invalid configuration", err)
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return err
	}

	opts := []trainer.Option{trainer.WithLogger(logger)}
	if cfg.Registry.Path != "" {
		db, err := registry.Open(cfg.Registry.Path)
		if err != nil {
			logger.Error("failed to open run registry", err)
			return err
		}
		defer db.Close()
		opts = append(opts, trainer.WithRecorder(db))
	}

	rep, err := trainer.Run(cmd.Context(), cfg, opts...)
	if err != nil {
		logger.Error("training failed", err)
		return err
	}
	printReport(cmd.OutOrStdout(), rep)
	return nil
}

func printReport(w io.Writer, rep *trainer.Report) {
	if math.IsNaN(rep.R2) {
		fmt.Fprintln(w, "R2 score: undefined (constant target in the test split)")
	} else {
		fmt.Fprintf(w, "R2 score: %.6f\n", rep.R2)
	}
	fmt.Fprintf(w, "MSE: %.6f  MAE: %.6f  (train=%d test=%d dropped=%d)\n",
		rep.Scores.MSE, rep.Scores.MAE, rep.NTrain, rep.NTest, rep.NDropped)
	fmt.Fprintln(w)
	fmt.Fprintln(w, rep.Summary)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Prediction for %v: %.6f (reloaded %.6f)\n", rep.Sample, rep.SamplePrediction, rep.ReloadedPrediction)
	fmt.Fprintf(w, "Model saved to %s\n", rep.ModelPath)
	if rep.ParamsPath != "" {
		fmt.Fprintf(w, "Parameters saved to %s\n", rep.ParamsPath)
	}
	fmt.Fprintf(w, "Run ID: %s\n", rep.RunID)
}

// reportErr logs a failure that happened before the configured logger exists.
func reportErr(cmd *cobra.Command, lc config.LogConfig, msg string, err error) error {
	logger, lerr := newLogger(cmd.ErrOrStderr(), lc)
	if lerr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "lidarml: %s: %v\n", msg, err)
		return err
	}
	logger.Error(msg, err)
	return err
}

func trainCMD() *cobra.Command {
	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "train, export and verify the model",
		Long:  "load the table, fit scaler and regressor, export LidarMLModel.mlmodel and verify the reloaded model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return train(cmd)
		},
	}
	attachFlags(trainCmd, trainFlagNames)
	return trainCmd
}
