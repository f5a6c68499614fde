package main

import (
	"fmt"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/lidarml/pkg/errors"
	"github.com/YuminosukeSato/lidarml/registry"
)

func listRuns(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return reportErr(cmd, cfg.Log, "invalid configuration", err)
	}
	if cfg.Registry.Path == "" {
		err := errors.NewValidationError("registry.path", "is required to list runs", cfg.Registry.Path)
		return reportErr(cmd, cfg.Log, "invalid configuration", err)
	}
	db, err := registry.Open(cfg.Registry.Path)
	if err != nil {
		return reportErr(cmd, cfg.Log, "failed to open run registry", err)
	}
	defer db.Close()

	runs, err := db.List(cmd.Context(), limitFlag)
	if err != nil {
		return reportErr(cmd, cfg.Log, "failed to list runs", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tTRAIN\tTEST\tR2\tMODEL")
	for _, r := range runs {
		r2 := "-"
		if !math.IsNaN(r.R2) {
			r2 = fmt.Sprintf("%.4f", r.R2)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Status, r.NTrain, r.NTest, r2, r.ModelPath)
	}
	return tw.Flush()
}

func runsCMD() *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "list recorded training runs",
		Long:  "list training runs recorded in the SQLite registry, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listRuns(cmd)
		},
	}
	attachFlags(runsCmd, append([]string{"registry", "limit"}, configFlagNames...))
	return runsCmd
}
