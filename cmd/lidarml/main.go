// Command lidarml trains the Goal Score regressor and exports it as a Core ML
// model.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	resetFlags()

	root := trainCMD()
	root.Use = "lidarml"
	root.Short = "Train and export the LiDAR Goal Score model"
	root.Long = "Train a standardized linear regression on the Goal Score table, " +
		"export it as a Core ML pipeline and verify the exported model.\n" +
		"Running lidarml without a subcommand is the same as lidarml train."
	root.SilenceUsage = true
	root.SilenceErrors = true

	root.AddCommand(trainCMD(), predictCMD(), runsCMD(), configCMD())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
