package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var flags *pflag.FlagSet

var (
	cfgPathFlag      string
	dataFlag         string
	testSizeFlag     float64
	seedFlag         int64
	zeroVarianceFlag string
	modelFlag        string
	paramsFlag       string
	plotFlag         string
	metricsFlag      string
	registryFlag     string
	logLevelFlag     string
	logFormatFlag    string
	inputFlag        map[string]string
	limitFlag        int
	writeFlag        string
)

// flagKeys maps a flag to the configuration key it overrides.
var flagKeys = map[string]string{
	"data":          "data.path",
	"test-size":     "split.test_size",
	"seed":          "split.random_state",
	"zero-variance": "scaler.zero_variance",
	"model":         "export.model_path",
	"params":        "export.params_path",
	"plot":          "report.plot_path",
	"metrics":       "report.metrics_path",
	"registry":      "registry.path",
	"log-level":     "log.level",
	"log-format":    "log.format",
}

func init() {
	resetFlags()
}

// resetFlags rebuilds the shared flag set so every command tree starts clean.
func resetFlags() {
	flags = &pflag.FlagSet{}

	flags.StringVarP(&cfgPathFlag, "config", "c", "", "YAML configuration file")
	flags.StringVarP(&dataFlag, "data", "d", "", "input CSV table")
	flags.Float64Var(&testSizeFlag, "test-size", 0, "held-out fraction in (0, 1)")
	flags.Int64Var(&seedFlag, "seed", 0, "random seed of the train/test split")
	flags.StringVar(&zeroVarianceFlag, "zero-variance", "", `zero-variance feature policy: "skip" or "fail"`)
	flags.StringVarP(&modelFlag, "model", "m", "", "Core ML model path")
	flags.StringVar(&paramsFlag, "params", "", "raw regression parameter artifact (.json or gob)")
	flags.StringVar(&plotFlag, "plot", "", "write a predicted-vs-actual PNG")
	flags.StringVar(&metricsFlag, "metrics", "", "write Prometheus textfile metrics")
	flags.StringVar(&registryFlag, "registry", "", "SQLite run registry")
	flags.StringVar(&logLevelFlag, "log-level", "", "debug, info, warn or error")
	flags.StringVar(&logFormatFlag, "log-format", "", `"console" or "json"`)
	flags.StringToStringVarP(&inputFlag, "input", "i", nil, "feature values, e.g. Accuracy=0.9,Score=0.8")
	flags.IntVarP(&limitFlag, "limit", "n", 20, "number of runs to list")
	flags.StringVarP(&writeFlag, "write", "w", "", "write the configuration to this path")
}

func attachFlags(cmd *cobra.Command, names []string) {
	cmdFlags := cmd.Flags()
	for _, name := range names {
		if flag := flags.Lookup(name); flag != nil {
			cmdFlags.AddFlag(flag)
		} else {
			panic(fmt.Errorf("could not find flag '%s' to attach to command '%s'", name, cmd.Name()))
		}
	}
}

var configFlagNames = []string{"config", "log-level", "log-format"}

var trainFlagNames = append([]string{
	"data", "test-size", "seed", "zero-variance", "model", "params", "plot", "metrics", "registry",
}, configFlagNames...)
