package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/lidarml/config"
)

func showConfig(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return reportErr(cmd, cfg.Log, "invalid configuration", err)
	}
	if writeFlag != "" {
		if err := config.Save(writeFlag, cfg); err != nil {
			return reportErr(cmd, cfg.Log, "failed to write configuration", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "configuration written to %s\n", writeFlag)
		return nil
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(b)
	return err
}

func configCMD() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "print the effective configuration",
		Long:  "print the configuration after applying the file, LIDARML_* variables and flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showConfig(cmd)
		},
	}
	attachFlags(configCmd, append([]string{"write"}, trainFlagNames...))
	return configCmd
}
