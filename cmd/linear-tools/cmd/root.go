/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ssargent/lineartools/pkg/config"
	"github.com/ssargent/lineartools/pkg/di"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "linear-tools",
		Short: "Convert Minecraft region files between Anvil and Linear",
		Long: `linear-tools converts region files between the sector based Anvil
(.mca) format and the single zstd blob Linear (.linear) format, and can
inspect and compare region files in either format.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: OS-specific location)")

	rootCmd.AddCommand(
		newConvertCmd(),
		newInspectCmd(),
		newVerifyCmd(),
		newHistoryCmd(),
		newInitCmd(),
	)
	return rootCmd
}

// Execute runs the root command and exits with status 1 on any error.
// This is called by main.main().
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrf("Error: %v\n", err)
		os.Exit(1)
	}
}

// configPath returns the --config flag or the default location.
func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	return path
}

// loadConfig reads the config file if there is one and falls back to the
// defaults otherwise. An explicit --config must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath(cmd)
	explicit := cmd.Flags().Changed("config")
	if !explicit && !config.ConfigExists(path) {
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(path)
}

// newContainer validates cfg and builds the dependencies, logging to the
// command's stderr.
func newContainer(cmd *cobra.Command, cfg *config.Config) (*di.Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return di.NewContainer(cfg, cmd.ErrOrStderr())
}

// raiseLevel applies -v counts on top of the configured level.
func raiseLevel(level string, verbosity int) string {
	current, err := logrus.ParseLevel(level)
	if err != nil {
		return level
	}
	want := current
	switch {
	case verbosity >= 2:
		want = logrus.TraceLevel
	case verbosity == 1:
		want = logrus.DebugLevel
	}
	if want > current {
		return want.String()
	}
	return level
}
