/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssargent/lineartools/pkg/config"
	"github.com/ssargent/lineartools/pkg/convert"
)

func newConvertCmd() *cobra.Command {
	convertCmd := &cobra.Command{
		Use:   "convert (--linear | --mca) INPUT",
		Short: "Convert region files to Linear or Anvil",
		Long: `Convert a region file, or every region file below a directory, to the
target format. Files already in the target format and empty files are
skipped. Output keeps the source directory layout and modification time.

Examples:
  linear-tools convert --linear ./world/region
  linear-tools convert --mca -t 4 -o ./world-anvil ./world-linear
  linear-tools convert --linear -c 12 -vv r.0.0.mca`,
		Args: cobra.ExactArgs(1),
		RunE: runConvert,
	}

	convertCmd.Flags().Bool("linear", false, "Convert to Linear (.linear)")
	convertCmd.Flags().Bool("mca", false, "Convert to Anvil (.mca)")
	convertCmd.Flags().CountP("verbose", "v", "Increase log verbosity (-v debug, -vv trace)")
	convertCmd.Flags().IntP("threads", "t", 0, "Worker count, 0 for one per CPU")
	convertCmd.Flags().IntP("compression-level", "c", 6, "zstd level for Linear output (1-22)")
	convertCmd.Flags().StringP("output", "o", "", "Output directory (default: next to the input)")
	return convertCmd
}

func runConvert(cmd *cobra.Command, args []string) error {
	toLinear, _ := cmd.Flags().GetBool("linear")
	toAnvil, _ := cmd.Flags().GetBool("mca")
	verbosity, _ := cmd.Flags().GetCount("verbose")
	output, _ := cmd.Flags().GetString("output")

	var target convert.Format
	switch {
	case toLinear && toAnvil:
		return &config.ConfigError{Field: "target", Reason: "--linear and --mca are mutually exclusive"}
	case toLinear:
		target = convert.Linear
	case toAnvil:
		target = convert.Anvil
	default:
		return &config.ConfigError{Field: "target", Reason: "one of --linear or --mca is required"}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("threads") {
		cfg.Threads, _ = cmd.Flags().GetInt("threads")
	}
	if cmd.Flags().Changed("compression-level") {
		cfg.Linear.CompressionLevel, _ = cmd.Flags().GetInt("compression-level")
	}
	cfg.Logging.Level = raiseLevel(cfg.Logging.Level, verbosity)

	container, err := newContainer(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := container.Close(); err != nil {
			container.Logger().WithError(err).Warn("cleanup failed")
		}
	}()

	converter, err := container.NewConverter(target, output)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	summary, err := converter.Run(ctx, args[0])
	if summary == nil {
		return err
	}

	for _, f := range summary.Failures() {
		cmd.PrintErrf("failed: %v\n", f.Err)
	}
	cmd.Printf("%s in %s\n", summary, summary.Duration.Round(time.Millisecond))

	if err != nil {
		return err
	}
	if summary.AllFailed() {
		return fmt.Errorf("all %d files failed", summary.Failed)
	}
	return nil
}
