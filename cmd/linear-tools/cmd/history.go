/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/ssargent/lineartools/pkg/storage"
)

func newHistoryCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "List past conversion runs",
		Long: `List conversion runs recorded in the journal, newest first. With a run
ID, list the files of that run instead. Requires journal.dir in the config.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}
	historyCmd.Flags().Int("limit", 10, "Maximum number of runs to show, 0 for all")
	return historyCmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Journal.Dir == "" {
		return fmt.Errorf("journal is disabled; set journal.dir in %s", configPath(cmd))
	}

	container, err := newContainer(cmd, cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	journal, err := container.Journal()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()

	if len(args) == 1 {
		id, err := ksuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid run ID %q: %w", args[0], err)
		}
		return printFiles(w, journal, id)
	}

	runs, err := journal.Runs(limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "RUN\tSTARTED\tTARGET\tCONVERTED\tSKIPPED\tFAILED\tDROPPED\tREAD\tWRITTEN\tINPUT")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\t%s\n",
			run.ID, run.Started.Local().Format(time.DateTime), run.Target,
			run.Converted, run.Skipped, run.Failed, run.ChunksDropped,
			humanize.Bytes(uint64(run.BytesRead)), humanize.Bytes(uint64(run.BytesWritten)), run.Input)
	}
	return nil
}

func printFiles(w *tabwriter.Writer, journal *storage.Journal, id ksuid.KSUID) error {
	if _, err := journal.Run(id); err != nil {
		return err
	}
	files, err := journal.Files(id)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "STATUS\tCHUNKS\tDROPPED\tSOURCE\tDETAIL")
	for _, f := range files {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", f.Status, f.Chunks, f.Dropped, f.Source, f.Error)
	}
	return nil
}
