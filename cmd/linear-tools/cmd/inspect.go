/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/lineartools/pkg/inspect"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Describe region files",
		Long: `Print the format, coordinates, size, chunk count and newest chunk
timestamp of each region file. Linear files also show their version and
compression level.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				rep, err := inspect.Inspect(path)
				if err != nil {
					cmd.PrintErrf("%v\n", err)
					failed++
					continue
				}
				rep.Write(cmd.OutOrStdout())
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files could not be read", failed, len(args))
			}
			return nil
		},
	}
}
