/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/lineartools/pkg/inspect"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify SOURCE CONVERTED",
		Short: "Check that a converted region file matches its source",
		Long: `Read two region files in any format and compare them chunk by chunk:
presence, timestamp and an xxhash64 digest of the payload.

Examples:
  linear-tools verify r.0.0.mca r.0.0.linear`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := inspect.Verify(args[0], args[1])
			if err != nil {
				return err
			}
			c.Write(cmd.OutOrStdout())
			if !c.OK() {
				return fmt.Errorf("%d chunks differ", len(c.Differences))
			}
			return nil
		},
	}
}
