/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/lineartools/pkg/config"
)

func newInitCmd() *cobra.Command {
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write the default configuration, with the conversion journal enabled
next to the config file.

Examples:
  linear-tools init
  linear-tools init --config ./linear-tools.yaml --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			path := configPath(cmd)

			if config.ConfigExists(path) && !force {
				cmd.Printf("Configuration already exists at %s. Use --force to overwrite.\n", path)
				return nil
			}

			cfg, err := config.BootstrapConfig(path)
			if err != nil {
				return err
			}
			cmd.Printf("Configuration written to %s\n", path)
			cmd.Printf("Journal directory: %s\n", cfg.Journal.Dir)
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration")
	return initCmd
}
