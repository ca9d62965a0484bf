package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/objectfs/tiercache/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect tiercache configuration",
		Args:  cobra.NoArgs,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:     "validate",
			Short:   "Load and validate the configuration",
			Example: "tiercache config validate --config tiercache.yaml",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(configFile)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "configuration OK: %d caches %v\n", len(cfg.Caches), cfg.CacheNames())
				return nil
			},
		},
		&cobra.Command{
			Use:   "defaults",
			Short: "Print the default configuration as YAML",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				data, err := config.NewDefault().Marshal()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			},
		},
	)

	return cmd
}
