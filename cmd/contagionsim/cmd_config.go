package main

import (
	"github.com/spf13/cobra"

	"github.com/talgya/contagion-sim/internal/config"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective scenario as YAML",
		Long: `Print the scenario that would run, after defaults and environment
overrides. Without --config this is the built-in scenario, a good
starting point for a custom file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			sc := config.Default()
			if path != "" {
				var err error
				if sc, err = config.Load(path); err != nil {
					return err
				}
			}
			if err := sc.Validate(); err != nil {
				return err
			}
			data, err := sc.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
