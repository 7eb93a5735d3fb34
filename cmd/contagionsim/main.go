// Command contagionsim schedules a population onto shared sites and runs
// the contagion model over the weekly calendar.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "contagionsim",
		Short: "Weekly-schedule contagion simulator",
		Long: `contagionsim assigns agents to capacity-limited sites from per-class
schedule constraints, then simulates how a compartment model spreads
between agents who share a site at the same hour.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Scenario YAML file (default: built-in weekly SIRS scenario)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Int64("seed", 0, "Random seed (overrides the scenario)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(),
		newScheduleCmd(),
		newRunCmd(),
		newServeCmd(),
		newHistoryCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "contagionsim", version)
		},
	}
}
