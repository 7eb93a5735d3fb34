package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/talgya/contagion-sim/internal/engine"
	"github.com/talgya/contagion-sim/internal/schedule"
	"github.com/talgya/contagion-sim/internal/world"
)

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Assign sites and print the weekly occupancy table",
		Long: `Run the scheduler only and print, for every site, how many agents
occupy it at each day and hour. --class restricts the counts to one
class.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := loadScenario(cmd)
			if err != nil {
				return err
			}
			sim, err := buildSimulation(sc)
			if err != nil {
				return err
			}
			class, _ := cmd.Flags().GetString("class")
			if class != "" {
				if _, ok := sim.Population.Class(class); !ok {
					return fmt.Errorf("class %q: %w", class, engine.ErrUnknownReference)
				}
			}
			printOccupancy(cmd, sim, class)
			return nil
		},
	}
	cmd.Flags().String("class", "", "Only count agents of this class")
	return cmd
}

func printOccupancy(cmd *cobra.Command, sim *engine.Simulation, class string) {
	out := cmd.OutOrStdout()
	cal := sim.Calendar
	occ := schedule.Tally(cal, sim.Roster, sim.Population, class)

	for d := 0; d < cal.Days; d++ {
		fmt.Fprintf(out, "Day %d\n", d)
		var header strings.Builder
		fmt.Fprintf(&header, "  %-16s", "site")
		for h := 0; h < cal.Hours; h++ {
			fmt.Fprintf(&header, " %4s", fmt.Sprintf("h%d", h))
		}
		fmt.Fprintln(out, header.String())

		for _, site := range sim.Roster.All() {
			counts := occ[site.Ref]
			if !busyOn(counts, cal, d) {
				continue
			}
			var row strings.Builder
			fmt.Fprintf(&row, "  %-16s", site.String())
			for h := 0; h < cal.Hours; h++ {
				fmt.Fprintf(&row, " %4d", counts[cal.Slot(d, h)])
			}
			fmt.Fprintln(out, row.String())
		}
	}
}

func busyOn(counts []int, cal world.Calendar, day int) bool {
	for h := 0; h < cal.Hours; h++ {
		if counts != nil && counts[cal.Slot(day, h)] > 0 {
			return true
		}
	}
	return false
}
