package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/contagion-sim/internal/persistence"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print stored runs or the census history of one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := loadScenario(cmd)
			if err != nil {
				return err
			}
			path, _ := cmd.Flags().GetString("db")
			if path == "" {
				path = sc.Storage.Path
			}
			if path == "" {
				return fmt.Errorf("no database: set storage.path or --db")
			}
			db, err := persistence.Open(path)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			out := cmd.OutOrStdout()
			if list, _ := cmd.Flags().GetBool("list"); list {
				runs, err := db.Runs()
				if err != nil {
					return err
				}
				for _, r := range runs {
					fmt.Fprintf(out, "%s  %-16s seed=%d agents=%s sites=%d ticks=%s  %s\n",
						r.ID, r.Name, r.Seed, humanize.Comma(int64(r.Agents)), r.Sites,
						humanize.Comma(r.LastTick), r.CreatedAt)
				}
				return nil
			}

			runID, _ := cmd.Flags().GetString("run")
			if runID == "" {
				latest, err := db.LatestRun()
				if err != nil {
					return err
				}
				runID = latest.ID
			}
			if show, _ := cmd.Flags().GetBool("scenario"); show {
				data, err := db.GetMeta(runID, "scenario")
				if err != nil {
					return fmt.Errorf("run %s has no stored scenario: %w", runID, err)
				}
				fmt.Fprint(out, data)
				return nil
			}

			from, _ := cmd.Flags().GetUint64("from")
			to, _ := cmd.Flags().GetUint64("to")
			if to == 0 {
				to = 1<<63 - 1
			}
			limit, _ := cmd.Flags().GetInt("limit")
			history, err := db.LoadCensusHistory(runID, from, to, limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "run %s: %d censuses\n", runID, len(history))
			for _, c := range history {
				fmt.Fprintf(out, "%6d\t%s\n", c.Tick, c)
			}
			return nil
		},
	}
	cmd.Flags().String("db", "", "SQLite database path (overrides storage.path)")
	cmd.Flags().String("run", "", "Run ID (default: latest)")
	cmd.Flags().Bool("list", false, "List stored runs")
	cmd.Flags().Bool("scenario", false, "Print the scenario YAML stored with the run")
	cmd.Flags().Uint64("from", 0, "First tick")
	cmd.Flags().Uint64("to", 0, "Last tick (0 for no bound)")
	cmd.Flags().Int("limit", 0, "Maximum censuses (0 for all)")
	return cmd
}
