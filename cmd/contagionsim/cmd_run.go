package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/contagion-sim/internal/engine"
	"github.com/talgya/contagion-sim/internal/persistence"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario in batch mode",
		Long: `Schedule the population, then step the contagion model for the
configured number of ticks as fast as possible. The census history is
written to the database when storage.path is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := loadScenario(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("ticks") {
				sc.Run.Ticks, _ = cmd.Flags().GetUint64("ticks")
			}
			if cmd.Flags().Changed("db") {
				sc.Storage.Path, _ = cmd.Flags().GetString("db")
			}

			sim, err := buildSimulation(sc)
			if err != nil {
				return err
			}

			db, err := openStorage(sc.Storage.Path)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
				recordScenario(db, sim, sc)
			}

			ticks := sc.Run.Ticks
			if ticks == 0 {
				ticks = uint64(sim.Calendar.Slots())
			}

			eng := engine.NewEngine(sim.Calendar)
			eng.OnTick = func(ctx context.Context, tick uint64) error {
				if err := sim.Step(ctx); err != nil {
					return err
				}
				if every := sc.Run.SummaryEvery; every > 0 && (tick+1)%every == 0 {
					summarize(sim)
				}
				return nil
			}
			if sc.Run.SummaryEvery == 0 {
				eng.OnDay = func(uint64) { summarize(sim) }
			}
			if db != nil {
				eng.OnWeek = func(uint64) {
					if err := db.SaveRunState(sim); err != nil {
						slog.Error("weekly save failed", "error", err)
					}
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			slog.Info("run starting", "run", sim.RunID, "ticks", humanize.Comma(int64(ticks)), "seed", sim.Entropy.Seed())
			start := time.Now()
			runErr := eng.RunFor(ctx, ticks)

			if db != nil {
				if err := db.SaveRunState(sim); err != nil {
					slog.Error("final save failed", "error", err)
				}
			}
			if runErr != nil {
				return fmt.Errorf("run stopped at tick %d: %w", sim.CurrentTick(), runErr)
			}

			elapsed := time.Since(start)
			report(cmd, sim, elapsed)
			return nil
		},
	}
	cmd.Flags().Uint64("ticks", 0, "Ticks to run (overrides run.ticks)")
	cmd.Flags().String("db", "", "SQLite database path (overrides storage.path)")
	return cmd
}

// openStorage opens the run database, creating its directory. An empty
// path disables persistence.
func openStorage(path string) (*persistence.DB, error) {
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := persistence.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	slog.Info("database opened", "path", path)
	return db, nil
}

// report prints the final census and the peak of every state.
func report(cmd *cobra.Command, sim *engine.Simulation, elapsed time.Duration) {
	out := cmd.OutOrStdout()
	history := sim.CensusHistory()

	fmt.Fprintf(out, "\nRun %s: %s agents, %s sites, %s ticks in %s\n",
		sim.RunID,
		humanize.Comma(int64(sim.Population.Len())),
		humanize.Comma(int64(sim.Roster.Len())),
		humanize.Comma(int64(sim.CurrentTick())),
		elapsed.Round(time.Millisecond),
	)
	fmt.Fprintf(out, "Final (%s): %s\n", sim.Now().SimTime(sim.Calendar), sim.Census())

	for _, st := range sim.Model.States() {
		peak, at := 0, uint64(0)
		for _, c := range history {
			if n := c.Get(st.ID); n > peak {
				peak, at = n, c.Tick
			}
		}
		fmt.Fprintf(out, "  peak %-6s %6s at tick %d\n", st.ID, humanize.Comma(int64(peak)), at)
	}
}
