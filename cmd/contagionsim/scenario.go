package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/contagion-sim/internal/config"
	"github.com/talgya/contagion-sim/internal/contagion"
	"github.com/talgya/contagion-sim/internal/engine"
	"github.com/talgya/contagion-sim/internal/entropy"
	"github.com/talgya/contagion-sim/internal/logging"
	"github.com/talgya/contagion-sim/internal/persistence"
)

// loadScenario reads --config (or the built-in scenario), applies the
// global flags, and installs the logger.
func loadScenario(cmd *cobra.Command) (*config.Scenario, error) {
	path, _ := cmd.Flags().GetString("config")

	var sc *config.Scenario
	if path == "" {
		sc = config.Default()
	} else {
		var err error
		sc, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		sc.Logging.Level = level
	}
	if cmd.Flags().Changed("seed") {
		sc.Run.Seed, _ = cmd.Flags().GetInt64("seed")
	}
	if sc.Run.Seed == 0 {
		sc.Run.Seed = entropy.CryptoSeed()
	}

	logging.Install(sc.Logging.Level, os.Stderr)
	return sc, nil
}

// buildSimulation validates the scenario, runs the scheduler, and queues
// the seeding plan. Setup errors surface here, before any tick.
func buildSimulation(sc *config.Scenario) (*engine.Simulation, error) {
	setup, err := sc.Build()
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
	}
	sim, err := engine.NewSimulation(setup)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
	}
	for _, s := range sc.Seeding {
		if err := sim.ScheduleSeed(s.Tick, s.Count, contagion.StateID(s.State)); err != nil {
			return nil, err
		}
	}
	return sim, nil
}

// summarize logs the current census with humanized counts.
func summarize(sim *engine.Simulation) {
	census := sim.Census()
	attrs := []any{"tick", census.Tick, "time", sim.Now().SimTime(sim.Calendar)}
	for _, c := range census.Counts {
		attrs = append(attrs, string(c.State), humanize.Comma(int64(c.Agents)))
	}
	slog.Info("census", attrs...)
}

// recordScenario stores the scenario YAML next to the run, so a stored run
// can be replayed with "contagionsim run --config".
func recordScenario(db *persistence.DB, sim *engine.Simulation, sc *config.Scenario) {
	data, err := sc.Marshal()
	if err != nil {
		slog.Warn("scenario not recorded", "error", err)
		return
	}
	if err := db.SaveMeta(sim.RunID, "scenario", string(data)); err != nil {
		slog.Warn("scenario not recorded", "error", err)
	}
}
