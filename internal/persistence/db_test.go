package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/talgya/contagion-sim/internal/config"
	"github.com/talgya/contagion-sim/internal/engine"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestSimulation(t *testing.T) *engine.Simulation {
	t.Helper()
	setup, err := config.Default().Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	setup.Workers = 2
	sim, err := engine.NewSimulation(setup)
	if err != nil {
		t.Fatalf("new simulation: %v", err)
	}
	if _, err := sim.Seed(3, "I"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return sim
}

func TestSaveRunStateIncremental(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	sim := newTestSimulation(t)

	for i := 0; i < 10; i++ {
		if err := sim.Step(ctx); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if err := db.SaveRunState(sim); err != nil {
		t.Fatalf("first save: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := sim.Step(ctx); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if err := db.SaveRunState(sim); err != nil {
		t.Fatalf("second save: %v", err)
	}

	history, err := db.LoadCensusHistory(sim.RunID, 0, 1000, 100)
	if err != nil {
		t.Fatalf("load census: %v", err)
	}
	if len(history) != 15 {
		t.Fatalf("stored %d censuses, want 15", len(history))
	}
	for i, c := range history {
		if c.Tick != uint64(i) {
			t.Fatalf("census %d has tick %d", i, c.Tick)
		}
		if c.Total() != sim.Population.Len() {
			t.Fatalf("tick %d: total %d", c.Tick, c.Total())
		}
		if c.String() != sim.CensusHistory()[i].String() {
			t.Fatalf("tick %d: stored %s, memory %s", c.Tick, c, sim.CensusHistory()[i])
		}
	}

	window, err := db.LoadCensusHistory(sim.RunID, 5, 1000, 3)
	if err != nil {
		t.Fatalf("load window: %v", err)
	}
	if len(window) != 3 || window[0].Tick != 5 || window[2].Tick != 7 {
		t.Fatalf("unexpected window: %+v", window)
	}

	run, err := db.LatestRun()
	if err != nil {
		t.Fatalf("latest run: %v", err)
	}
	if run.ID != sim.RunID || run.LastTick != 15 || run.Agents != 120 || run.Sites != sim.Roster.Len() {
		t.Fatalf("unexpected run row: %+v", run)
	}

	sites, err := db.Sites(sim.RunID)
	if err != nil {
		t.Fatalf("sites: %v", err)
	}
	if len(sites) != sim.Roster.Len() {
		t.Fatalf("stored %d sites, want %d", len(sites), sim.Roster.Len())
	}

	events, err := db.RecentEvents(sim.RunID, 500)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) == 0 || events[len(events)-1].Category != "seed" {
		t.Fatalf("expected the seed event to be stored first, got %d events", len(events))
	}
}

func TestMetaRoundTrip(t *testing.T) {
	db := openTestDB(t)
	if err := db.SaveMeta("run-1", "scenario", "weekly"); err != nil {
		t.Fatalf("save meta: %v", err)
	}
	v, err := db.GetMeta("run-1", "scenario")
	if err != nil || v != "weekly" {
		t.Fatalf("get meta = %q, %v", v, err)
	}
	if _, err := db.GetMeta("run-2", "scenario"); err == nil {
		t.Fatal("expected missing meta to error")
	}
}

func TestLatestRunEmpty(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.LatestRun(); err == nil {
		t.Fatal("expected error with no runs")
	}
}
