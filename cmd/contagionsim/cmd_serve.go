package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/contagion-sim/internal/api"
	"github.com/talgya/contagion-sim/internal/engine"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a scenario in real time behind the HTTP API",
		Long: `Step the simulation at a paced rate (see --interval and POST
/api/v1/speed) while serving status, census, sites, events and agents
over HTTP. Admin endpoints need CONTAGION_ADMIN_KEY.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := loadScenario(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				sc.API.Port, _ = cmd.Flags().GetInt("port")
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

			eng := engine.NewEngine(sim.Calendar)
			eng.Interval, _ = cmd.Flags().GetDuration("interval")
			eng.OnTick = func(ctx context.Context, _ uint64) error {
				return sim.Step(ctx)
			}
			eng.OnDay = func(uint64) {
				summarize(sim)
				if db == nil {
					return
				}
				if err := db.SaveRunState(sim); err != nil {
					slog.Error("daily save failed", "error", err)
				}
			}

			if sc.API.AdminKey == "" {
				slog.Warn("CONTAGION_ADMIN_KEY not set, admin POST endpoints will be disabled")
			}
			srv := &api.Server{
				Sim:      sim,
				Eng:      eng,
				DB:       db,
				Port:     sc.API.Port,
				AdminKey: sc.API.AdminKey,
			}
			srv.Start()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "\n%s is running: %d agents on %d sites.\n",
				sim.Name, sim.Population.Len(), sim.Roster.Len())
			fmt.Fprintf(cmd.OutOrStdout(), "API: http://localhost:%d/api/v1/status\n", sc.API.Port)
			fmt.Fprintln(cmd.OutOrStdout(), "Starting simulation... (Ctrl+C to stop)")

			runErr := eng.Run(ctx)

			if db != nil {
				slog.Info("final save...")
				if err := db.SaveRunState(sim); err != nil {
					slog.Error("final save failed", "error", err)
				}
			}
			if runErr != nil && !errors.Is(runErr, context.Canceled) {
				return runErr
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Simulation stopped.")
			return nil
		},
	}
	cmd.Flags().Int("port", 0, "HTTP port (overrides api.port)")
	cmd.Flags().Duration("interval", time.Second, "Wall-clock time per tick at speed 1")
	return cmd
}
