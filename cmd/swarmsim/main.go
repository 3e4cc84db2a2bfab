// Command swarmsim runs, benchmarks and serves swarm exploration simulations.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/talgya/swarm-ledger/internal/config"
	"github.com/talgya/swarm-ledger/internal/engine"
	"github.com/talgya/swarm-ledger/internal/metrics"
	"github.com/talgya/swarm-ledger/internal/persistence"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "swarmsim",
	Short: "Simulate a swarm of agents exploring a grid and gossiping what they find",
	Long: `swarmsim drops agents into a maze or open field. Each agent keeps its own
belief map and an append-only ledger of observations, plans a few moves ahead
by scoring cells, and pushes its ledger to every peer within range each tick.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "swarm.yaml", "YAML config file (defaults apply when missing)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to --config",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil {
			return ierrors.Errorf("%s already exists", configPath)
		}
		if err := config.DefaultConfig().Save(configPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
		return nil
	},
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slog.Debug("config loaded", "path", configPath, "seed", cfg.Seed, "agents", cfg.Agents.Count)
	return cfg, nil
}

// buildSimulation generates the world and swarm and attaches collectors
// registered with reg.
func buildSimulation(cfg *config.Config, reg prometheus.Registerer) (*engine.Simulation, error) {
	gen, err := cfg.GenConfig()
	if err != nil {
		return nil, err
	}
	spawn, err := cfg.SpawnConfig()
	if err != nil {
		return nil, err
	}

	sim, err := engine.Build(gen, spawn, cfg.Agents.Count)
	if err != nil {
		return nil, ierrors.Wrap(err, "build simulation")
	}
	if sim.Metrics, err = metrics.NewRegistered(reg); err != nil {
		return nil, ierrors.Wrap(err, "register metrics")
	}

	slog.Info("swarm ready",
		"rows", gen.Rows,
		"cols", gen.Cols,
		"mode", gen.Mode,
		"agents", len(sim.Agents),
		"seed", gen.Seed,
	)
	return sim, nil
}

// openRecorder opens the run database and starts a run, or returns nil when
// recording is disabled.
func openRecorder(cfg *config.Config) (*persistence.Recorder, error) {
	if cfg.Recorder.Path == "" {
		return nil, nil
	}
	rec, err := persistence.Open(cfg.Recorder.Path)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		_ = rec.Close()
		return nil, err
	}
	_, err = rec.BeginRun(persistence.RunInfo{
		Seed:   cfg.Seed,
		Rows:   cfg.Grid.Rows,
		Cols:   cfg.Grid.Cols,
		Mode:   cfg.Grid.Mode,
		Agents: cfg.Agents.Count,
		Config: string(raw),
	})
	if err != nil {
		_ = rec.Close()
		return nil, err
	}
	slog.Info("database opened", "path", cfg.Recorder.Path)
	return rec, nil
}

// tickFunc steps the simulation and, when recording, stores the tick summary.
func tickFunc(sim *engine.Simulation, rec *persistence.Recorder) func(uint64) error {
	return func(uint64) error {
		if err := sim.Step(); err != nil {
			return err
		}
		if rec == nil {
			return nil
		}
		return rec.RecordTick(sim.Snapshot())
	}
}

// finish saves the final ledgers and closes the recorder.
func finish(sim *engine.Simulation, rec *persistence.Recorder) {
	if rec == nil {
		return
	}
	if err := rec.SaveSimulation(sim); err != nil {
		slog.Error("final save failed", "error", err)
	}
	if err := rec.Close(); err != nil {
		slog.Error("close database", "error", err)
	}
}
