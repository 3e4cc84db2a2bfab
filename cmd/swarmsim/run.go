package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/talgya/swarm-ledger/internal/engine"
	"github.com/talgya/swarm-ledger/internal/ledger"
)

var (
	runTicks  uint64
	runRecord string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a headless simulation for a fixed number of ticks",
	RunE:  runSimulation,
}

func init() {
	runCmd.Flags().Uint64VarP(&runTicks, "ticks", "t", 0, "Ticks to run (overrides engine.ticks)")
	runCmd.Flags().StringVar(&runRecord, "record", "", "SQLite path to record the run (overrides recorder.path)")
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runTicks > 0 {
		cfg.Engine.Ticks = runTicks
	}
	if runRecord != "" {
		cfg.Recorder.Path = runRecord
	}
	if cfg.Engine.Ticks == 0 {
		return ierrors.New("run needs a tick count; set engine.ticks or --ticks")
	}

	sim, err := buildSimulation(cfg, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	rec, err := openRecorder(cfg)
	if err != nil {
		return err
	}
	defer finish(sim, rec)

	eng := engine.NewEngine()
	eng.OnTick = tickFunc(sim, rec)
	eng.OnReport = sim.Report

	// Headless runs stop between ticks on interrupt.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for eng.Tick < cfg.Engine.Ticks {
		select {
		case <-sigCh:
			fmt.Fprintln(cmd.ErrOrStderr(), "interrupted")
			printSummary(cmd.OutOrStdout(), sim)
			return nil
		default:
		}
		if err := eng.RunTicks(1); err != nil {
			return err
		}
	}

	printSummary(cmd.OutOrStdout(), sim)
	return nil
}

func printSummary(w io.Writer, sim *engine.Simulation) {
	stats := sim.Snapshot()
	fmt.Fprintf(w, "\nTick %s: %d agents, coverage %.1f%%, POI score %.3f\n",
		humanize.Comma(int64(stats.Tick)), stats.Agents, 100*stats.Coverage, stats.POIScore)
	fmt.Fprintf(w, "Ledgers hold %s blocks after %s merges; %s moves, %s visits.\n",
		humanize.Comma(int64(stats.LedgerBlocks)), humanize.Comma(int64(stats.Merges)),
		humanize.Comma(int64(stats.Moves)), humanize.Comma(int64(stats.VisitMass)))
	fmt.Fprintf(w, "Events: %s detected, %s potential, %s verified, %s rejected.\n",
		humanize.Comma(int64(stats.Detections[ledger.TagDetected])),
		humanize.Comma(int64(stats.Detections[ledger.TagPotential])),
		humanize.Comma(int64(stats.Detections[ledger.TagVerified])),
		humanize.Comma(int64(stats.Detections[ledger.TagRejected])))

	for _, a := range sim.AgentSummaries() {
		fmt.Fprintf(w, "  agent %d at %s: %s blocks, %.0f%% observed\n",
			a.ID, a.Position, humanize.Comma(int64(a.LedgerBlocks)), 100*a.Coverage)
	}
}
