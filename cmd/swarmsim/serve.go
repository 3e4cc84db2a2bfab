package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/talgya/swarm-ledger/internal/api"
	"github.com/talgya/swarm-ledger/internal/engine"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a paced simulation behind the read-only HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "API port (overrides api.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.API.Port = servePort
	}
	interval, err := cfg.Interval()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	sim, err := buildSimulation(cfg, reg)
	if err != nil {
		return err
	}
	rec, err := openRecorder(cfg)
	if err != nil {
		return err
	}
	defer finish(sim, rec)

	eng := engine.NewEngine()
	eng.Interval = interval
	eng.MaxTicks = cfg.Engine.Ticks
	eng.OnTick = tickFunc(sim, rec)
	eng.OnReport = sim.Report

	server := &api.Server{
		Sim:      sim,
		Eng:      eng,
		Recorder: rec,
		Gatherer: reg,
		Port:     cfg.API.Port,
	}
	server.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("HTTP shutdown", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	fmt.Fprintln(cmd.OutOrStdout(), "Starting simulation... (Ctrl+C to stop)")

	if err := eng.Run(ctx); err != nil && !ierrors.Is(err, context.Canceled) {
		return err
	}

	printSummary(cmd.OutOrStdout(), sim)
	return nil
}
