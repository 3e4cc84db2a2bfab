package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/spf13/cobra"

	"github.com/talgya/swarm-ledger/internal/engine"
)

var (
	benchRuns        int
	benchMetric      string
	benchConcurrency int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Score independent seeded runs with a benchmark metric",
	Long: `bench runs the configured scenario several times, each with its own seed
derived from the configured one, and reports the mean and standard deviation
of the chosen metric at the final tick.

Metrics:
  coverage - mean fraction of cells each agent has observed
  poi      - reward for verified interest points, penalty for misses`,
	RunE: runBenchmark,
}

func init() {
	benchCmd.Flags().IntVarP(&benchRuns, "runs", "n", 10, "Independent runs")
	benchCmd.Flags().StringVarP(&benchMetric, "metric", "m", "coverage", "Metric: coverage or poi")
	benchCmd.Flags().IntVar(&benchConcurrency, "concurrency", 0, "Runs in flight (0 = GOMAXPROCS)")
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var metric engine.Metric
	switch benchMetric {
	case "coverage":
		metric = engine.CoverageMetric
	case "poi":
		metric = engine.POIMetric
	default:
		return ierrors.Errorf("unknown metric %q", benchMetric)
	}

	gen, err := cfg.GenConfig()
	if err != nil {
		return err
	}
	spawn, err := cfg.SpawnConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := engine.Benchmark(ctx, engine.BenchmarkConfig{
		Runs:        benchRuns,
		Ticks:       int(cfg.Engine.Ticks),
		Agents:      cfg.Agents.Count,
		Gen:         gen,
		Spawn:       spawn,
		Metric:      metric,
		Concurrency: benchConcurrency,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, s := range result.Scores {
		fmt.Fprintf(out, "run %2d: %.4f\n", i+1, s)
	}
	fmt.Fprintf(out, "%s over %d runs of %d ticks: mean %.4f, stddev %.4f\n",
		benchMetric, len(result.Scores), cfg.Engine.Ticks, result.Mean, result.StdDev)
	return nil
}
