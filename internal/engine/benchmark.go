// Benchmark metrics and a concurrent runner over independent seeded swarms.
package engine

import (
	"context"
	"runtime"

	"github.com/iotaledger/hive.go/ierrors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/talgya/swarm-ledger/internal/agents"
	"github.com/talgya/swarm-ledger/internal/ledger"
	"github.com/talgya/swarm-ledger/internal/world"
)

// Metric scores a simulation state. Metrics read the simulation without
// locking; call them only while owning it.
type Metric func(s *Simulation) float64

// CoverageMetric is the fraction of cells each agent has observed, averaged
// over the swarm.
func CoverageMetric(s *Simulation) float64 {
	if len(s.Agents) == 0 {
		return 0
	}
	total := 0.0
	for _, a := range s.Agents {
		total += a.Knowledge().Coverage()
	}
	return total / float64(len(s.Agents))
}

// POIMetric rates how well each agent's ledger agrees with the true points of
// interest: +1 for a cell verified more often than rejected, -0.5 for a cell
// only detected, -1 otherwise. The sum is normalised by agents*pois+1.
func POIMetric(s *Simulation) float64 {
	var truePOIs []world.Cell
	for r := 1; r <= s.World.Rows(); r++ {
		for c := 1; c <= s.World.Cols(); c++ {
			cell := world.C(r, c)
			if s.World.Interest(cell) > s.DetectThreshold {
				truePOIs = append(truePOIs, cell)
			}
		}
	}

	score := 0.0
	for _, a := range s.Agents {
		pois := a.POIs()
		for _, cell := range truePOIs {
			score += poiScore(pois, cell)
		}
	}
	return score / float64(len(s.Agents)*len(truePOIs)+1)
}

func poiScore(pois ledger.Aggregate, cell world.Cell) float64 {
	counts, ok := pois[cell]
	switch {
	case !ok:
		return -1
	case counts.Verified > counts.Rejected:
		return 1
	case counts.Detected > 0:
		return -0.5
	default:
		return -1
	}
}

// BenchmarkConfig describes a batch of independent runs.
type BenchmarkConfig struct {
	Runs        int
	Ticks       int
	Agents      int
	Gen         world.GenConfig
	Spawn       agents.SpawnConfig
	Metric      Metric
	Concurrency int // 0 = GOMAXPROCS
}

// BenchmarkResult holds per-run scores and their summary.
type BenchmarkResult struct {
	Scores []float64 `json:"scores"`
	Mean   float64   `json:"mean"`
	StdDev float64   `json:"stddev"`
}

// Benchmark runs cfg.Runs simulations in parallel. Run i uses seed+i for both
// world generation and spawning, so a non-zero seed makes the batch
// reproducible.
func Benchmark(ctx context.Context, cfg BenchmarkConfig) (BenchmarkResult, error) {
	if cfg.Runs < 1 || cfg.Ticks < 0 || cfg.Agents < 1 {
		return BenchmarkResult{}, ierrors.Errorf("benchmark needs runs >= 1, ticks >= 0, agents >= 1 (got %d, %d, %d)", cfg.Runs, cfg.Ticks, cfg.Agents)
	}
	metric := cfg.Metric
	if metric == nil {
		metric = CoverageMetric
	}
	limit := cfg.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	scores := make([]float64, cfg.Runs)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i := 0; i < cfg.Runs; i++ {
		g.Go(func() error {
			gen, spawn := cfg.Gen, cfg.Spawn
			if gen.Seed != 0 {
				gen.Seed += int64(i)
			}
			if spawn.Seed != 0 {
				spawn.Seed += int64(i)
			}

			sim, err := Build(gen, spawn, cfg.Agents)
			if err != nil {
				return ierrors.Wrapf(err, "run %d", i)
			}
			for t := 0; t < cfg.Ticks; t++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := sim.Step(); err != nil {
					return ierrors.Wrapf(err, "run %d", i)
				}
			}
			scores[i] = metric(sim)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BenchmarkResult{}, err
	}

	res := BenchmarkResult{Scores: scores, Mean: stat.Mean(scores, nil)}
	if len(scores) > 1 {
		res.StdDev = stat.StdDev(scores, nil)
	}
	return res, nil
}
