// World generation: maze carving or open field walls, then a ground-truth
// interest value for every cell.
package world

import (
	"math"

	"github.com/iotaledger/hive.go/ierrors"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/swarm-ledger/internal/entropy"
)

// MaxInterest is the exclusive upper bound of generated interest values.
const MaxInterest = 10.0

// InterestMode selects how ground-truth interest is generated.
type InterestMode uint8

const (
	InterestUniform InterestMode = iota // Independent uniform draw per cell
	InterestNoise                       // Smooth simplex-noise field
)

// ParseInterestMode maps a configuration name to an InterestMode.
func ParseInterestMode(s string) (InterestMode, error) {
	switch s {
	case "uniform", "":
		return InterestUniform, nil
	case "noise":
		return InterestNoise, nil
	default:
		return 0, ierrors.Errorf("unknown interest mode %q", s)
	}
}

// GenConfig holds world generation parameters.
type GenConfig struct {
	Rows        int
	Cols        int
	Mode        Mode
	LoopPercent float64 // 0-100: chance to knock out each remaining interior wall after carving
	Interest    InterestMode
	Seed        int64 // 0 = random
}

// DefaultGenConfig returns the standard 15x25 maze.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Rows:        15,
		Cols:        25,
		Mode:        ModeMaze,
		LoopPercent: 1,
		Interest:    InterestUniform,
	}
}

// SmallTestConfig returns a tiny open field for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Rows:     5,
		Cols:     5,
		Mode:     ModeField,
		Interest: InterestUniform,
		Seed:     42,
	}
}

// Generate creates a complete ground-truth grid.
func Generate(cfg GenConfig) (*Grid, error) {
	seed := cfg.Seed
	if seed == 0 {
		seed = entropy.CryptoSeed()
	}

	g, err := NewGrid(cfg.Rows, cfg.Cols, cfg.Mode)
	if err != nil {
		return nil, err
	}

	wallRng := entropy.NewSeeded(seed + 100)
	switch cfg.Mode {
	case ModeMaze:
		carveMaze(g, wallRng)
		addLoops(g, wallRng, cfg.LoopPercent)
	case ModeField:
		openField(g)
	default:
		return nil, ierrors.Errorf("unknown map mode %d", cfg.Mode)
	}

	switch cfg.Interest {
	case InterestUniform:
		uniformInterest(g, entropy.NewSeeded(seed+200))
	case InterestNoise:
		noiseInterest(g, seed+200)
	default:
		return nil, ierrors.Errorf("unknown interest mode %d", cfg.Interest)
	}

	return g, nil
}

// carveMaze runs an iterative randomized depth-first search from the
// south-east corner, opening a passage each time it enters a new cell.
func carveMaze(g *Grid, src entropy.Source) {
	visited := make([]bool, g.CellCount())
	start := Cell{Row: g.rows, Col: g.cols}
	visited[g.Index(start)] = true
	stack := []Cell{start}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]

		var options []Direction
		for _, d := range Directions {
			n := cur.Step(d)
			if g.InBounds(n) && !visited[g.Index(n)] {
				options = append(options, d)
			}
		}
		if len(options) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}

		d := options[src.Intn(len(options))]
		next := cur.Step(d)
		_ = g.Link(cur, d, true)
		visited[g.Index(next)] = true
		stack = append(stack, next)
	}
}

// addLoops opens additional interior walls so the maze has more than one route
// between most cells.
func addLoops(g *Grid, src entropy.Source, percent float64) {
	if percent <= 0 {
		return
	}
	p := math.Min(percent, 100) / 100
	for _, c := range g.Cells() {
		for _, d := range [2]Direction{East, South} {
			n := c.Step(d)
			if !g.InBounds(n) || g.Openings(c).Open(d) {
				continue
			}
			if src.Float64() < p {
				_ = g.Link(c, d, true)
			}
		}
	}
}

// openField opens every interior passage; only the boundary stays walled.
func openField(g *Grid) {
	for _, c := range g.Cells() {
		for _, d := range [2]Direction{East, South} {
			if g.InBounds(c.Step(d)) {
				_ = g.Link(c, d, true)
			}
		}
	}
}

func uniformInterest(g *Grid, src entropy.Source) {
	for i := range g.interest {
		g.interest[i] = src.Float64() * MaxInterest
	}
}

func noiseInterest(g *Grid, seed int64) {
	noise := opensimplex.NewNormalized(seed)
	for _, c := range g.Cells() {
		v := octaveNoise(noise, float64(c.Col), float64(c.Row), 3, 0.15, 0.5)
		g.interest[g.Index(c)] = math.Min(v*MaxInterest, math.Nextafter(MaxInterest, 0))
	}
}

func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// POICount returns how many cells have interest strictly above threshold.
func POICount(m Model, threshold float64) int {
	n := 0
	for r := 1; r <= m.Rows(); r++ {
		for c := 1; c <= m.Cols(); c++ {
			if m.Interest(Cell{Row: r, Col: c}) > threshold {
				n++
			}
		}
	}
	return n
}
