package agents

import (
	"github.com/iotaledger/hive.go/ierrors"

	"github.com/talgya/swarm-ledger/internal/ledger"
	"github.com/talgya/swarm-ledger/internal/tokens"
	"github.com/talgya/swarm-ledger/internal/world"
)

// KnowledgeMap is an agent's private belief about the grid: connectivity,
// how often each cell was observed, and the interest values revealed so far.
type KnowledgeMap struct {
	rows, cols int
	openings   []world.Openings
	visits     []int
	interest   []float64
}

// NewKnowledgeMap returns a blank belief: every passage open, nothing visited,
// zero interest everywhere.
func NewKnowledgeMap(rows, cols int) (*KnowledgeMap, error) {
	if rows <= 0 || cols <= 0 {
		return nil, ierrors.Wrapf(world.ErrInvalidDimensions, "knowledge map %dx%d", rows, cols)
	}
	n := rows * cols
	k := &KnowledgeMap{
		rows:     rows,
		cols:     cols,
		openings: make([]world.Openings, n),
		visits:   make([]int, n),
		interest: make([]float64, n),
	}
	for i := range k.openings {
		k.openings[i] = world.AllOpen
	}
	return k, nil
}

// NewOmniscientMap returns a belief equal to the ground truth, with every cell
// counted as visited once.
func NewOmniscientMap(truth world.Model) (*KnowledgeMap, error) {
	k, err := NewKnowledgeMap(truth.Rows(), truth.Cols())
	if err != nil {
		return nil, err
	}
	for r := 1; r <= k.rows; r++ {
		for c := 1; c <= k.cols; c++ {
			cell := world.C(r, c)
			i := k.index(cell)
			k.openings[i] = truth.Openings(cell)
			k.interest[i] = truth.Interest(cell)
			k.visits[i] = 1
		}
	}
	return k, nil
}

func (k *KnowledgeMap) index(c world.Cell) int {
	return (c.Row-1)*k.cols + (c.Col - 1)
}

// Rows returns the row extent.
func (k *KnowledgeMap) Rows() int { return k.rows }

// Cols returns the column extent.
func (k *KnowledgeMap) Cols() int { return k.cols }

// InBounds reports whether c lies on the grid.
func (k *KnowledgeMap) InBounds(c world.Cell) bool {
	return c.Row >= 1 && c.Row <= k.rows && c.Col >= 1 && c.Col <= k.cols
}

// Openings returns the believed passability of c. Off-grid cells are closed.
func (k *KnowledgeMap) Openings(c world.Cell) world.Openings {
	if !k.InBounds(c) {
		return world.Openings{}
	}
	return k.openings[k.index(c)]
}

// Visits returns how many times c has been observed.
func (k *KnowledgeMap) Visits(c world.Cell) int {
	if !k.InBounds(c) {
		return 0
	}
	return k.visits[k.index(c)]
}

// Interest returns the revealed interest of c, 0 if never observed.
func (k *KnowledgeMap) Interest(c world.Cell) float64 {
	if !k.InBounds(c) {
		return 0
	}
	return k.interest[k.index(c)]
}

// Observe copies the ground truth of c into the belief and counts the visit.
// Repeated observation only changes the counter.
func (k *KnowledgeMap) Observe(truth world.Model, c world.Cell) error {
	if !k.InBounds(c) || !truth.InBounds(c) {
		return ierrors.Wrapf(world.ErrOutOfBounds, "observe %s", c)
	}
	i := k.index(c)
	k.openings[i] = truth.Openings(c)
	k.interest[i] = truth.Interest(c)
	k.visits[i]++
	return nil
}

// ScoreCells runs the scoring pipeline over the current belief. It does not
// modify the map.
func (k *KnowledgeMap) ScoreCells(p *tokens.Pipeline, pois ledger.Aggregate, position world.Cell) *tokens.Map {
	return p.Score(tokens.Input{Knowledge: k, POIs: pois, Position: position})
}

// AdoptMoreExplored overwrites the connectivity and visit count of every cell
// that from has observed strictly more often. It returns the number of cells
// taken over.
func (k *KnowledgeMap) AdoptMoreExplored(from *KnowledgeMap) int {
	if from == nil || from == k || from.rows != k.rows || from.cols != k.cols {
		return 0
	}
	adopted := 0
	for i, v := range from.visits {
		if v > k.visits[i] {
			k.visits[i] = v
			k.openings[i] = from.openings[i]
			adopted++
		}
	}
	return adopted
}

// VisitMass is the sum of all visit counters.
func (k *KnowledgeMap) VisitMass() int {
	total := 0
	for _, v := range k.visits {
		total += v
	}
	return total
}

// Coverage is the fraction of cells observed at least once.
func (k *KnowledgeMap) Coverage() float64 {
	seen := 0
	for _, v := range k.visits {
		if v > 0 {
			seen++
		}
	}
	return float64(seen) / float64(len(k.visits))
}

// VisitRows renders the visit counters row-major.
func (k *KnowledgeMap) VisitRows() [][]int {
	out := make([][]int, k.rows)
	for r := range out {
		out[r] = append([]int(nil), k.visits[r*k.cols:(r+1)*k.cols]...)
	}
	return out
}
