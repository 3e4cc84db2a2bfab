// Package tokens turns an agent's knowledge and the ledger's POI aggregate
// into a per-cell desirability score by folding weighted stages in order.
package tokens

import (
	"gonum.org/v1/gonum/mat"

	"github.com/talgya/swarm-ledger/internal/world"
)

// Map is a dense per-cell score field over the whole grid. It is rebuilt on
// every planning call and never carried across ticks.
type Map struct {
	dense *mat.Dense
}

// NewMap creates an all-zero field.
func NewMap(rows, cols int) *Map {
	return &Map{dense: mat.NewDense(rows, cols, nil)}
}

// Rows returns the row extent.
func (m *Map) Rows() int {
	r, _ := m.dense.Dims()
	return r
}

// Cols returns the column extent.
func (m *Map) Cols() int {
	_, c := m.dense.Dims()
	return c
}

func (m *Map) inBounds(c world.Cell) bool {
	r, cols := m.dense.Dims()
	return c.Row >= 1 && c.Row <= r && c.Col >= 1 && c.Col <= cols
}

// At returns the score of c, or 0 off the grid.
func (m *Map) At(c world.Cell) float64 {
	if !m.inBounds(c) {
		return 0
	}
	return m.dense.At(c.Row-1, c.Col-1)
}

// Set assigns the score of c. Cells off the grid are ignored.
func (m *Map) Set(c world.Cell, v float64) {
	if !m.inBounds(c) {
		return
	}
	m.dense.Set(c.Row-1, c.Col-1, v)
}

// Clone returns an independent copy.
func (m *Map) Clone() *Map {
	return &Map{dense: mat.DenseCopyOf(m.dense)}
}

// Best returns the highest-scoring cell, first in row-major order on ties.
func (m *Map) Best() (world.Cell, float64) {
	rows, cols := m.dense.Dims()
	best := world.Cell{Row: 1, Col: 1}
	bestScore := m.dense.At(0, 0)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if v := m.dense.At(r, c); v > bestScore {
				best, bestScore = world.Cell{Row: r + 1, Col: c + 1}, v
			}
		}
	}
	return best, bestScore
}

// Rows2D renders the field as nested slices, row-major, for consumers that
// serialize it.
func (m *Map) Rows2D() [][]float64 {
	rows, _ := m.dense.Dims()
	out := make([][]float64, rows)
	for r := range out {
		out[r] = mat.Row(nil, r, m.dense)
	}
	return out
}
