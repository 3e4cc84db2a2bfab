package world

import (
	"fmt"

	"github.com/iotaledger/hive.go/ierrors"
)

var (
	// ErrInvalidDimensions is returned for non-positive grid extents.
	ErrInvalidDimensions = ierrors.New("grid dimensions must be positive")
	// ErrOutOfBounds is returned when a cell lies outside the grid.
	ErrOutOfBounds = ierrors.New("cell out of bounds")
)

// Mode distinguishes generated mazes from open fields.
type Mode uint8

const (
	ModeMaze  Mode = iota // Carved walls with optional loops
	ModeField             // Walls on the boundary only
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeMaze:
		return "maze"
	case ModeField:
		return "field"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode maps a configuration name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "maze", "":
		return ModeMaze, nil
	case "field":
		return ModeField, nil
	default:
		return 0, ierrors.Errorf("unknown map mode %q", s)
	}
}

// Model is the read-only ground truth agents observe.
type Model interface {
	Rows() int
	Cols() int
	Mode() Mode
	InBounds(c Cell) bool
	Openings(c Cell) Openings
	Interest(c Cell) float64
}

// Grid is the ground-truth world: passages and interest for every cell.
// It is mutated only during generation and read-only afterwards.
type Grid struct {
	rows, cols int
	mode       Mode
	openings   []Openings
	interest   []float64
}

// NewGrid creates a grid with every cell closed on all sides and zero interest.
func NewGrid(rows, cols int, mode Mode) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, ierrors.Wrapf(ErrInvalidDimensions, "got %dx%d", rows, cols)
	}
	return &Grid{
		rows:     rows,
		cols:     cols,
		mode:     mode,
		openings: make([]Openings, rows*cols),
		interest: make([]float64, rows*cols),
	}, nil
}

// Rows returns the row extent.
func (g *Grid) Rows() int { return g.rows }

// Cols returns the column extent.
func (g *Grid) Cols() int { return g.cols }

// Mode returns how the grid's walls were generated.
func (g *Grid) Mode() Mode { return g.mode }

// InBounds returns true if the cell lies on the grid.
func (g *Grid) InBounds(c Cell) bool {
	return c.Row >= 1 && c.Row <= g.rows && c.Col >= 1 && c.Col <= g.cols
}

// Index returns the row-major slice index of an in-bounds cell.
func (g *Grid) Index(c Cell) int {
	return (c.Row-1)*g.cols + (c.Col - 1)
}

// Openings returns the passages of c, or all-closed when c is off the grid.
func (g *Grid) Openings(c Cell) Openings {
	if !g.InBounds(c) {
		return Openings{}
	}
	return g.openings[g.Index(c)]
}

// Interest returns the ground-truth interest of c, or 0 when c is off the grid.
func (g *Grid) Interest(c Cell) float64 {
	if !g.InBounds(c) {
		return 0
	}
	return g.interest[g.Index(c)]
}

// SetInterest sets the ground-truth interest of c.
func (g *Grid) SetInterest(c Cell, v float64) error {
	if !g.InBounds(c) {
		return ierrors.Wrapf(ErrOutOfBounds, "set interest at %s", c)
	}
	g.interest[g.Index(c)] = v
	return nil
}

// Link opens or closes the passage between c and its neighbour in direction d,
// keeping both sides consistent. Passages never lead off the grid.
func (g *Grid) Link(c Cell, d Direction, open bool) error {
	n := c.Step(d)
	if !g.InBounds(c) || !g.InBounds(n) {
		return ierrors.Wrapf(ErrOutOfBounds, "link %s %s", c, d)
	}
	g.openings[g.Index(c)][d] = open
	g.openings[g.Index(n)][d.Opposite()] = open
	return nil
}

// Cells returns every cell in row-major order.
func (g *Grid) Cells() []Cell {
	cells := make([]Cell, 0, g.rows*g.cols)
	for r := 1; r <= g.rows; r++ {
		for c := 1; c <= g.cols; c++ {
			cells = append(cells, Cell{Row: r, Col: c})
		}
	}
	return cells
}

// CellCount returns the total number of cells.
func (g *Grid) CellCount() int {
	return g.rows * g.cols
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d, mode=%s)", g.rows, g.cols, g.mode)
}

// Neighborhood returns the cells within Chebyshev radius r of centre, clipped
// to the grid, in row-major order.
func Neighborhood(m Model, centre Cell, r int) []Cell {
	cells := make([]Cell, 0, (2*r+1)*(2*r+1))
	for dr := -r; dr <= r; dr++ {
		for dc := -r; dc <= r; dc++ {
			c := Cell{Row: centre.Row + dr, Col: centre.Col + dc}
			if m.InBounds(c) {
				cells = append(cells, c)
			}
		}
	}
	return cells
}
