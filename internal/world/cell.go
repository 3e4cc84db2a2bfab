// Package world provides the rectangular grid explored by the swarm: cells,
// passage flags, and the immutable ground-truth model agents observe.
// Cells are 1-indexed: rows run 1..R from north to south, columns 1..C from west to east.
package world

import (
	"fmt"
	"math"
)

// Cell is a grid position.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// C is a convenience constructor for Cell.
func C(row, col int) Cell { return Cell{Row: row, Col: col} }

// Step returns the neighbouring cell in direction d. The result may be out of bounds.
func (c Cell) Step(d Direction) Cell {
	off := directionOffsets[d]
	return Cell{Row: c.Row + off.Row, Col: c.Col + off.Col}
}

// String renders the cell as "(row, col)".
func (c Cell) String() string {
	return fmt.Sprintf("(%d, %d)", c.Row, c.Col)
}

// Distance returns the euclidean distance between two cells.
func Distance(a, b Cell) float64 {
	dr := float64(a.Row - b.Row)
	dc := float64(a.Col - b.Col)
	return math.Sqrt(dr*dr + dc*dc)
}

// WithinSquare reports whether b lies inside the inclusive square of half-width
// r centred on a, checking each axis independently.
func WithinSquare(a, b Cell, r int) bool {
	return abs(a.Row-b.Row) <= r && abs(a.Col-b.Col) <= r
}

// Direction is one of the four compass moves.
type Direction uint8

const (
	North Direction = iota
	East
	South
	West
)

// Directions lists the compass moves in search order. Planning ties go to the
// earliest direction in this list.
var Directions = [4]Direction{North, East, South, West}

var directionOffsets = [4]Cell{
	North: {Row: -1},
	East:  {Col: 1},
	South: {Row: 1},
	West:  {Col: -1},
}

var directionLetters = [4]byte{'N', 'E', 'S', 'W'}

// String returns the single-letter name of the direction.
func (d Direction) String() string {
	if int(d) >= len(directionLetters) {
		return "?"
	}
	return string(directionLetters[d])
}

// Letter returns the direction's move letter.
func (d Direction) Letter() byte {
	return directionLetters[d]
}

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	return (d + 2) % 4
}

// ParseDirection maps a move letter back to its Direction.
func ParseDirection(b byte) (Direction, bool) {
	for i, l := range directionLetters {
		if l == b {
			return Direction(i), true
		}
	}
	return 0, false
}

// Openings holds the four passability flags of a cell, indexed by Direction.
type Openings [4]bool

// AllOpen is the belief an agent starts with for an unobserved cell.
var AllOpen = Openings{true, true, true, true}

// Open reports whether a move in direction d is passable.
func (o Openings) Open(d Direction) bool {
	return o[d]
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
