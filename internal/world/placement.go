package world

import "github.com/talgya/swarm-ledger/internal/entropy"

// RandomCell returns a uniformly random in-bounds cell.
func RandomCell(m Model, src entropy.Source) Cell {
	return Cell{
		Row: src.Intn(m.Rows()) + 1,
		Col: src.Intn(m.Cols()) + 1,
	}
}

