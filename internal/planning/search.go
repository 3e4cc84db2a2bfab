// Package planning picks an agent's next move with a bounded-horizon search
// over move sequences scored by the token field.
//
// A segment enumerates every passable sequence of StepLength moves. Between
// segments the candidates are pruned to the best sequence per initial move,
// and each survivor is extended from where it ended, Depth segments in all.
package planning

import (
	"github.com/iotaledger/hive.go/ierrors"

	"github.com/talgya/swarm-ledger/internal/world"
)

// ErrInvalidParams is returned for non-positive step length or depth.
var ErrInvalidParams = ierrors.New("invalid planning parameters")

// Scorer gives the token score of a cell.
type Scorer interface {
	At(c world.Cell) float64
}

// Terrain is the connectivity belief the search is allowed to move through.
type Terrain interface {
	InBounds(c world.Cell) bool
	Openings(c world.Cell) world.Openings
}

// Params bounds the search.
type Params struct {
	StepLength int // moves per segment
	Depth      int // segments chained
}

// DefaultParams returns five-move segments chained five times.
func DefaultParams() Params {
	return Params{StepLength: 5, Depth: 5}
}

// Validate fails for non-positive bounds.
func (p Params) Validate() error {
	if p.StepLength < 1 || p.Depth < 1 {
		return ierrors.Wrapf(ErrInvalidParams, "step length %d, depth %d", p.StepLength, p.Depth)
	}
	return nil
}

// Candidate is one full-length move sequence.
type Candidate struct {
	Moves string     `json:"moves"`
	Score float64    `json:"score"`
	End   world.Cell `json:"end"`
}

// First returns the move to execute now.
func (c Candidate) First() (world.Direction, bool) {
	if c.Moves == "" {
		return 0, false
	}
	return world.ParseDirection(c.Moves[0])
}

// Plan returns every surviving sequence of StepLength*Depth moves from start,
// in discovery order. It is empty when no passable move exists.
func Plan(scores Scorer, terrain Terrain, start world.Cell, p Params) []Candidate {
	s := searcher{scores: scores, terrain: terrain, step: p.StepLength}
	return s.segments(start, "", 0, p.Depth)
}

// Best returns the highest-scoring candidate; the first one wins ties.
func Best(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best, true
}

type searcher struct {
	scores  Scorer
	terrain Terrain
	step    int
}

func (s *searcher) segments(from world.Cell, prefix string, value float64, depth int) []Candidate {
	candidates := s.expand(from, prefix, value, s.step, nil)
	if depth <= 1 {
		return candidates
	}

	var out []Candidate
	for _, survivor := range beam(candidates) {
		out = append(out, s.segments(survivor.End, survivor.Moves, survivor.Score, depth-1)...)
	}
	return out
}

// expand enumerates every passable continuation of n moves. Revisiting a cell
// is allowed and scores it again.
func (s *searcher) expand(from world.Cell, prefix string, value float64, n int, out []Candidate) []Candidate {
	open := s.terrain.Openings(from)
	for _, d := range world.Directions {
		if !open.Open(d) {
			continue
		}
		next := from.Step(d)
		if !s.terrain.InBounds(next) {
			continue
		}
		moves := prefix + d.String()
		v := value + s.scores.At(next)
		if n > 1 {
			out = s.expand(next, moves, v, n-1, out)
			continue
		}
		out = append(out, Candidate{Moves: moves, Score: v, End: next})
	}
	return out
}

// beam keeps the best candidate per initial move, in direction order.
func beam(candidates []Candidate) []Candidate {
	var best [len(world.Directions)]*Candidate
	for i := range candidates {
		d, ok := candidates[i].First()
		if !ok {
			continue
		}
		if best[d] == nil || candidates[i].Score > best[d].Score {
			best[d] = &candidates[i]
		}
	}

	var survivors []Candidate
	for _, c := range best {
		if c != nil {
			survivors = append(survivors, *c)
		}
	}
	return survivors
}
