package planning

import (
	"strings"
	"testing"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/swarm-ledger/internal/tokens"
	"github.com/talgya/swarm-ledger/internal/world"
)

// openBelief believes every passage is open, like an agent that has seen nothing.
type openBelief struct{ rows, cols int }

func (b openBelief) InBounds(c world.Cell) bool {
	return c.Row >= 1 && c.Row <= b.rows && c.Col >= 1 && c.Col <= b.cols
}

func (b openBelief) Openings(world.Cell) world.Openings { return world.AllOpen }

func field(t *testing.T, rows, cols int) *world.Grid {
	t.Helper()
	g, err := world.Generate(world.GenConfig{Rows: rows, Cols: cols, Mode: world.ModeField, Seed: 3})
	require.NoError(t, err)
	return g
}

func TestParams_Validate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())
	assert.True(t, ierrors.Is(Params{StepLength: 0, Depth: 2}.Validate(), ErrInvalidParams))
	assert.True(t, ierrors.Is(Params{StepLength: 2, Depth: 0}.Validate(), ErrInvalidParams))
}

func TestPlan_BoxedInHasNoMove(t *testing.T) {
	g, err := world.NewGrid(3, 3, world.ModeField)
	require.NoError(t, err)

	got := Plan(tokens.NewMap(3, 3), g, world.C(2, 2), Params{StepLength: 3, Depth: 2})
	assert.Empty(t, got)

	_, ok := Best(got)
	assert.False(t, ok)
}

func TestPlan_OffGridIsImpassable(t *testing.T) {
	got := Plan(tokens.NewMap(2, 2), openBelief{rows: 2, cols: 2}, world.C(1, 1), Params{StepLength: 1, Depth: 1})

	moves := make([]string, len(got))
	for i, c := range got {
		moves[i] = c.Moves
	}
	assert.Equal(t, []string{"E", "S"}, moves)
}

func TestPlan_RevisitsAreScoredAgain(t *testing.T) {
	g, err := world.NewGrid(1, 2, world.ModeField)
	require.NoError(t, err)
	require.NoError(t, g.Link(world.C(1, 1), world.East, true))

	scores := tokens.NewMap(1, 2)
	scores.Set(world.C(1, 1), 1)
	scores.Set(world.C(1, 2), 10)

	got := Plan(scores, g, world.C(1, 1), Params{StepLength: 3, Depth: 1})
	require.Len(t, got, 1)
	assert.Equal(t, "EWE", got[0].Moves)
	assert.Equal(t, 21.0, got[0].Score)
	assert.Equal(t, world.C(1, 2), got[0].End)
}

func TestPlan_NeverProposesImpassableMoves(t *testing.T) {
	g, err := world.Generate(world.GenConfig{Rows: 15, Cols: 25, Mode: world.ModeMaze, LoopPercent: 5, Seed: 7})
	require.NoError(t, err)

	scores := tokens.NewMap(15, 25)
	scores.Set(world.C(2, 2), 3)
	p := Params{StepLength: 3, Depth: 2}

	for _, start := range []world.Cell{world.C(1, 1), world.C(8, 12), world.C(15, 25)} {
		got := Plan(scores, g, start, p)
		require.NotEmpty(t, got, "a carved maze always has an exit")

		for _, cand := range got {
			require.Len(t, cand.Moves, p.StepLength*p.Depth)
			pos := start
			for i := 0; i < len(cand.Moves); i++ {
				d, ok := world.ParseDirection(cand.Moves[i])
				require.True(t, ok)
				require.True(t, g.Openings(pos).Open(d), "move %q from %v", cand.Moves, start)
				pos = pos.Step(d)
				require.True(t, g.InBounds(pos))
			}
			assert.Equal(t, pos, cand.End)
		}
	}
}

func TestPlan_BeamKeepsOneSurvivorPerFirstMove(t *testing.T) {
	g := field(t, 5, 5)
	got := Plan(tokens.NewMap(5, 5), g, world.C(3, 3), Params{StepLength: 1, Depth: 2})
	require.Len(t, got, 16)

	perFirst := map[byte]int{}
	for _, c := range got {
		require.Len(t, c.Moves, 2)
		perFirst[c.Moves[0]]++
	}
	assert.Equal(t, map[byte]int{'N': 4, 'E': 4, 'S': 4, 'W': 4}, perFirst)
}

func TestPlan_BeamExtendsBestSegment(t *testing.T) {
	g := field(t, 5, 5)
	scores := tokens.NewMap(5, 5)
	scores.Set(world.C(1, 3), 10)

	got := Plan(scores, g, world.C(3, 3), Params{StepLength: 2, Depth: 2})
	for _, c := range got {
		if c.Moves[0] == 'N' {
			assert.True(t, strings.HasPrefix(c.Moves, "NN"), c.Moves)
		}
	}

	best, ok := Best(got)
	require.True(t, ok)
	assert.Equal(t, "NN", best.Moves[:2])
	assert.GreaterOrEqual(t, best.Score, 10.0)
}

func TestBest_FirstMaximumWins(t *testing.T) {
	best, ok := Best([]Candidate{
		{Moves: "N", Score: 1},
		{Moves: "E", Score: 3},
		{Moves: "S", Score: 3},
	})
	require.True(t, ok)
	assert.Equal(t, "E", best.Moves)

	d, ok := best.First()
	require.True(t, ok)
	assert.Equal(t, world.East, d)

	_, ok = Candidate{}.First()
	assert.False(t, ok)
}
