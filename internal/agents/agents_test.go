package agents

import (
	"testing"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/swarm-ledger/internal/entropy"
	"github.com/talgya/swarm-ledger/internal/ledger"
	"github.com/talgya/swarm-ledger/internal/planning"
	"github.com/talgya/swarm-ledger/internal/world"
)

func singleCell(t *testing.T, interest float64) *world.Grid {
	t.Helper()
	g, err := world.NewGrid(1, 1, world.ModeField)
	require.NoError(t, err)
	require.NoError(t, g.SetInterest(world.C(1, 1), interest))
	return g
}

func newAgent(t *testing.T, id AgentID, start world.Cell, truth world.Model, noise entropy.Noise, p Params) *Agent {
	t.Helper()
	a, err := New(id, start, truth, nil, noise, nil, p)
	require.NoError(t, err)
	return a
}

func blocksTagged(a *Agent, tag ledger.Tag) []*ledger.Block {
	var out []*ledger.Block
	for _, b := range a.Ledger.Blocks() {
		if b.Tag == tag {
			out = append(out, b)
		}
	}
	return out
}

func TestJudge(t *testing.T) {
	tests := []struct {
		name    string
		flagged bool
		reading float64
		want    ledger.Tag
		logged  bool
	}{
		{"flagged and above detect", true, 9.5, ledger.TagVerified, true},
		{"flagged and below detect", true, 8.5, ledger.TagRejected, true},
		{"unflagged above detect", false, 9.5, ledger.TagDetected, true},
		{"unflagged potential", false, 8.5, ledger.TagPotential, true},
		{"unflagged nothing", false, 3, "", false},
		{"exactly at detect", false, 9.2, ledger.TagPotential, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, ok := Judge(tt.flagged, tt.reading, 9.2, 8.2)
			assert.Equal(t, tt.logged, ok)
			assert.Equal(t, tt.want, tag)
		})
	}
}

func TestUpdate_DetectsPointOfInterest(t *testing.T) {
	truth := singleCell(t, 9.5)
	a := newAgent(t, 7, world.C(1, 1), truth, entropy.Exact, DefaultParams())

	out, err := a.Update()
	require.NoError(t, err)
	assert.False(t, out.Moved, "a single cell has nowhere to go")
	assert.Equal(t, []ledger.Tag{ledger.TagDetected}, out.Logged)

	detected := blocksTagged(a, ledger.TagDetected)
	require.Len(t, detected, 1)
	assert.Equal(t, world.C(1, 1), detected[0].Meta.Point)
	assert.Equal(t, AgentID(7), detected[0].Meta.Observer)
	assert.Equal(t, uint64(1), detected[0].Meta.Time)
	assert.Equal(t, 9.5, detected[0].Meta.Value)
	assert.Equal(t, detected[0].ID, a.Ledger.Head())
}

func TestUpdate_VerifiesAndRejectsOthersDetections(t *testing.T) {
	truth := singleCell(t, 9.5)
	finder := newAgent(t, 1, world.C(1, 1), truth, entropy.Exact, DefaultParams())
	confirmer := newAgent(t, 2, world.C(1, 1), truth, entropy.Exact, DefaultParams())
	doubter := newAgent(t, 3, world.C(1, 1), truth, entropy.Fixed(-1), DefaultParams())

	_, err := finder.Update()
	require.NoError(t, err)

	for _, a := range []*Agent{confirmer, doubter} {
		_, err := a.Receive(finder)
		require.NoError(t, err)
		_, err = a.Update()
		require.NoError(t, err)
	}

	assert.Len(t, blocksTagged(confirmer, ledger.TagVerified), 1)
	assert.Empty(t, blocksTagged(confirmer, ledger.TagRejected))
	assert.Len(t, blocksTagged(doubter, ledger.TagRejected), 1)

	pois := confirmer.POIs()[world.C(1, 1)]
	assert.Equal(t, ledger.POICounts{Detected: 1, Verified: 1}, pois)
}

func TestUpdate_OwnDetectionsAreNotVerifiedBySelf(t *testing.T) {
	truth := singleCell(t, 9.5)
	a := newAgent(t, 1, world.C(1, 1), truth, entropy.Exact, DefaultParams())

	for i := 0; i < 3; i++ {
		_, err := a.Update()
		require.NoError(t, err)
	}
	assert.Len(t, blocksTagged(a, ledger.TagDetected), 3)
	assert.Empty(t, blocksTagged(a, ledger.TagVerified))
	assert.Empty(t, a.POIs(), "own detections are excluded from planning")
}

func TestRecordPolicy(t *testing.T) {
	truth := singleCell(t, 9.5)

	p := DefaultParams()
	p.Record = RecordReading
	a := newAgent(t, 1, world.C(1, 1), truth, entropy.Fixed(0.25), p)
	_, err := a.Update()
	require.NoError(t, err)
	assert.Equal(t, 9.75, blocksTagged(a, ledger.TagDetected)[0].Meta.Value)

	b := newAgent(t, 2, world.C(1, 1), truth, entropy.Fixed(0.25), DefaultParams())
	_, err = b.Update()
	require.NoError(t, err)
	assert.Equal(t, 9.5, blocksTagged(b, ledger.TagDetected)[0].Meta.Value)

	for _, name := range []string{"true_value", "reading"} {
		got, err := ParseRecordPolicy(name)
		require.NoError(t, err)
		assert.Equal(t, name, got.String())
	}
	_, err = ParseRecordPolicy("median")
	assert.Error(t, err)
}

func TestUpdate_VisitsMonotonicAndMovesFollowWalls(t *testing.T) {
	truth, err := world.Generate(world.GenConfig{Rows: 8, Cols: 10, Mode: world.ModeMaze, LoopPercent: 10, Seed: 11})
	require.NoError(t, err)

	p := DefaultParams()
	p.Planning = planning.Params{StepLength: 3, Depth: 2}
	a := newAgent(t, 1, world.C(4, 5), truth, entropy.Exact, p)

	prev := a.Knowledge().VisitRows()
	for tick := 0; tick < 25; tick++ {
		from := a.Position
		out, err := a.Update()
		require.NoError(t, err)

		if out.Moved {
			require.True(t, truth.Openings(from).Open(out.Move), "tick %d moved %s through a wall", tick, out.Move)
			assert.Equal(t, from.Step(out.Move), a.Position)
		}

		cur := a.Knowledge().VisitRows()
		for r := range cur {
			for c := range cur[r] {
				require.GreaterOrEqual(t, cur[r][c], prev[r][c])
			}
		}
		prev = cur
	}
	assert.Equal(t, uint64(25), a.LocalTime)
	assert.Greater(t, a.Knowledge().VisitMass(), 25)
}

func TestUpdate_FirstMoveRespectsTrueWalls(t *testing.T) {
	p := DefaultParams()
	p.Planning = planning.Params{StepLength: 3, Depth: 2}

	for seed := int64(1); seed <= 40; seed++ {
		truth, err := world.Generate(world.GenConfig{Rows: 8, Cols: 10, Mode: world.ModeMaze, Seed: seed})
		require.NoError(t, err)

		start := world.C(4, 5)
		a := newAgent(t, 1, start, truth, entropy.Exact, p)
		out, err := a.Update()
		require.NoError(t, err)

		if out.Moved {
			require.True(t, truth.Openings(start).Open(out.Move), "seed %d moved %s through a wall", seed, out.Move)
			continue
		}
		assert.Equal(t, start, a.Position, "seed %d", seed)
		assert.Equal(t, truth.Openings(start), a.Knowledge().Openings(start), "seed %d: blocked agent still observes its cell", seed)
	}
}

func TestReceive(t *testing.T) {
	truth, err := world.Generate(world.SmallTestConfig())
	require.NoError(t, err)

	sender := newAgent(t, 1, world.C(1, 1), truth, entropy.Exact, DefaultParams())
	receiver := newAgent(t, 2, world.C(5, 5), truth, entropy.Exact, DefaultParams())
	receiver.SinceLastReceived = 4
	_, err = sender.Update()
	require.NoError(t, err)

	adopted, err := receiver.Receive(sender)
	require.NoError(t, err)
	assert.Positive(t, adopted)
	assert.Zero(t, receiver.SinceLastReceived)

	head := receiver.Ledger.HeadBlock()
	assert.Equal(t, ledger.TagBroadcastReceived, head.Tag)
	assert.Equal(t, AgentID(1), head.Meta.Broadcaster)
	assert.Equal(t, sender.LocalTime, head.Meta.Time)
	assert.Len(t, head.Parents, 2)

	for _, c := range world.Neighborhood(truth, sender.Position, 1) {
		assert.Equal(t, sender.Knowledge().Visits(c), receiver.Knowledge().Visits(c))
		assert.Equal(t, truth.Openings(c), receiver.Knowledge().Openings(c))
	}

	_, err = receiver.Receive(nil)
	assert.True(t, ierrors.Is(err, ledger.ErrNilPeer))
}

func TestKnowledgeMap(t *testing.T) {
	truth, err := world.Generate(world.SmallTestConfig())
	require.NoError(t, err)

	_, err = NewKnowledgeMap(0, 3)
	assert.True(t, ierrors.Is(err, world.ErrInvalidDimensions))

	k, err := NewKnowledgeMap(5, 5)
	require.NoError(t, err)
	corner := world.C(1, 1)
	assert.Equal(t, world.AllOpen, k.Openings(corner))
	assert.Zero(t, k.Interest(corner))

	require.NoError(t, k.Observe(truth, corner))
	require.NoError(t, k.Observe(truth, corner))
	assert.Equal(t, 2, k.Visits(corner))
	assert.Equal(t, truth.Openings(corner), k.Openings(corner))
	assert.Equal(t, truth.Interest(corner), k.Interest(corner))
	assert.InDelta(t, 1.0/25, k.Coverage(), 1e-12)

	err = k.Observe(truth, world.C(6, 1))
	assert.True(t, ierrors.Is(err, world.ErrOutOfBounds))
	assert.Equal(t, world.Openings{}, k.Openings(world.C(0, 1)))

	all, err := NewOmniscientMap(truth)
	require.NoError(t, err)
	assert.Equal(t, 25, all.VisitMass())
	assert.Equal(t, truth.Interest(world.C(3, 3)), all.Interest(world.C(3, 3)))

	other, err := NewKnowledgeMap(5, 5)
	require.NoError(t, err)
	require.NoError(t, other.Observe(truth, corner))
	require.NoError(t, other.Observe(truth, corner))
	require.NoError(t, other.Observe(truth, world.C(2, 2)))
	fresh, err := NewKnowledgeMap(5, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.AdoptMoreExplored(other))
	assert.Zero(t, fresh.AdoptMoreExplored(other))
	assert.Zero(t, fresh.Interest(corner), "interest is not part of the consensus")
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	p := DefaultParams()
	p.CommunicationRange = -1
	assert.True(t, ierrors.Is(p.Validate(), ErrInvalidParams))

	p = DefaultParams()
	p.Planning.Depth = 0
	assert.True(t, ierrors.Is(p.Validate(), ErrInvalidParams))

	truth := singleCell(t, 1)
	_, err := New(1, world.C(2, 2), truth, nil, nil, nil, DefaultParams())
	assert.True(t, ierrors.Is(err, world.ErrOutOfBounds))
}

func TestAllKnowingStartsWithTruth(t *testing.T) {
	truth, err := world.Generate(world.SmallTestConfig())
	require.NoError(t, err)
	p := DefaultParams()
	p.AllKnowing = true
	a := newAgent(t, 1, world.C(3, 3), truth, entropy.Exact, p)
	assert.Equal(t, 25, a.Knowledge().VisitMass())
	assert.Equal(t, truth.Openings(world.C(1, 1)), a.Knowledge().Openings(world.C(1, 1)))
}

func TestSpawner(t *testing.T) {
	truth, err := world.Generate(world.DefaultGenConfig())
	require.NoError(t, err)

	cfg := DefaultSpawnConfig()
	cfg.Seed = 99
	first, err := NewSpawner(truth, cfg).SpawnPopulation(4)
	require.NoError(t, err)
	second, err := NewSpawner(truth, cfg).SpawnPopulation(4)
	require.NoError(t, err)

	require.Len(t, first, 4)
	for i, a := range first {
		assert.Equal(t, AgentID(i+1), a.ID)
		assert.True(t, truth.InBounds(a.Position))
		assert.Equal(t, second[i].Position, a.Position)
		assert.Equal(t, 1, a.Ledger.Len())
	}

	s := NewSpawner(truth, cfg)
	s.SetNextID(10)
	a, err := s.SpawnAt(world.C(1, 1))
	require.NoError(t, err)
	assert.Equal(t, AgentID(10), a.ID)

	_, err = s.SpawnAt(world.C(0, 0))
	assert.Error(t, err)
}
