package ledger

import (
	"testing"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/swarm-ledger/internal/world"
)

func blockIDs(l *Ledger[[]float64]) map[BlockID]bool {
	ids := make(map[BlockID]bool)
	for _, b := range l.Blocks() {
		ids[b.ID] = true
	}
	return ids
}

func TestNew_GenesisIsHead(t *testing.T) {
	l := New[[]float64](1, []float64{0}, nil)

	require.Equal(t, 1, l.Len())
	head := l.HeadBlock()
	assert.Equal(t, TagMissionStart, head.Tag)
	assert.True(t, head.IsGenesis())
	assert.Equal(t, l.Genesis(), l.Head())
	require.NoError(t, l.Validate())
}

func TestUpdateMap(t *testing.T) {
	l := New(1, []float64{0, 0, 0, 0}, AverageFloats)
	assert.Equal(t, []float64{0, 0, 0, 0}, l.Map())

	l.UpdateMap(func([]float64) []float64 { return []float64{1, 1, 1, 1} })
	assert.Equal(t, []float64{1, 1, 1, 1}, l.Map())
}

func TestMerge_AveragesMapAndJoinsHeads(t *testing.T) {
	ledger1 := New(1, []float64{0, 0, 0, 0}, AverageFloats)
	ledger2 := New(2, []float64{0, 0, 0, 0}, AverageFloats)
	ledger1.UpdateMap(func([]float64) []float64 { return []float64{1, 1, 1, 1} })

	prevHead := ledger2.Head()
	_, err := ledger2.Merge(ledger1.Snapshot(), nil, 0)
	require.NoError(t, err)

	assert.Equal(t, []float64{0.5, 0.5, 0.5, 0.5}, ledger2.Map())
	head := ledger2.HeadBlock()
	assert.Equal(t, TagBroadcastReceived, head.Tag)
	require.Len(t, head.Parents, 2)
	assert.Equal(t, []BlockID{prevHead, ledger1.Head()}, head.Parents)
	assert.Equal(t, IssuerID(1), head.Meta.Broadcaster)

	// Both genesis blocks plus the join.
	assert.Equal(t, 3, ledger2.Len())
	require.NoError(t, ledger2.Validate())
}

func TestMerge_ExplicitFusionOverridesDefault(t *testing.T) {
	a := New(1, []float64{4}, AverageFloats)
	b := New[[]float64](2, []float64{0}, nil)

	_, err := b.Merge(a.Snapshot(), AverageFloats, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, b.Map())

	_, err = b.Merge(a.Snapshot(), nil, 4)
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, b.Map(), "default fusion keeps own map")
}

func TestMerge_IdempotentOnBlockContent(t *testing.T) {
	a := New[[]float64](1, nil, nil)
	a.AppendAtHead(TagDetected, Metadata{Point: world.C(2, 2), Observer: 1, Time: 1, Value: 9.5})
	b := New[[]float64](2, nil, nil)

	snap := a.Snapshot()
	_, err := b.Merge(snap, nil, 1)
	require.NoError(t, err)
	first := blockIDs(b)
	firstHead := b.Head()

	_, err = b.Merge(snap, nil, 2)
	require.NoError(t, err)
	second := blockIDs(b)

	// Only the new join block differs.
	assert.Len(t, second, len(first)+1)
	for id := range first {
		assert.True(t, second[id])
	}
	assert.NotEqual(t, firstHead, b.Head())
	assert.Equal(t, TagBroadcastReceived, b.HeadBlock().Tag)
}

func TestMerge_NeverRemovesBlocks(t *testing.T) {
	a := New[[]float64](1, nil, nil)
	b := New[[]float64](2, nil, nil)
	for i := 0; i < 5; i++ {
		b.AppendAtHead(TagRejected, Metadata{Point: world.C(1, i+1), Observer: 2})
	}
	before := b.Len()

	_, err := b.Merge(a.Snapshot(), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, before+2, b.Len())
	_, ok := b.Block(b.Genesis())
	assert.True(t, ok)
}

func TestMerge_RejectsMalformedSnapshotWithoutSideEffects(t *testing.T) {
	b := New(2, []float64{1}, AverageFloats)
	before := b.Len()
	head := b.Head()

	tests := []struct {
		name string
		snap Snapshot[[]float64]
		want error
	}{
		{
			name: "empty",
			snap: Snapshot[[]float64]{Owner: 1},
			want: ErrNilPeer,
		},
		{
			name: "unknown head",
			snap: func() Snapshot[[]float64] {
				s := New[[]float64](1, nil, nil).Snapshot()
				s.Head = BlockID{Issuer: 1, Seq: 99}
				return s
			}(),
			want: ErrUnknownHead,
		},
		{
			name: "dangling parent",
			snap: func() Snapshot[[]float64] {
				s := New[[]float64](1, nil, nil).Snapshot()
				orphan := &Block{ID: BlockID{Issuer: 1, Seq: 5}, Tag: TagDetected, Parents: []BlockID{{Issuer: 7, Seq: 3}}}
				s.Blocks[orphan.ID] = orphan
				s.Head = orphan.ID
				return s
			}(),
			want: ErrMissingParent,
		},
		{
			name: "conflicting content",
			snap: func() Snapshot[[]float64] {
				s := New[[]float64](2, nil, nil).Snapshot()
				s.Blocks[BlockID{Issuer: 2, Seq: 0}] = &Block{ID: BlockID{Issuer: 2, Seq: 0}, Tag: TagVerified}
				return s
			}(),
			want: ErrConflictingBlock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Merge(tt.snap, nil, 0)
			require.Error(t, err)
			assert.True(t, ierrors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, before, b.Len())
			assert.Equal(t, head, b.Head())
			assert.Equal(t, []float64{1}, b.Map())
		})
	}
}

func TestAppend_ValidatesParents(t *testing.T) {
	l := New[[]float64](1, nil, nil)

	_, err := l.Append([]BlockID{{Issuer: 9, Seq: 9}}, TagDetected, Metadata{})
	assert.True(t, ierrors.Is(err, ErrMissingParent))

	g := l.Genesis()
	_, err = l.Append([]BlockID{g, g, g}, TagDetected, Metadata{})
	assert.True(t, ierrors.Is(err, ErrTooManyParents))

	id, err := l.Append(nil, TagPotential, Metadata{Point: world.C(1, 1)})
	require.NoError(t, err)
	assert.Equal(t, id, l.Head())
	assert.Equal(t, 2, l.Len())
}

func TestPOIs_CountsAndExclusion(t *testing.T) {
	l := New[[]float64](1, nil, nil)
	p := world.C(3, 4)
	q := world.C(5, 5)

	l.AppendAtHead(TagDetected, Metadata{Point: p, Observer: 1})
	l.AppendAtHead(TagDetected, Metadata{Point: p, Observer: 2})
	l.AppendAtHead(TagPotential, Metadata{Point: q, Observer: 1})
	l.AppendAtHead(TagVerified, Metadata{Point: p, Observer: 1})
	l.AppendAtHead(TagRejected, Metadata{Point: p, Observer: 3})
	l.AppendAtHead(TagBroadcastReceived, Metadata{Broadcaster: 2})

	all := l.POIs()
	assert.Equal(t, POICounts{Detected: 2, Verified: 1, Rejected: 1}, all[p])
	assert.Equal(t, POICounts{Potential: 1}, all[q])
	assert.Len(t, all, 2)

	mine := l.POIsExcluding(1)
	assert.Equal(t, POICounts{Detected: 1, Verified: 1, Rejected: 1}, mine[p])
	_, ok := mine[q]
	assert.False(t, ok, "own potential detection must not count")

	// Deterministic across recomputations.
	assert.Equal(t, all, l.POIs())
	assert.Equal(t, 4, all[p].Total())
}

func TestFlaggedByOthers(t *testing.T) {
	l := New[[]float64](1, nil, nil)
	l.AppendAtHead(TagDetected, Metadata{Point: world.C(1, 1), Observer: 1})
	l.AppendAtHead(TagPotential, Metadata{Point: world.C(2, 2), Observer: 2})
	l.AppendAtHead(TagVerified, Metadata{Point: world.C(3, 3), Observer: 2})

	assert.Equal(t, map[world.Cell]bool{world.C(2, 2): true}, l.FlaggedByOthers(1))
}

func TestMerge_ParentsMayResolveInOwnLedger(t *testing.T) {
	a := New[[]float64](1, nil, nil)
	a1 := a.AppendAtHead(TagDetected, Metadata{Point: world.C(1, 1), Observer: 1})

	b := New[[]float64](2, nil, nil)
	_, err := b.Merge(a.Snapshot(), nil, 1)
	require.NoError(t, err)
	b.AppendAtHead(TagVerified, Metadata{Point: world.C(1, 1), Observer: 2})

	// Strip a's own blocks from b's snapshot; the join still reaches a1 through a.
	snap := b.Snapshot()
	delete(snap.Blocks, a.Genesis())
	delete(snap.Blocks, a1)

	_, err = a.Merge(snap, nil, 2)
	require.NoError(t, err)
	require.NoError(t, a.Validate())

	// The same snapshot is not closed for a ledger that never saw a1.
	c := New[[]float64](3, nil, nil)
	_, err = c.Merge(snap, nil, 2)
	assert.True(t, ierrors.Is(err, ErrMissingParent), "got %v", err)
	assert.Equal(t, 1, c.Len())
}

func TestParseBlockID(t *testing.T) {
	id := BlockID{Issuer: 12, Seq: 7}
	parsed, err := ParseBlockID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	for _, bad := range []string{"", "12", "x-1", "1-y", "-3"} {
		_, err := ParseBlockID(bad)
		assert.Error(t, err, bad)
	}
}

func TestPastCone(t *testing.T) {
	a := New[[]float64](1, nil, nil)
	a1 := a.AppendAtHead(TagDetected, Metadata{Point: world.C(1, 1), Observer: 1})
	b := New[[]float64](2, nil, nil)
	b1 := b.AppendAtHead(TagRejected, Metadata{Point: world.C(1, 1), Observer: 2})

	join, err := b.Merge(a.Snapshot(), nil, 1)
	require.NoError(t, err)

	cone, err := b.PastCone(join)
	require.NoError(t, err)
	var ids []BlockID
	for _, blk := range cone {
		ids = append(ids, blk.ID)
	}
	assert.Equal(t, []BlockID{a.Genesis(), a1, b.Genesis(), b1, join}, ids)

	_, err = b.PastCone(BlockID{Issuer: 8})
	assert.True(t, ierrors.Is(err, ErrMissingParent))
}

func TestBlockContent(t *testing.T) {
	b := &Block{Tag: TagVerified, Meta: Metadata{Point: world.C(2, 7)}}
	assert.Equal(t, "Verified point of interest at (2, 7)", b.Content())
	assert.Equal(t, "Mission start", (&Block{Tag: TagMissionStart}).Content())
	assert.Equal(t, "3-14", BlockID{Issuer: 3, Seq: 14}.String())
}

func TestAverageFloats_UnevenLengths(t *testing.T) {
	assert.Equal(t, []float64{1, 2, 5}, AverageFloats([]float64{0, 2}, []float64{2, 2, 5}))
}
