package ledger

import (
	"sort"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/lo"
)

var (
	ErrNilPeer          = ierrors.New("peer snapshot is empty")
	ErrUnknownHead      = ierrors.New("peer head is not among its blocks")
	ErrMissingParent    = ierrors.New("parent block is unknown")
	ErrConflictingBlock = ierrors.New("block id reused with different content")
	ErrTooManyParents   = ierrors.New("block has too many parents")
)

// FusionFunc combines the receiver's map with a peer's map during a merge.
// It must not retain or mutate peer.
type FusionFunc[M any] func(own, peer M) M

// KeepOwn is the identity fusion: the receiver keeps its own map.
func KeepOwn[M any](own, _ M) M {
	return own
}

// Ledger is an agent's append-only block log plus the map state it gossips
// alongside it. Blocks are never removed. A Ledger is owned by one agent and
// is not safe for concurrent mutation.
type Ledger[M any] struct {
	owner   IssuerID
	blocks  map[BlockID]*Block
	head    BlockID
	genesis BlockID
	nextSeq uint64

	state M
	fuse  FusionFunc[M]
}

// New creates a ledger holding only its genesis block. A nil fuse defaults to KeepOwn.
func New[M any](owner IssuerID, initial M, fuse FusionFunc[M]) *Ledger[M] {
	if fuse == nil {
		fuse = KeepOwn[M]
	}
	l := &Ledger[M]{
		owner:  owner,
		blocks: make(map[BlockID]*Block),
		state:  initial,
		fuse:   fuse,
	}
	l.genesis = l.store(nil, TagMissionStart, Metadata{})
	l.head = l.genesis
	return l
}

// Head returns the id of the current head block.
func (l *Ledger[M]) Head() BlockID { return l.head }

// HeadBlock returns the current head block.
func (l *Ledger[M]) HeadBlock() *Block { return l.blocks[l.head] }

// Genesis returns the id of this ledger's own genesis block.
func (l *Ledger[M]) Genesis() BlockID { return l.genesis }

// Len returns the number of blocks held.
func (l *Ledger[M]) Len() int { return len(l.blocks) }

// Block looks up a block by id.
func (l *Ledger[M]) Block(id BlockID) (*Block, bool) {
	b, ok := l.blocks[id]
	return b, ok
}

// Blocks returns every block ordered by issuer then sequence.
func (l *Ledger[M]) Blocks() []*Block {
	ids := lo.Keys(l.blocks)
	sortIDs(ids)
	return lo.Map(ids, func(id BlockID) *Block { return l.blocks[id] })
}

// Map returns the map state carried by the ledger.
func (l *Ledger[M]) Map() M { return l.state }

// UpdateMap replaces the map state with update(current).
func (l *Ledger[M]) UpdateMap(update func(M) M) {
	l.state = update(l.state)
}

// Append stores a new block and makes it the head.
func (l *Ledger[M]) Append(parents []BlockID, tag Tag, meta Metadata) (BlockID, error) {
	if len(parents) > MaxParents {
		return BlockID{}, ierrors.Wrapf(ErrTooManyParents, "%d parents", len(parents))
	}
	for _, p := range parents {
		if _, ok := l.blocks[p]; !ok {
			return BlockID{}, ierrors.Wrapf(ErrMissingParent, "append %s: parent %s", tag, p)
		}
	}
	id := l.store(parents, tag, meta)
	l.head = id
	return id, nil
}

// AppendAtHead appends a block whose single parent is the current head.
func (l *Ledger[M]) AppendAtHead(tag Tag, meta Metadata) BlockID {
	id := l.store([]BlockID{l.head}, tag, meta)
	l.head = id
	return id
}

func (l *Ledger[M]) store(parents []BlockID, tag Tag, meta Metadata) BlockID {
	id := BlockID{Issuer: l.owner, Seq: l.nextSeq}
	l.nextSeq++
	l.blocks[id] = &Block{
		ID:      id,
		Tag:     tag,
		Meta:    meta,
		Parents: append([]BlockID(nil), parents...),
	}
	return id
}

// Snapshot is a read-only view of a ledger handed to a peer during a broadcast.
type Snapshot[M any] struct {
	Owner  IssuerID
	Head   BlockID
	Blocks map[BlockID]*Block
	Map    M
}

// Snapshot captures the ledger's current blocks, head and map. Blocks are
// immutable and shared; the index is copied so later appends stay private.
func (l *Ledger[M]) Snapshot() Snapshot[M] {
	blocks := make(map[BlockID]*Block, len(l.blocks))
	for id, b := range l.blocks {
		blocks[id] = b
	}
	return Snapshot[M]{
		Owner:  l.owner,
		Head:   l.head,
		Blocks: blocks,
		Map:    l.state,
	}
}

// Merge unions peer's blocks into the ledger, appends a "Broadcast received"
// block joining the previous head and the peer head, and replaces the map with
// fuse(own, peer). A nil fuse uses the ledger's default. The snapshot is
// validated in full before anything changes.
func (l *Ledger[M]) Merge(peer Snapshot[M], fuse FusionFunc[M], time uint64) (BlockID, error) {
	if err := l.validatePeer(peer); err != nil {
		return BlockID{}, ierrors.Wrapf(err, "merge from %d", peer.Owner)
	}
	if fuse == nil {
		fuse = l.fuse
	}

	for id, b := range peer.Blocks {
		if _, ok := l.blocks[id]; !ok {
			l.blocks[id] = b
		}
	}

	id := l.store([]BlockID{l.head, peer.Head}, TagBroadcastReceived, Metadata{
		Broadcaster: peer.Owner,
		Time:        time,
	})
	l.head = id
	l.state = fuse(l.state, peer.Map)

	return id, nil
}

func (l *Ledger[M]) validatePeer(peer Snapshot[M]) error {
	if len(peer.Blocks) == 0 {
		return ErrNilPeer
	}
	if _, ok := peer.Blocks[peer.Head]; !ok {
		return ierrors.Wrapf(ErrUnknownHead, "head %s", peer.Head)
	}
	for id, b := range peer.Blocks {
		if b == nil || b.ID != id {
			return ierrors.Wrapf(ErrConflictingBlock, "index %s holds a different block", id)
		}
		if len(b.Parents) > MaxParents {
			return ierrors.Wrapf(ErrTooManyParents, "block %s", id)
		}
		if own, ok := l.blocks[id]; ok && !own.sameContent(b) {
			return ierrors.Wrapf(ErrConflictingBlock, "block %s", id)
		}
	}

	// Own blocks are already closed, so the walk stops at them.
	return causallyClosed(lo.Keys(peer.Blocks), func(id BlockID) (*Block, bool, bool) {
		if _, own := l.blocks[id]; own {
			return nil, true, true
		}
		b, ok := peer.Blocks[id]
		return b, ok, false
	})
}

func sortIDs(ids []BlockID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Issuer != ids[j].Issuer {
			return ids[i].Issuer < ids[j].Issuer
		}
		return ids[i].Seq < ids[j].Seq
	})
}
