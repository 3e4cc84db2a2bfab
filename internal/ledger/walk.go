package ledger

import (
	"github.com/iotaledger/hive.go/ds/walker"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/lo"
)

// PastCone returns every block causally preceding id, id included, ordered by
// issuer then sequence.
func (l *Ledger[M]) PastCone(id BlockID) ([]*Block, error) {
	if _, ok := l.blocks[id]; !ok {
		return nil, ierrors.Wrapf(ErrMissingParent, "past cone of %s", id)
	}

	var ids []BlockID
	for walk := walker.New[BlockID]().Push(id); walk.HasNext(); {
		blockID := walk.Next()
		block, exists := l.blocks[blockID]
		if !exists {
			return nil, ierrors.Wrapf(ErrMissingParent, "past cone of %s: %s", id, blockID)
		}
		ids = append(ids, blockID)
		walk.PushAll(block.Parents...)
	}

	sortIDs(ids)
	cone := make([]*Block, len(ids))
	for i, blockID := range ids {
		cone[i] = l.blocks[blockID]
	}
	return cone, nil
}

// Validate checks causal closure: the head and genesis exist and every parent
// reference resolves.
func (l *Ledger[M]) Validate() error {
	if _, ok := l.blocks[l.genesis]; !ok {
		return ierrors.Errorf("genesis %s missing", l.genesis)
	}
	if _, ok := l.blocks[l.head]; !ok {
		return ierrors.Wrapf(ErrUnknownHead, "head %s", l.head)
	}
	return causallyClosed(lo.Keys(l.blocks), func(id BlockID) (*Block, bool, bool) {
		b, ok := l.blocks[id]
		return b, ok, false
	})
}

// causallyClosed walks parents from start and fails on the first id lookup
// cannot resolve. A lookup reporting done ends that branch of the walk.
func causallyClosed(start []BlockID, lookup func(BlockID) (block *Block, ok, done bool)) error {
	walk := walker.New[BlockID]().PushAll(start...)
	for walk.HasNext() {
		id := walk.Next()
		b, ok, done := lookup(id)
		if !ok {
			return ierrors.Wrapf(ErrMissingParent, "block %s", id)
		}
		if done {
			continue
		}
		walk.PushAll(b.Parents...)
	}
	return nil
}
