// Package ledger provides each agent's append-only causal event log and the
// gossip merge that unions two logs and records the join.
package ledger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/iotaledger/hive.go/ierrors"

	"github.com/talgya/swarm-ledger/internal/world"
)

// IssuerID identifies the agent that appended a block.
type IssuerID uint64

// BlockID is unique per issuer sequence number, so identifiers from different
// agents can never collide.
type BlockID struct {
	Issuer IssuerID `json:"issuer"`
	Seq    uint64   `json:"seq"`
}

// String renders the id as "issuer-seq".
func (id BlockID) String() string {
	return fmt.Sprintf("%d-%d", id.Issuer, id.Seq)
}

// ParseBlockID reads the "issuer-seq" form produced by String.
func ParseBlockID(s string) (BlockID, error) {
	issuer, seq, ok := strings.Cut(s, "-")
	if !ok {
		return BlockID{}, ierrors.Errorf("block id %q: want issuer-seq", s)
	}
	i, err := strconv.ParseUint(issuer, 10, 64)
	if err != nil {
		return BlockID{}, ierrors.Wrapf(err, "block id %q", s)
	}
	n, err := strconv.ParseUint(seq, 10, 64)
	if err != nil {
		return BlockID{}, ierrors.Wrapf(err, "block id %q", s)
	}
	return BlockID{Issuer: IssuerID(i), Seq: n}, nil
}

// Tag is the event a block records.
type Tag string

const (
	TagMissionStart      Tag = "Mission start"
	TagBroadcastReceived Tag = "Broadcast received"
	TagDetected          Tag = "Detected point of interest"
	TagPotential         Tag = "Detected potential point of interest"
	TagVerified          Tag = "Verified point of interest"
	TagRejected          Tag = "Didn't detect point of interest"
)

// IsPOI reports whether the tag is one of the four point-of-interest events.
func (t Tag) IsPOI() bool {
	switch t {
	case TagDetected, TagPotential, TagVerified, TagRejected:
		return true
	}
	return false
}

// MaxParents bounds the parent references of a single block.
const MaxParents = 2

// Metadata holds the structured fields of a block. Which fields are set
// depends on the tag: POI events carry Point, Observer and Value, merges
// carry Broadcaster.
type Metadata struct {
	Point       world.Cell `json:"point"`
	Observer    IssuerID   `json:"observer,omitempty"`
	Broadcaster IssuerID   `json:"broadcaster,omitempty"`
	Time        uint64     `json:"time"`
	Value       float64    `json:"value,omitempty"`
}

// Block is one immutable ledger entry.
type Block struct {
	ID      BlockID   `json:"id"`
	Tag     Tag       `json:"tag"`
	Meta    Metadata  `json:"meta"`
	Parents []BlockID `json:"parents"`
}

// Content renders the block the way it reads in a log: POI events name their cell.
func (b *Block) Content() string {
	if b.Tag.IsPOI() {
		return fmt.Sprintf("%s at %s", b.Tag, b.Meta.Point)
	}
	return string(b.Tag)
}

// IsGenesis reports whether b has no parents.
func (b *Block) IsGenesis() bool {
	return len(b.Parents) == 0
}

func (b *Block) sameContent(o *Block) bool {
	if b.ID != o.ID || b.Tag != o.Tag || b.Meta != o.Meta || len(b.Parents) != len(o.Parents) {
		return false
	}
	for i := range b.Parents {
		if b.Parents[i] != o.Parents[i] {
			return false
		}
	}
	return true
}
