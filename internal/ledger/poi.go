package ledger

import "github.com/talgya/swarm-ledger/internal/world"

// POICounts tallies the point-of-interest events recorded for one cell.
type POICounts struct {
	Detected  int `json:"detected"`
	Verified  int `json:"verified"`
	Rejected  int `json:"rejected"`
	Potential int `json:"potential"`
}

// Total returns the number of measurements behind the counts.
func (p POICounts) Total() int {
	return p.Detected + p.Verified + p.Rejected + p.Potential
}

// Unresolved reports whether nobody has verified or rejected the cell yet.
func (p POICounts) Unresolved() bool {
	return p.Verified == 0 && p.Rejected == 0
}

// Aggregate maps each measured cell to its POI counts. Cells without any POI
// event are absent.
type Aggregate map[world.Cell]POICounts

// POIs derives the aggregate from every block in the ledger.
func (l *Ledger[M]) POIs() Aggregate {
	return aggregate(l.blocks, nil)
}

// POIsExcluding derives the aggregate but ignores detections and potential
// detections made by observer. Verifications and rejections always count.
func (l *Ledger[M]) POIsExcluding(observer IssuerID) Aggregate {
	return aggregate(l.blocks, &observer)
}

// FlaggedByOthers returns the cells that some observer other than self has
// reported as detected or potentially detected.
func (l *Ledger[M]) FlaggedByOthers(self IssuerID) map[world.Cell]bool {
	flagged := make(map[world.Cell]bool)
	for _, b := range l.blocks {
		if (b.Tag == TagDetected || b.Tag == TagPotential) && b.Meta.Observer != self {
			flagged[b.Meta.Point] = true
		}
	}
	return flagged
}

func aggregate(blocks map[BlockID]*Block, exclude *IssuerID) Aggregate {
	agg := make(Aggregate)
	for _, b := range blocks {
		if !b.Tag.IsPOI() {
			continue
		}
		skipOwn := exclude != nil && b.Meta.Observer == *exclude

		counts := agg[b.Meta.Point]
		switch b.Tag {
		case TagDetected:
			if skipOwn {
				continue
			}
			counts.Detected++
		case TagPotential:
			if skipOwn {
				continue
			}
			counts.Potential++
		case TagVerified:
			counts.Verified++
		case TagRejected:
			counts.Rejected++
		}
		agg[b.Meta.Point] = counts
	}
	return agg
}
