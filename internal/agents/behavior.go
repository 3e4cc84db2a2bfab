// Per-tick agent behavior: plan, move, observe, replan.
// Broadcast discovery lives in the engine; Receive is the peer side of it.
package agents

import (
	"github.com/iotaledger/hive.go/ierrors"

	"github.com/talgya/swarm-ledger/internal/ledger"
	"github.com/talgya/swarm-ledger/internal/planning"
	"github.com/talgya/swarm-ledger/internal/world"
)

// observeRadius is the Chebyshev radius of the sensed neighborhood (3x3).
const observeRadius = 1

// Outcome summarizes one update for logging and metrics.
type Outcome struct {
	AgentID AgentID
	Moved   bool
	Move    world.Direction
	Logged  []ledger.Tag // Detection events appended this update
}

// Judge applies the observation decision table. flagged means another agent
// has already reported the cell as detected or potential. ok is false when
// nothing should be logged.
func Judge(flagged bool, reading, detect, potential float64) (ledger.Tag, bool) {
	switch {
	case flagged && reading > detect:
		return ledger.TagVerified, true
	case flagged:
		return ledger.TagRejected, true
	case reading > detect:
		return ledger.TagDetected, true
	case reading > potential:
		return ledger.TagPotential, true
	default:
		return "", false
	}
}

// Update runs one tick for the agent. The plan is always computed fresh and
// only its first move is executed.
func (a *Agent) Update() (Outcome, error) {
	a.LocalTime++
	a.SinceLastReceived++

	out := Outcome{AgentID: a.ID}
	if plan, ok := a.bestPlan(); ok {
		if d, ok := plan.First(); ok {
			out.Move = d
			out.Moved = a.step(d)
		}
	}

	logged, err := a.observe()
	if err != nil {
		return out, ierrors.Wrapf(err, "agent %d observe", a.ID)
	}
	out.Logged = logged

	a.Plan, _ = a.bestPlan()
	return out, nil
}

func (a *Agent) bestPlan() (planning.Candidate, bool) {
	candidates := planning.Plan(a.Scores(), a.Knowledge(), a.Position, a.Params.Planning)
	return planning.Best(candidates)
}

// step moves one cell if both the belief and the ground truth allow it. A
// belief that is still open where the world has a wall leaves the agent in
// place to observe the wall.
func (a *Agent) step(d world.Direction) bool {
	k := a.Knowledge()
	next := a.Position.Step(d)
	if !k.Openings(a.Position).Open(d) || !k.InBounds(next) {
		return false
	}
	if !a.truth.Openings(a.Position).Open(d) {
		return false
	}
	a.Position = next
	return true
}

// observe senses the 3x3 neighborhood and logs a detection event per cell
// according to Judge.
func (a *Agent) observe() ([]ledger.Tag, error) {
	k := a.Knowledge()
	flagged := a.Ledger.FlaggedByOthers(a.ID)

	var logged []ledger.Tag
	for _, c := range world.Neighborhood(a.truth, a.Position, observeRadius) {
		if err := k.Observe(a.truth, c); err != nil {
			return logged, err
		}

		truth := k.Interest(c)
		reading := truth + a.noise.Sample()
		tag, ok := Judge(flagged[c], reading, a.Params.DetectThreshold, a.Params.PotentialThreshold)
		if !ok {
			continue
		}
		a.Ledger.AppendAtHead(tag, ledger.Metadata{
			Point:    c,
			Observer: a.ID,
			Time:     a.LocalTime,
			Value:    a.Params.Record.Value(truth, reading),
		})
		logged = append(logged, tag)
	}
	return logged, nil
}

// Receive takes a broadcast from another agent: the sender's ledger is merged
// into ours, then every cell the sender has observed more often replaces our
// connectivity and visit count.
func (a *Agent) Receive(from *Agent) (adopted int, err error) {
	if from == nil {
		return 0, ledger.ErrNilPeer
	}
	if _, err := a.Ledger.Merge(from.Ledger.Snapshot(), nil, from.LocalTime); err != nil {
		return 0, ierrors.Wrapf(err, "agent %d receive from %d", a.ID, from.ID)
	}
	a.SinceLastReceived = 0
	return a.Knowledge().AdoptMoreExplored(from.Knowledge()), nil
}
