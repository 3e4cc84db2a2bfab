// Read-only views for visualization and benchmark consumers. Every view takes
// the simulation read lock and returns data the caller may keep.
package engine

import (
	"maps"

	"github.com/iotaledger/hive.go/ierrors"

	"github.com/talgya/swarm-ledger/internal/agents"
	"github.com/talgya/swarm-ledger/internal/ledger"
	"github.com/talgya/swarm-ledger/internal/planning"
	"github.com/talgya/swarm-ledger/internal/world"
)

// AgentSummary is the list view of an agent.
type AgentSummary struct {
	ID           agents.AgentID `json:"id"`
	Position     world.Cell     `json:"position"`
	LedgerBlocks int            `json:"ledger_blocks"`
	VisitMass    int            `json:"visit_mass"`
	Coverage     float64        `json:"coverage"`
}

// AgentDetail adds the agent's plan and belief to the summary.
type AgentDetail struct {
	AgentSummary
	Plan              planning.Candidate `json:"plan"`
	LocalTime         uint64             `json:"local_time"`
	SinceLastReceived uint64             `json:"since_last_received"`
	Head              string             `json:"head"`
	Visits            [][]int            `json:"visits"`
}

// Snapshot returns a copy of the current statistics.
func (s *Simulation) Snapshot() SimStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := s.Stats
	stats.Detections = maps.Clone(s.Stats.Detections)
	return stats
}

// AgentSummaries lists every agent in iteration order.
func (s *Simulation) AgentSummaries() []AgentSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]AgentSummary, len(s.Agents))
	for i, a := range s.Agents {
		out[i] = summarize(a)
	}
	return out
}

func summarize(a *agents.Agent) AgentSummary {
	k := a.Knowledge()
	return AgentSummary{
		ID:           a.ID,
		Position:     a.Position,
		LedgerBlocks: a.Ledger.Len(),
		VisitMass:    k.VisitMass(),
		Coverage:     k.Coverage(),
	}
}

func (s *Simulation) agent(id agents.AgentID) (*agents.Agent, error) {
	a, ok := s.AgentIndex[id]
	if !ok {
		return nil, ierrors.Wrapf(ErrUnknownAgent, "agent %d", id)
	}
	return a, nil
}

// AgentDetail returns one agent's position, plan and visit counters.
func (s *Simulation) AgentDetail(id agents.AgentID) (AgentDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, err := s.agent(id)
	if err != nil {
		return AgentDetail{}, err
	}
	return AgentDetail{
		AgentSummary:      summarize(a),
		Plan:              a.Plan,
		LocalTime:         a.LocalTime,
		SinceLastReceived: a.SinceLastReceived,
		Head:              a.Ledger.Head().String(),
		Visits:            a.Knowledge().VisitRows(),
	}, nil
}

// AgentLedger returns an agent's blocks ordered by issuer and sequence.
// Blocks are immutable and may be shared.
func (s *Simulation) AgentLedger(id agents.AgentID) ([]*ledger.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, err := s.agent(id)
	if err != nil {
		return nil, err
	}
	return a.Ledger.Blocks(), nil
}

// AgentPastCone returns the blocks of an agent's ledger that causally precede
// block, block included.
func (s *Simulation) AgentPastCone(id agents.AgentID, block ledger.BlockID) ([]*ledger.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, err := s.agent(id)
	if err != nil {
		return nil, err
	}
	return a.Ledger.PastCone(block)
}

// ValidateLedger checks that an agent's ledger is causally closed.
func (s *Simulation) ValidateLedger(id agents.AgentID) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, err := s.agent(id)
	if err != nil {
		return err
	}
	return a.Ledger.Validate()
}

// AgentPOIs returns the aggregate the agent currently plans with.
func (s *Simulation) AgentPOIs(id agents.AgentID) (ledger.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, err := s.agent(id)
	if err != nil {
		return nil, err
	}
	return a.POIs(), nil
}

// AgentTokens recomputes the agent's token field, row-major.
func (s *Simulation) AgentTokens(id agents.AgentID) ([][]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, err := s.agent(id)
	if err != nil {
		return nil, err
	}
	return a.Scores().Rows2D(), nil
}

// InterestMap returns the ground-truth interest of every cell, row-major.
func (s *Simulation) InterestMap() [][]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([][]float64, s.World.Rows())
	for r := range out {
		out[r] = make([]float64, s.World.Cols())
		for c := range out[r] {
			out[r][c] = s.World.Interest(world.C(r+1, c+1))
		}
	}
	return out
}
