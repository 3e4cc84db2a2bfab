// Simulation ties the ground truth and the swarm together and advances them
// one global tick at a time.
package engine

import (
	"log/slog"
	"sync"

	"github.com/iotaledger/hive.go/ierrors"

	"github.com/talgya/swarm-ledger/internal/agents"
	"github.com/talgya/swarm-ledger/internal/ledger"
	"github.com/talgya/swarm-ledger/internal/metrics"
	"github.com/talgya/swarm-ledger/internal/world"
)

var (
	ErrUnknownAgent   = ierrors.New("unknown agent")
	ErrDuplicateAgent = ierrors.New("agent id already registered")
)

// Simulation holds the world and the swarm. Agents are updated one at a time
// in registration order; each agent broadcasts right after its own update.
type Simulation struct {
	mu sync.RWMutex

	World      world.Model
	Agents     []*agents.Agent
	AgentIndex map[agents.AgentID]*agents.Agent
	LastTick   uint64

	// DetectThreshold decides which cells count as true points of interest
	// for POIMetric.
	DetectThreshold float64

	Stats   SimStats
	Metrics *metrics.Collectors
}

// SimStats tracks aggregate swarm statistics.
type SimStats struct {
	Tick         uint64             `json:"tick"`
	Agents       int                `json:"agents"`
	VisitMass    int                `json:"visit_mass"`
	Coverage     float64            `json:"coverage"`
	POIScore     float64            `json:"poi_score"`
	LedgerBlocks int                `json:"ledger_blocks"`
	Merges       int                `json:"merges"`
	Moves        int                `json:"moves"`
	Detections   map[ledger.Tag]int `json:"detections"`
}

// NewSimulation registers the agents in the given order.
func NewSimulation(truth world.Model, ag []*agents.Agent) (*Simulation, error) {
	s := &Simulation{
		World:           truth,
		AgentIndex:      make(map[agents.AgentID]*agents.Agent, len(ag)),
		DetectThreshold: agents.DefaultParams().DetectThreshold,
		Stats:           SimStats{Detections: make(map[ledger.Tag]int)},
	}
	for _, a := range ag {
		if err := s.addAgent(a); err != nil {
			return nil, err
		}
	}
	if len(ag) > 0 {
		s.DetectThreshold = ag[0].Params.DetectThreshold
	}
	s.updateStats()
	return s, nil
}

// AddAgent appends an agent to the iteration order.
func (s *Simulation) AddAgent(a *agents.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.addAgent(a); err != nil {
		return err
	}
	s.updateStats()
	return nil
}

func (s *Simulation) addAgent(a *agents.Agent) error {
	if _, ok := s.AgentIndex[a.ID]; ok {
		return ierrors.Wrapf(ErrDuplicateAgent, "agent %d", a.ID)
	}
	if !s.World.InBounds(a.Position) {
		return ierrors.Wrapf(world.ErrOutOfBounds, "agent %d at %s", a.ID, a.Position)
	}
	s.Agents = append(s.Agents, a)
	s.AgentIndex[a.ID] = a
	return nil
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastTick
}

// Step advances the swarm by one global tick.
func (s *Simulation) Step() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastTick++
	s.Metrics.Tick()

	for _, a := range s.Agents {
		out, err := a.Update()
		if err != nil {
			return ierrors.Wrapf(err, "tick %d", s.LastTick)
		}
		s.recordOutcome(a, out)

		if _, err := s.broadcast(a); err != nil {
			return ierrors.Wrapf(err, "tick %d", s.LastTick)
		}
	}

	s.updateStats()
	return nil
}

func (s *Simulation) recordOutcome(a *agents.Agent, out agents.Outcome) {
	if out.Moved {
		s.Stats.Moves++
	}
	tags := make([]string, len(out.Logged))
	for i, tag := range out.Logged {
		s.Stats.Detections[tag]++
		tags[i] = string(tag)
		slog.Debug("observation logged", "agent", a.ID, "tag", tag, "cell", a.Position.String(), "tick", s.LastTick)
	}
	s.Metrics.AgentUpdated(uint64(a.ID), tags)
}

// Broadcast pushes actor's ledger and most-explored cells to every agent in
// its communication range. It returns the number of peers reached.
func (s *Simulation) Broadcast(actor agents.AgentID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.AgentIndex[actor]
	if !ok {
		return 0, ierrors.Wrapf(ErrUnknownAgent, "agent %d", actor)
	}
	reached, err := s.broadcast(a)
	s.updateStats()
	return reached, err
}

// broadcast is a one-way push; peers answer only on their own turn.
func (s *Simulation) broadcast(actor *agents.Agent) (int, error) {
	reached := 0
	for _, peer := range s.Peers(actor) {
		adopted, err := peer.Receive(actor)
		if err != nil {
			return reached, err
		}
		reached++
		s.Stats.Merges++
		s.Metrics.Merged()
		slog.Debug("broadcast merged", "from", actor.ID, "to", peer.ID, "cells_adopted", adopted, "blocks", peer.Ledger.Len())
	}
	return reached, nil
}

// Peers lists the agents within actor's communication range, in iteration
// order, excluding actor itself.
func (s *Simulation) Peers(actor *agents.Agent) []*agents.Agent {
	var peers []*agents.Agent
	for _, other := range s.Agents {
		if other.ID == actor.ID {
			continue
		}
		if actor.InRange(other) {
			peers = append(peers, other)
		}
	}
	return peers
}

func (s *Simulation) updateStats() {
	s.Stats.Tick = s.LastTick
	s.Stats.Agents = len(s.Agents)
	s.Stats.VisitMass = 0
	s.Stats.LedgerBlocks = 0
	for _, a := range s.Agents {
		s.Stats.VisitMass += a.Knowledge().VisitMass()
		s.Stats.LedgerBlocks += a.Ledger.Len()
		s.Metrics.LedgerSize(uint64(a.ID), a.Ledger.Len())
	}
	s.Stats.Coverage = CoverageMetric(s)
	s.Stats.POIScore = POIMetric(s)
	s.Metrics.SetCoverage(s.Stats.Coverage)
}

// Report logs a summary of the current state.
func (s *Simulation) Report(tick uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slog.Info("tick report",
		"tick", tick,
		"agents", s.Stats.Agents,
		"coverage", s.Stats.Coverage,
		"poi_score", s.Stats.POIScore,
		"visit_mass", s.Stats.VisitMass,
		"ledger_blocks", s.Stats.LedgerBlocks,
		"merges", s.Stats.Merges,
		"detected", s.Stats.Detections[ledger.TagDetected],
		"verified", s.Stats.Detections[ledger.TagVerified],
		"rejected", s.Stats.Detections[ledger.TagRejected],
		"potential", s.Stats.Detections[ledger.TagPotential],
	)
}
