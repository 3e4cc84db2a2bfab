// Agent spawning: identifiers, start placement and the shared observation
// noise for a swarm.
package agents

import (
	"github.com/talgya/swarm-ledger/internal/entropy"
	"github.com/talgya/swarm-ledger/internal/ledger"
	"github.com/talgya/swarm-ledger/internal/tokens"
	"github.com/talgya/swarm-ledger/internal/world"
)

// SpawnConfig controls how agents are created.
type SpawnConfig struct {
	Seed           int64 // 0 = random
	Params         Params
	Pipeline       *tokens.Pipeline
	NoiseAmplitude float64
	Fusion         ledger.FusionFunc[*KnowledgeMap]
}

// DefaultSpawnConfig uses DefaultParams and unit noise.
func DefaultSpawnConfig() SpawnConfig {
	return SpawnConfig{
		Params:         DefaultParams(),
		NoiseAmplitude: 1,
	}
}

// Spawner creates agents for the simulation.
type Spawner struct {
	truth  world.Model
	cfg    SpawnConfig
	place  entropy.Source
	noise  entropy.Noise
	nextID AgentID
}

// NewSpawner creates an agent spawner over the ground truth.
func NewSpawner(truth world.Model, cfg SpawnConfig) *Spawner {
	noise := entropy.Noise(entropy.Exact)
	if cfg.NoiseAmplitude != 0 {
		noise = entropy.NewUniform(entropy.NewSeeded(entropy.Derive(cfg.Seed, 400)), cfg.NoiseAmplitude)
	}
	return &Spawner{
		truth:  truth,
		cfg:    cfg,
		place:  entropy.NewSeeded(entropy.Derive(cfg.Seed, 300)),
		noise:  noise,
		nextID: 1,
	}
}

// SetNextID sets the next agent ID to be issued.
func (s *Spawner) SetNextID(id AgentID) {
	s.nextID = id
}

// SpawnPopulation creates count agents at random start cells.
func (s *Spawner) SpawnPopulation(count int) ([]*Agent, error) {
	agents := make([]*Agent, 0, count)
	for i := 0; i < count; i++ {
		a, err := s.SpawnAt(world.RandomCell(s.truth, s.place))
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, nil
}

// SpawnAt creates one agent at start with the next free ID.
func (s *Spawner) SpawnAt(start world.Cell) (*Agent, error) {
	a, err := New(s.nextID, start, s.truth, s.cfg.Pipeline, s.noise, s.cfg.Fusion, s.cfg.Params)
	if err != nil {
		return nil, err
	}
	s.nextID++
	return a, nil
}
