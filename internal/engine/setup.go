package engine

import (
	"github.com/talgya/swarm-ledger/internal/agents"
	"github.com/talgya/swarm-ledger/internal/world"
)

// Build generates a world and spawns count agents at random cells on it.
func Build(gen world.GenConfig, spawn agents.SpawnConfig, count int) (*Simulation, error) {
	grid, err := world.Generate(gen)
	if err != nil {
		return nil, err
	}
	ag, err := agents.NewSpawner(grid, spawn).SpawnPopulation(count)
	if err != nil {
		return nil, err
	}
	return NewSimulation(grid, ag)
}
