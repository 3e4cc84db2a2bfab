package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/swarm-ledger/internal/config"
	"github.com/talgya/swarm-ledger/internal/persistence"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func smallConfig(t *testing.T) string {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Seed = 3
	cfg.Grid.Rows, cfg.Grid.Cols = 6, 6
	cfg.Grid.Mode = "field"
	cfg.Agents.Count = 2
	cfg.Engine.Ticks = 3

	path := filepath.Join(t.TempDir(), "swarm.yaml")
	require.NoError(t, cfg.Save(path))
	return path
}

func TestCLI(t *testing.T) {
	path := smallConfig(t)
	db := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, "--config", path, "run", "--record", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Tick 3:")
	assert.Contains(t, out, "agent 1 at")

	rec, err := persistence.Open(db)
	require.NoError(t, err)
	defer rec.Close()
	runs, err := rec.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	ticks, err := rec.Ticks(runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, ticks, 3)

	out, err = execute(t, "--config", path, "bench", "--runs", "2", "--metric", "poi")
	require.NoError(t, err)
	assert.Contains(t, out, "poi over 2 runs of 3 ticks")

	_, err = execute(t, "--config", path, "bench", "--metric", "speed")
	assert.Error(t, err)

	_, err = execute(t, "--config", path, "init")
	assert.Error(t, err, "init refuses to overwrite")

	fresh := filepath.Join(t.TempDir(), "new.yaml")
	out, err = execute(t, "--config", fresh, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+fresh)
	cfg, err := config.Load(fresh)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)
}
