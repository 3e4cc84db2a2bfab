package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewRegistered(reg)
	require.NoError(t, err)

	c.Tick()
	c.Tick()
	c.AgentUpdated(3, []string{"Detected point of interest", "Detected point of interest"})
	c.AgentUpdated(3, nil)
	c.Merged()
	c.LedgerSize(3, 17)
	c.SetCoverage(0.25)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Ticks))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.AgentUpdates.WithLabelValues("3")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Detections.WithLabelValues("Detected point of interest")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Merges))
	assert.Equal(t, 17.0, testutil.ToFloat64(c.LedgerBlocks.WithLabelValues("3")))
	assert.Equal(t, 0.25, testutil.ToFloat64(c.Coverage))

	n, err := testutil.GatherAndCount(reg, "swarm_ticks_total", "swarm_ledger_blocks")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Error(t, c.Register(reg), "registering twice fails")
}

func TestNilCollectorsAreNoOps(t *testing.T) {
	var c *Collectors
	assert.NotPanics(t, func() {
		c.Tick()
		c.AgentUpdated(1, []string{"x"})
		c.Merged()
		c.LedgerSize(1, 2)
		c.SetCoverage(1)
	})
}
