// Package metrics exposes swarm progress as Prometheus collectors.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "swarm"

const (
	labelAgent = "agent"
	labelTag   = "tag"
)

// Collectors groups the simulation metrics. A nil *Collectors is valid and
// records nothing.
type Collectors struct {
	Ticks        prometheus.Counter
	AgentUpdates *prometheus.CounterVec
	Merges       prometheus.Counter
	LedgerBlocks *prometheus.GaugeVec
	Detections   *prometheus.CounterVec
	Coverage     prometheus.Gauge
}

// New creates the collectors without registering them.
func New() *Collectors {
	return &Collectors{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ticks_total",
			Help:      "Global simulation ticks processed.",
		}),
		AgentUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "agent_updates_total",
			Help:      "Plan, move and observe cycles per agent.",
		}, []string{labelAgent}),
		Merges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ledger_merges_total",
			Help:      "Broadcasts merged into a peer ledger.",
		}),
		LedgerBlocks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "ledger_blocks",
			Help:      "Blocks held by each agent's ledger.",
		}, []string{labelAgent}),
		Detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "detections_total",
			Help:      "Observation events logged, by event tag.",
		}, []string{labelTag}),
		Coverage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "coverage_ratio",
			Help:      "Mean fraction of cells each agent has observed.",
		}),
	}
}

// Register adds every collector to reg.
func (c *Collectors) Register(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{c.Ticks, c.AgentUpdates, c.Merges, c.LedgerBlocks, c.Detections, c.Coverage} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistered creates the collectors and registers them with reg.
func NewRegistered(reg prometheus.Registerer) (*Collectors, error) {
	c := New()
	if err := c.Register(reg); err != nil {
		return nil, err
	}
	return c, nil
}

// Tick counts one global tick.
func (c *Collectors) Tick() {
	if c == nil {
		return
	}
	c.Ticks.Inc()
}

// AgentUpdated counts an agent update and the events it logged.
func (c *Collectors) AgentUpdated(agent uint64, tags []string) {
	if c == nil {
		return
	}
	c.AgentUpdates.WithLabelValues(agentLabel(agent)).Inc()
	for _, t := range tags {
		c.Detections.WithLabelValues(t).Inc()
	}
}

// Merged counts one ledger merge.
func (c *Collectors) Merged() {
	if c == nil {
		return
	}
	c.Merges.Inc()
}

// LedgerSize records the block count of an agent's ledger.
func (c *Collectors) LedgerSize(agent uint64, blocks int) {
	if c == nil {
		return
	}
	c.LedgerBlocks.WithLabelValues(agentLabel(agent)).Set(float64(blocks))
}

// SetCoverage records the swarm coverage ratio.
func (c *Collectors) SetCoverage(v float64) {
	if c == nil {
		return
	}
	c.Coverage.Set(v)
}

func agentLabel(id uint64) string {
	return strconv.FormatUint(id, 10)
}
