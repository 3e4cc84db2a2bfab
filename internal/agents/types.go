// Package agents provides the exploring agent: its private knowledge map, its
// ledger, and the per-tick plan, move, observe cycle.
package agents

import (
	"math"

	"github.com/iotaledger/hive.go/ierrors"

	"github.com/talgya/swarm-ledger/internal/entropy"
	"github.com/talgya/swarm-ledger/internal/ledger"
	"github.com/talgya/swarm-ledger/internal/planning"
	"github.com/talgya/swarm-ledger/internal/tokens"
	"github.com/talgya/swarm-ledger/internal/world"
)

// AgentID is a unique identifier for an agent. It doubles as the ledger issuer.
type AgentID = ledger.IssuerID

// ErrInvalidParams is returned when agent parameters fail validation.
var ErrInvalidParams = ierrors.New("invalid agent parameters")

// RecordPolicy selects which value a detection block stores.
type RecordPolicy uint8

const (
	RecordTrueValue RecordPolicy = iota // Ground-truth interest of the cell
	RecordReading                       // The noisy reading that triggered the decision
)

// String names the policy as it appears in configuration.
func (p RecordPolicy) String() string {
	switch p {
	case RecordTrueValue:
		return "true_value"
	case RecordReading:
		return "reading"
	default:
		return "unknown"
	}
}

// ParseRecordPolicy maps a configuration name to a RecordPolicy.
func ParseRecordPolicy(s string) (RecordPolicy, error) {
	switch s {
	case "true_value", "":
		return RecordTrueValue, nil
	case "reading":
		return RecordReading, nil
	default:
		return 0, ierrors.Errorf("unknown record policy %q", s)
	}
}

// Value picks the recorded value.
func (p RecordPolicy) Value(truth, reading float64) float64 {
	if p == RecordReading {
		return reading
	}
	return truth
}

// Params are the per-agent tunables.
type Params struct {
	Planning           planning.Params
	DetectThreshold    float64
	PotentialThreshold float64
	CommunicationRange int // Chebyshev radius, inclusive
	AllKnowing         bool
	Record             RecordPolicy
}

// DefaultParams matches the reference swarm setup.
func DefaultParams() Params {
	return Params{
		Planning:           planning.Params{StepLength: 5, Depth: 4},
		DetectThreshold:    9.2,
		PotentialThreshold: 8.2,
		CommunicationRange: 5,
	}
}

// Validate fails fast on unusable parameters.
func (p Params) Validate() error {
	if err := p.Planning.Validate(); err != nil {
		return ierrors.Wrap(ErrInvalidParams, err.Error())
	}
	if math.IsNaN(p.DetectThreshold) || math.IsInf(p.DetectThreshold, 0) ||
		math.IsNaN(p.PotentialThreshold) || math.IsInf(p.PotentialThreshold, 0) {
		return ierrors.Wrapf(ErrInvalidParams, "thresholds %v / %v", p.DetectThreshold, p.PotentialThreshold)
	}
	if p.CommunicationRange < 0 {
		return ierrors.Wrapf(ErrInvalidParams, "communication range %d", p.CommunicationRange)
	}
	return nil
}

// Agent is one explorer in the swarm. The knowledge map is owned by the
// ledger so that merges can fuse it.
type Agent struct {
	ID       AgentID    `json:"id"`
	Position world.Cell `json:"position"`

	Ledger *ledger.Ledger[*KnowledgeMap] `json:"-"`
	Params Params                        `json:"-"`

	// Plan is the sequence chosen after the latest observation. It is
	// informational; every update plans again before moving.
	Plan planning.Candidate `json:"plan"`

	LocalTime         uint64 `json:"local_time"`
	SinceLastReceived uint64 `json:"since_last_received"`

	truth    world.Model
	pipeline *tokens.Pipeline
	noise    entropy.Noise
}

// New creates an agent at start. A nil fuse keeps the agent's own map on merge.
func New(id AgentID, start world.Cell, truth world.Model, pipeline *tokens.Pipeline,
	noise entropy.Noise, fuse ledger.FusionFunc[*KnowledgeMap], p Params) (*Agent, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !truth.InBounds(start) {
		return nil, ierrors.Wrapf(world.ErrOutOfBounds, "agent %d start %s", id, start)
	}
	if pipeline == nil {
		var err error
		if pipeline, err = tokens.NewPipeline(nil); err != nil {
			return nil, err
		}
	}
	if noise == nil {
		noise = entropy.Exact
	}

	var (
		knowledge *KnowledgeMap
		err       error
	)
	if p.AllKnowing {
		knowledge, err = NewOmniscientMap(truth)
	} else {
		knowledge, err = NewKnowledgeMap(truth.Rows(), truth.Cols())
	}
	if err != nil {
		return nil, err
	}

	return &Agent{
		ID:       id,
		Position: start,
		Ledger:   ledger.New(id, knowledge, fuse),
		Params:   p,
		truth:    truth,
		pipeline: pipeline,
		noise:    noise,
	}, nil
}

// Knowledge returns the agent's current belief.
func (a *Agent) Knowledge() *KnowledgeMap {
	return a.Ledger.Map()
}

// POIs is the aggregate the agent plans with: its own detections are left out.
func (a *Agent) POIs() ledger.Aggregate {
	return a.Ledger.POIsExcluding(a.ID)
}

// Scores computes the token field for the agent's current position.
func (a *Agent) Scores() *tokens.Map {
	return a.Knowledge().ScoreCells(a.pipeline, a.POIs(), a.Position)
}

// InRange reports whether other lies within communication range of a.
func (a *Agent) InRange(other *Agent) bool {
	return world.WithinSquare(a.Position, other.Position, a.Params.CommunicationRange)
}
