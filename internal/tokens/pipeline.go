package tokens

import (
	"github.com/iotaledger/hive.go/ierrors"
)

var (
	ErrWeightCount = ierrors.New("weight vector length does not match stage count")
	ErrWeightRange = ierrors.New("weight outside [0, 1]")
)

// DefaultWeights gives every stage the same weight.
func DefaultWeights() []float64 {
	w := make([]float64, StageCount)
	for i := range w {
		w[i] = 1 / float64(StageCount)
	}
	return w
}

// Pipeline folds the fixed stage list over a knowledge snapshot.
type Pipeline struct {
	weights []float64
}

// NewPipeline validates the weights, one per stage in stage order. Nil weights
// select DefaultWeights.
func NewPipeline(weights []float64) (*Pipeline, error) {
	if weights == nil {
		weights = DefaultWeights()
	}
	if len(weights) != StageCount {
		return nil, ierrors.Wrapf(ErrWeightCount, "got %d, want %d", len(weights), StageCount)
	}
	for i, w := range weights {
		if !(w >= 0 && w <= 1) {
			return nil, ierrors.Wrapf(ErrWeightRange, "stage %s weight %v", Stages[i].Name, w)
		}
	}
	return &Pipeline{weights: append([]float64(nil), weights...)}, nil
}

// Weights returns a copy of the stage weights.
func (p *Pipeline) Weights() []float64 {
	return append([]float64(nil), p.weights...)
}

// Score runs every stage in order and returns the final field.
func (p *Pipeline) Score(in Input) *Map {
	running := NewMap(in.Knowledge.Rows(), in.Knowledge.Cols())
	for i := range Stages {
		running = p.Apply(i, in, running)
	}
	return running
}

// Apply runs stage i against running and returns the combined field. running
// is left untouched.
func (p *Pipeline) Apply(i int, in Input, running *Map) *Map {
	stage := Stages[i]
	return Combine(stage.Op, running, stage.Eval(in, running, p.weights[i]))
}

// Combine merges a stage output into the running field according to op.
func Combine(op Op, running, out *Map) *Map {
	switch op {
	case OpReplace:
		return out
	case OpAccumulate:
		next := running.Clone()
		next.dense.Add(next.dense, out.dense)
		return next
	case OpMultiply:
		next := running.Clone()
		next.dense.MulElem(next.dense, out.dense)
		return next
	default:
		panic(ierrors.Errorf("unknown stage op %d", op))
	}
}
