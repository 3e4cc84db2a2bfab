package tokens

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/talgya/swarm-ledger/internal/ledger"
	"github.com/talgya/swarm-ledger/internal/world"
)

// Knowledge is the part of an agent's belief the scoring stages read.
type Knowledge interface {
	Rows() int
	Cols() int
	Visits(c world.Cell) int
}

// Input is everything one scoring pass depends on.
type Input struct {
	Knowledge Knowledge
	POIs      ledger.Aggregate
	Position  world.Cell
}

// Op says how a stage's output combines with the running field.
type Op uint8

const (
	OpReplace    Op = iota // running = out
	OpAccumulate           // running += out
	OpMultiply             // running *= out
)

// String names the operation.
func (o Op) String() string {
	switch o {
	case OpReplace:
		return "replace"
	case OpAccumulate:
		return "accumulate"
	case OpMultiply:
		return "multiply"
	default:
		return "unknown"
	}
}

// EvalFunc computes a stage's output field. running is the field accumulated
// by the earlier stages and must not be modified.
type EvalFunc func(in Input, running *Map, weight float64) *Map

// Stage is one weighted step of the pipeline.
type Stage struct {
	Name string
	Op   Op
	Eval EvalFunc
}

// Stages is the fixed pipeline order. Later stages read the output of earlier
// ones, so the order is part of the scoring semantics.
var Stages = []Stage{
	{Name: "exploration", Op: OpReplace, Eval: Exploration},
	{Name: "unresolved_detection", Op: OpAccumulate, Eval: UnresolvedDetection},
	{Name: "unresolved_potential", Op: OpAccumulate, Eval: UnresolvedPotential},
	{Name: "resolution_uncertainty", Op: OpAccumulate, Eval: ResolutionUncertainty},
	{Name: "smoothing", Op: OpAccumulate, Eval: Smoothing},
	{Name: "distance_decay", Op: OpMultiply, Eval: DistanceDecay},
}

// StageCount is the number of weights a pipeline takes.
var StageCount = len(Stages)

// Exploration rewards rarely visited cells: w*(1/(visits+1) - 0.1). The score
// turns negative once a cell has been visited more than nine times.
func Exploration(in Input, _ *Map, w float64) *Map {
	out := NewMap(in.Knowledge.Rows(), in.Knowledge.Cols())
	for r := 1; r <= in.Knowledge.Rows(); r++ {
		for c := 1; c <= in.Knowledge.Cols(); c++ {
			cell := world.Cell{Row: r, Col: c}
			out.Set(cell, w*(1/float64(in.Knowledge.Visits(cell)+1)-0.1))
		}
	}
	return out
}

// UnresolvedDetection adds w/total for cells someone detected that nobody
// has verified or rejected yet.
func UnresolvedDetection(in Input, _ *Map, w float64) *Map {
	return unresolvedBonus(in, w, func(p ledger.POICounts) bool { return p.Detected > 0 })
}

// UnresolvedPotential adds w/total for unresolved potential detections.
func UnresolvedPotential(in Input, _ *Map, w float64) *Map {
	return unresolvedBonus(in, w, func(p ledger.POICounts) bool { return p.Potential > 0 })
}

func unresolvedBonus(in Input, w float64, flagged func(ledger.POICounts) bool) *Map {
	out := NewMap(in.Knowledge.Rows(), in.Knowledge.Cols())
	for cell, counts := range in.POIs {
		if !flagged(counts) || !counts.Unresolved() {
			continue
		}
		out.Set(cell, w/float64(counts.Total()))
	}
	return out
}

// ResolutionUncertainty adds w*4p(1-p)/total where p is the share of
// confirming measurements, peaking when evidence is evenly split.
func ResolutionUncertainty(in Input, _ *Map, w float64) *Map {
	out := NewMap(in.Knowledge.Rows(), in.Knowledge.Cols())
	for cell, counts := range in.POIs {
		total := float64(counts.Total())
		if total == 0 {
			continue
		}
		p := float64(counts.Detected+counts.Verified) / total
		out.Set(cell, w*4*p*(1-p)/total)
	}
	return out
}

// Smoothing returns w times the running field blurred with a normalized 5x5
// Gaussian (sigma 1). Edges are handled by mirror reflection.
func Smoothing(_ Input, running *Map, w float64) *Map {
	blurred := convolve(running.dense, gaussianKernel(kernelSize, kernelSigma))
	blurred.Scale(w, blurred)
	return &Map{dense: blurred}
}

// DistanceDecay returns the factor w^d for every cell, d being the euclidean
// distance to the agent. For w in [0,1) scores shrink with distance.
func DistanceDecay(in Input, running *Map, w float64) *Map {
	out := NewMap(running.Rows(), running.Cols())
	for r := 1; r <= running.Rows(); r++ {
		for c := 1; c <= running.Cols(); c++ {
			cell := world.Cell{Row: r, Col: c}
			out.Set(cell, math.Pow(w, world.Distance(cell, in.Position)))
		}
	}
	return out
}

const (
	kernelSize  = 5
	kernelSigma = 1.0
)

// gaussianKernel builds a normalized size x size kernel.
func gaussianKernel(size int, sigma float64) *mat.Dense {
	half := float64(size-1) / 2
	g := make([]float64, size)
	for i := range g {
		x := float64(i) - half
		g[i] = math.Exp(-0.5 * x * x / (sigma * sigma))
	}

	k := mat.NewDense(size, size, nil)
	k.Outer(1, mat.NewVecDense(size, g), mat.NewVecDense(size, g))
	k.Scale(1/mat.Sum(k), k)
	return k
}

// convolve applies a symmetric kernel to src with mirror-reflected borders.
func convolve(src *mat.Dense, kernel *mat.Dense) *mat.Dense {
	rows, cols := src.Dims()
	kr, kc := kernel.Dims()
	hr, hc := kr/2, kc/2

	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			sum := 0.0
			for i := 0; i < kr; i++ {
				sr := reflect(r+i-hr, rows)
				for j := 0; j < kc; j++ {
					sum += kernel.At(i, j) * src.At(sr, reflect(c+j-hc, cols))
				}
			}
			out.Set(r, c, sum)
		}
	}
	return out
}

// reflect maps an index outside [0, n) back inside by mirroring about the
// edges (d c b a | a b c d | d c b a).
func reflect(i, n int) int {
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		} else {
			i = 2*n - i - 1
		}
	}
	return i
}
