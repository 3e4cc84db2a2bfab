package entropy

// Noise perturbs an observed ground-truth value.
type Noise interface {
	Sample() float64
}

// Uniform draws noise uniformly from [-Amplitude, Amplitude).
type Uniform struct {
	Source    Source
	Amplitude float64
}

// NewUniform creates uniform observation noise over the given source.
func NewUniform(src Source, amplitude float64) *Uniform {
	return &Uniform{Source: src, Amplitude: amplitude}
}

// Sample returns one noise value.
func (u *Uniform) Sample() float64 {
	return (u.Source.Float64() - 0.5) * 2 * u.Amplitude
}

// Fixed always returns the same noise value. Fixed(0) makes observation exact.
type Fixed float64

// Sample returns the fixed value.
func (f Fixed) Sample() float64 {
	return float64(f)
}

// Exact is noise-free observation.
const Exact = Fixed(0)
