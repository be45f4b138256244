// Package filter implements the per-voice resonant filter: a
// zero-delay-feedback state variable filter whose coefficients are cheap
// enough to recompute every block when the cutoff is modulated.
package filter

import "math"

// Mode selects which state variable output a voice hears.
type Mode int

const (
	LowPass Mode = iota
	HighPass
	BandPass
)

func (m Mode) String() string {
	switch m {
	case HighPass:
		return "highpass"
	case BandPass:
		return "bandpass"
	default:
		return "lowpass"
	}
}

// Cutoff and resonance limits. Inputs outside them are clamped rather than
// rejected, since a modulated cutoff routinely swings past them.
const (
	MinCutoff    = 10.0
	MaxCutoffRel = 0.49 // fraction of the sample rate
	MinQ         = 0.1
	MaxQ         = 40.0
)

// Coeffs is the filter configuration derived from (mode, cutoff, Q).
type Coeffs struct {
	Mode   Mode
	Cutoff float64 // after clamping
	Q      float64 // after clamping
	a1     float64
	a2     float64
	a3     float64
	k      float64
}

// Set recomputes the coefficients in place.
func (c *Coeffs) Set(mode Mode, cutoff, q, sampleRate float64) {
	maxCutoff := sampleRate * MaxCutoffRel
	if cutoff < MinCutoff || math.IsNaN(cutoff) {
		cutoff = MinCutoff
	}
	if cutoff > maxCutoff {
		cutoff = maxCutoff
	}
	if q < MinQ || math.IsNaN(q) {
		q = MinQ
	}
	if q > MaxQ {
		q = MaxQ
	}
	g := math.Tan(math.Pi * cutoff / sampleRate)
	k := 1 / q
	c.Mode = mode
	c.Cutoff = cutoff
	c.Q = q
	c.k = k
	c.a1 = 1 / (1 + g*(g+k))
	c.a2 = g * c.a1
	c.a3 = g * c.a2
}

// State is the integrator memory carried between blocks.
type State struct {
	ic1eq float64
	ic2eq float64
}

// Reset clears the integrators.
func (s *State) Reset() {
	s.ic1eq, s.ic2eq = 0, 0
}

// Process filters buf in place.
func (s *State) Process(c *Coeffs, buf []float64) {
	ic1eq, ic2eq := s.ic1eq, s.ic2eq
	for i, in := range buf {
		v3 := in - ic2eq
		v1 := c.a1*ic1eq + c.a2*v3
		v2 := ic2eq + c.a2*ic1eq + c.a3*v3
		ic1eq = 2*v1 - ic1eq
		ic2eq = 2*v2 - ic2eq
		switch c.Mode {
		case HighPass:
			buf[i] = in - c.k*v1 - v2
		case BandPass:
			buf[i] = c.k * v1 // unity gain at the center frequency
		default:
			buf[i] = v2
		}
	}
	s.ic1eq, s.ic2eq = ic1eq, ic2eq
}
