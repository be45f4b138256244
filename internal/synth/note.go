package synth

import (
	"math"

	"github.com/cbegin/polysynth-go/internal/envelope"
	"github.com/cbegin/polysynth-go/internal/filter"
	"github.com/cbegin/polysynth-go/internal/wavetable"
)

// ModID names an LFO registered with a Synthesizer. The zero ModID is "no source".
type ModID int

// Mod is a modulatable input: either a constant or the current value of a
// registered LFO. A Mod whose source has been removed falls back to Value.
type Mod struct {
	Value  float64
	Source ModID
}

// Const is a Mod fixed at v.
func Const(v float64) Mod { return Mod{Value: v} }

// From is a Mod driven by the LFO registered under id.
func From(id ModID) Mod { return Mod{Source: id} }

// Driven reports whether the Mod reads an LFO.
func (m Mod) Driven() bool { return m.Source != 0 }

// FilterSpec configures a voice's filter. The effective cutoff each block is
// Cutoff plus the value of CutoffMod.
type FilterSpec struct {
	Mode      filter.Mode
	Cutoff    float64
	Q         float64
	CutoffMod Mod
}

// LowPass, HighPass and BandPass build unmodulated filter specs.
func LowPass(cutoff, q float64) *FilterSpec {
	return &FilterSpec{Mode: filter.LowPass, Cutoff: cutoff, Q: q}
}

func HighPass(cutoff, q float64) *FilterSpec {
	return &FilterSpec{Mode: filter.HighPass, Cutoff: cutoff, Q: q}
}

func BandPass(cutoff, q float64) *FilterSpec {
	return &FilterSpec{Mode: filter.BandPass, Cutoff: cutoff, Q: q}
}

// Note describes one oscillator to press. The Synthesizer copies it, so the
// caller may reuse a Note value; the Waveform is shared, not copied.
type Note struct {
	Frequency float64
	Waveform  wavetable.Waveform // nil plays a square wave
	Envelope  envelope.Params
	Filter    *FilterSpec

	Bend    Mod // octaves; frequency is scaled by 2^Bend
	Panning Mod // -1 left .. +1 right, stereo only

	// Amplitude is a linear gain. Nil, or a source that has been removed,
	// plays at unity.
	Amplitude *Mod
}

// NewNote returns a note at freq with the default envelope and unity amplitude.
func NewNote(freq float64, w wavetable.Waveform) Note {
	return Note{
		Frequency: freq,
		Waveform:  w,
		Envelope:  envelope.DefaultParams(),
	}
}

// MidiToHz converts a MIDI note number, fractional allowed, to Hz.
func MidiToHz(note float64) float64 {
	return 440 * math.Exp2((note-69)/12)
}
