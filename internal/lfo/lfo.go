package lfo

import (
	"fmt"
	"math"

	"github.com/cbegin/polysynth-go/internal/wavetable"
)

// Shape selects a builtin LFO waveform.
type Shape int

const (
	ShapeTriangle Shape = iota // 0 at phase 0, +1 at 0.25, -1 at 0.75
	ShapeSine
	ShapeSaw    // +1 falling to -1
	ShapeSquare // +1 for the first half cycle
	ShapeRandom // sample-and-hold, new value each cycle
)

// ParamError reports a rejected LFO parameter.
type ParamError struct {
	Field string
	Value float64
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("lfo: invalid %s %v", e.Field, e.Value)
}

// LFO is a low-frequency modulation source. It is advanced once per render
// block and read by any number of voices or filters.
type LFO struct {
	rateHz  float64
	scale   float64
	offset  float64
	phase   float64 // [0, 1)
	shape   Shape
	wave    wavetable.Waveform
	once    bool
	held    bool
	randVal float64
	seed    float64
}

// Option configures an LFO at construction.
type Option func(*LFO)

func WithScale(scale float64) Option   { return func(l *LFO) { l.scale = scale } }
func WithOffset(offset float64) Option { return func(l *LFO) { l.offset = offset } }
func WithShape(s Shape) Option         { return func(l *LFO) { l.shape = s } }
func WithOnce(once bool) Option        { return func(l *LFO) { l.once = once } }

// WithWaveform uses w as the shape; samples are normalized by 32767.
func WithWaveform(w wavetable.Waveform) Option {
	return func(l *LFO) { l.wave = w }
}

// WithPhase sets the starting phase, wrapped into [0, 1).
func WithPhase(p float64) Option {
	return func(l *LFO) {
		p -= math.Floor(p)
		l.phase = p
	}
}

// New returns an LFO running at rateHz with scale 1 and offset 0.
// A negative rate is treated as 0.
func New(rateHz float64, opts ...Option) *LFO {
	if rateHz < 0 || math.IsNaN(rateHz) {
		rateHz = 0
	}
	l := &LFO{rateHz: rateHz, scale: 1}
	for _, opt := range opts {
		opt(l)
	}
	if l.shape < ShapeTriangle || l.shape > ShapeRandom {
		l.shape = ShapeTriangle
	}
	return l
}

// Advance moves the phase forward by rate*dt. A one-shot LFO stops at the
// end of its cycle and holds until Retrigger.
func (l *LFO) Advance(dt float64) {
	if l.held || l.rateHz == 0 || dt <= 0 {
		return
	}
	next := l.phase + l.rateHz*dt
	if l.once && next >= 1 {
		l.phase = math.Nextafter(1, 0)
		l.held = true
		return
	}
	wrapped := next >= 1
	next -= math.Floor(next)
	l.phase = next
	if wrapped && l.shape == ShapeRandom && l.wave == nil {
		l.nextRandom()
	}
	if l.phase < 0 || l.phase >= 1 {
		panic(fmt.Sprintf("lfo: phase %v escaped [0,1)", l.phase))
	}
}

// Value returns shape(phase)*scale + offset. It has no side effects.
func (l *LFO) Value() float64 {
	return l.shapeValue()*l.scale + l.offset
}

func (l *LFO) shapeValue() float64 {
	if l.wave != nil {
		if l.once {
			// one-shot shapes run first sample to last and never wrap
			return wavetable.AtClamped(l.wave, l.positionOnce()) / wavetable.MaxAmplitude
		}
		return wavetable.At(l.wave, l.phase*float64(len(l.wave))) / wavetable.MaxAmplitude
	}
	p := l.phase
	switch l.shape {
	case ShapeSine:
		return math.Sin(2 * math.Pi * p)
	case ShapeSaw:
		return 1 - 2*p
	case ShapeSquare:
		if p < 0.5 {
			return 1
		}
		return -1
	case ShapeRandom:
		return l.randVal
	default:
		switch {
		case p < 0.25:
			return 4 * p
		case p < 0.75:
			return 2 - 4*p
		default:
			return 4*p - 4
		}
	}
}

func (l *LFO) positionOnce() float64 {
	if l.held {
		return float64(len(l.wave) - 1)
	}
	return l.phase * float64(len(l.wave)-1)
}

// Sine-hash generator kept deterministic so renders are reproducible.
func (l *LFO) nextRandom() {
	l.seed += 1
	v := math.Sin(l.seed*12.9898+l.randVal*78.233) * 43758.5453
	v -= math.Floor(v)
	l.randVal = v*2 - 1
}

// Retrigger restarts the cycle at phase 0 and releases a held one-shot.
func (l *LFO) Retrigger() {
	l.phase = 0
	l.held = false
}

// SetRate changes the rate. Negative or NaN rates are rejected.
func (l *LFO) SetRate(hz float64) error {
	if hz < 0 || math.IsNaN(hz) {
		return &ParamError{Field: "rate", Value: hz}
	}
	l.rateHz = hz
	return nil
}

func (l *LFO) SetScale(scale float64)   { l.scale = scale }
func (l *LFO) SetOffset(offset float64) { l.offset = offset }

func (l *LFO) Rate() float64   { return l.rateHz }
func (l *LFO) Scale() float64  { return l.scale }
func (l *LFO) Offset() float64 { return l.offset }
func (l *LFO) Phase() float64  { return l.phase }
func (l *LFO) Once() bool      { return l.once }

// Held reports whether a one-shot LFO finished its cycle.
func (l *LFO) Held() bool { return l.held }
