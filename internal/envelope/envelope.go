package envelope

import (
	"fmt"
	"math"
)

// Stage is the envelope's state machine position.
type Stage int

const (
	Idle Stage = iota
	Attack
	Decay
	Sustain
	Release
)

func (s Stage) String() string {
	switch s {
	case Attack:
		return "attack"
	case Decay:
		return "decay"
	case Sustain:
		return "sustain"
	case Release:
		return "release"
	default:
		return "idle"
	}
}

// Params describes an ADSR shape. Times are in seconds, levels in [0, 1].
type Params struct {
	AttackTime   float64
	DecayTime    float64
	ReleaseTime  float64
	AttackLevel  float64
	SustainLevel float64
}

// DefaultParams matches the behaviour of a note with no explicit envelope.
func DefaultParams() Params {
	return Params{
		AttackTime:   0,
		DecayTime:    0.05,
		ReleaseTime:  0,
		AttackLevel:  1,
		SustainLevel: 0.8,
	}
}

// Flat jumps straight to full level and holds it until release.
func Flat() Params {
	return Params{AttackLevel: 1, SustainLevel: 1}
}

// ParamError reports an envelope parameter outside its valid range.
type ParamError struct {
	Field string
	Value float64
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("envelope: invalid %s %v", e.Field, e.Value)
}

// Validate rejects negative times and levels outside [0, 1].
func (p Params) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"attack time", p.AttackTime},
		{"decay time", p.DecayTime},
		{"release time", p.ReleaseTime},
	} {
		if f.v < 0 || math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return &ParamError{Field: f.name, Value: f.v}
		}
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"attack level", p.AttackLevel},
		{"sustain level", p.SustainLevel},
	} {
		if f.v < 0 || f.v > 1 || math.IsNaN(f.v) {
			return &ParamError{Field: f.name, Value: f.v}
		}
	}
	return nil
}

// Sanitize clamps every field into its valid range.
func (p Params) Sanitize() Params {
	p.AttackTime = clampTime(p.AttackTime)
	p.DecayTime = clampTime(p.DecayTime)
	p.ReleaseTime = clampTime(p.ReleaseTime)
	p.AttackLevel = clampLevel(p.AttackLevel)
	p.SustainLevel = clampLevel(p.SustainLevel)
	return p
}

func clampTime(v float64) float64 {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clampLevel(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Block durations summed over a stage rarely land exactly on its length.
const timeEpsilon = 1e-9

// Envelope is the per-voice runtime state of an ADSR shape.
type Envelope struct {
	p          Params
	stage      Stage
	elapsed    float64 // seconds spent in the current stage
	level      float64
	stageStart float64 // level when the current stage began
}

// New returns an idle envelope. Out-of-range params are clamped.
func New(p Params) Envelope {
	return Envelope{p: p.Sanitize()}
}

// Trigger restarts the envelope at the beginning of Attack from level 0.
// A zero attack time jumps straight to the attack level.
func (e *Envelope) Trigger() {
	e.level = 0
	e.enter(Attack)
	e.Advance(0)
}

// Release starts the release ramp from the current level, whatever stage
// the envelope is in.
func (e *Envelope) Release() {
	if e.stage == Idle || e.stage == Release {
		return
	}
	e.enter(Release)
}

func (e *Envelope) enter(s Stage) {
	e.stage = s
	e.elapsed = 0
	e.stageStart = e.level
}

// Advance moves the envelope forward dt seconds and returns the new level.
// Time left over after a stage ends carries into the next stage.
func (e *Envelope) Advance(dt float64) float64 {
	if dt < 0 {
		dt = 0
	}
	for {
		switch e.stage {
		case Attack:
			if done, rest := e.ramp(dt, e.p.AttackTime, e.p.AttackLevel); done {
				e.enter(Decay)
				dt = rest
				continue
			}
		case Decay:
			if done, rest := e.ramp(dt, e.p.DecayTime, e.p.SustainLevel); done {
				e.enter(Sustain)
				dt = rest
				continue
			}
		case Sustain:
			e.level = e.p.SustainLevel
		case Release:
			if done, _ := e.ramp(dt, e.p.ReleaseTime, 0); done {
				e.level = 0
				e.enter(Idle)
			}
		case Idle:
			e.level = 0
		}
		return e.level
	}
}

// ramp moves linearly from stageStart to target over dur seconds. It
// reports whether the target was reached and how much of dt was left over.
func (e *Envelope) ramp(dt, dur, target float64) (bool, float64) {
	e.elapsed += dt
	if e.elapsed >= dur-timeEpsilon {
		e.level = target
		return true, math.Max(0, e.elapsed-dur)
	}
	e.level = e.stageStart + (target-e.stageStart)*e.elapsed/dur
	return false, 0
}

func (e *Envelope) Stage() Stage     { return e.stage }
func (e *Envelope) Level() float64   { return e.level }
func (e *Envelope) Elapsed() float64 { return e.elapsed }
func (e *Envelope) Params() Params   { return e.p }
func (e *Envelope) Idle() bool       { return e.stage == Idle }
func (e *Envelope) Releasing() bool  { return e.stage == Release }
