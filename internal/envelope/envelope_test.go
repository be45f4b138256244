package envelope

import (
	"errors"
	"math"
	"testing"
)

const tol = 1e-9

func TestAttackReachesAttackLevel(t *testing.T) {
	e := New(Params{AttackTime: 0.1, DecayTime: 0.2, ReleaseTime: 0.3, AttackLevel: 0.9, SustainLevel: 0.5})
	e.Trigger()
	if e.Stage() != Attack || e.Level() != 0 {
		t.Fatalf("after trigger: stage=%v level=%v", e.Stage(), e.Level())
	}
	// 0.1s in 10ms ticks
	var level float64
	for i := 0; i < 10; i++ {
		level = e.Advance(0.01)
	}
	if math.Abs(level-0.9) > tol {
		t.Fatalf("level after attack time = %v, want 0.9", level)
	}
	if e.Stage() != Decay {
		t.Errorf("stage after attack = %v, want decay", e.Stage())
	}
	for i := 0; i < 25; i++ {
		level = e.Advance(0.01)
	}
	if e.Stage() != Sustain || math.Abs(level-0.5) > tol {
		t.Errorf("after decay: stage=%v level=%v, want sustain 0.5", e.Stage(), level)
	}
	for i := 0; i < 100; i++ {
		if l := e.Advance(0.01); l != 0.5 {
			t.Fatalf("sustain drifted to %v", l)
		}
	}
}

func TestZeroAttackSkipsDirectly(t *testing.T) {
	e := New(Flat())
	e.Trigger()
	if e.Stage() != Sustain || e.Level() != 1 {
		t.Fatalf("flat envelope after trigger: stage=%v level=%v", e.Stage(), e.Level())
	}
	e = New(Params{DecayTime: 0.1, AttackLevel: 1, SustainLevel: 0.4})
	e.Trigger()
	if e.Stage() != Decay || e.Level() != 1 {
		t.Fatalf("zero attack: stage=%v level=%v, want decay at 1", e.Stage(), e.Level())
	}
}

func TestReleaseMidDecayFallsToZero(t *testing.T) {
	e := New(Params{AttackTime: 0.01, DecayTime: 0.5, ReleaseTime: 0.2, AttackLevel: 1, SustainLevel: 0.2})
	e.Trigger()
	e.Advance(0.01)
	e.Advance(0.1) // partway into decay
	if e.Stage() != Decay {
		t.Fatalf("stage = %v, want decay", e.Stage())
	}
	start := e.Level()
	e.Release()
	if e.Level() != start {
		t.Fatalf("release jumped from %v to %v", start, e.Level())
	}
	prev := start
	for i := 0; i < 20; i++ {
		l := e.Advance(0.01)
		if l > prev+tol {
			t.Fatalf("release increased from %v to %v", prev, l)
		}
		prev = l
	}
	if prev != 0 || !e.Idle() {
		t.Errorf("after release time: level=%v stage=%v, want idle at 0", prev, e.Stage())
	}
}

func TestReleaseDuringAttackIsContinuous(t *testing.T) {
	e := New(Params{AttackTime: 1, ReleaseTime: 0.5, AttackLevel: 1, SustainLevel: 1})
	e.Trigger()
	e.Advance(0.25)
	e.Release()
	first := e.Advance(0.01)
	if math.Abs(first-0.25*(1-0.01/0.5)) > tol {
		t.Errorf("first release step = %v, want ramp from 0.25", first)
	}
}

func TestZeroReleaseGoesIdleOnNextAdvance(t *testing.T) {
	e := New(Flat())
	e.Trigger()
	e.Release()
	if e.Stage() != Release {
		t.Fatalf("stage = %v, want release", e.Stage())
	}
	if l := e.Advance(0.001); l != 0 || !e.Idle() {
		t.Errorf("level=%v stage=%v, want idle", l, e.Stage())
	}
	e.Release()
	if !e.Idle() {
		t.Error("release on idle envelope should stay idle")
	}
}

func TestLeftoverTimeCarriesAcrossStages(t *testing.T) {
	e := New(Params{AttackTime: 0.1, DecayTime: 0.1, AttackLevel: 1, SustainLevel: 0})
	e.Trigger()
	// one big step lands halfway through decay
	if l := e.Advance(0.15); math.Abs(l-0.5) > tol {
		t.Errorf("level = %v, want 0.5", l)
	}
}

func TestValidateAndSanitize(t *testing.T) {
	for _, tc := range []struct {
		name  string
		p     Params
		field string
	}{
		{"negative attack", Params{AttackTime: -1, AttackLevel: 1}, "attack time"},
		{"negative release", Params{ReleaseTime: -0.1}, "release time"},
		{"sustain above one", Params{SustainLevel: 1.5}, "sustain level"},
		{"negative attack level", Params{AttackLevel: -0.5}, "attack level"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.Validate()
			var pe *ParamError
			if !errors.As(err, &pe) || pe.Field != tc.field {
				t.Fatalf("Validate = %v, want %s error", err, tc.field)
			}
			if err := tc.p.Sanitize().Validate(); err != nil {
				t.Errorf("sanitized params still invalid: %v", err)
			}
		})
	}
	if err := DefaultParams().Validate(); err != nil {
		t.Errorf("default params invalid: %v", err)
	}
}
