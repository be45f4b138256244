package effects

import (
	"math"
	"testing"
)

func TestDelayEchoesAfterDelayTime(t *testing.T) {
	d := NewDelay(1000, 0.1, 0.5, 0, 1)
	if d.Samples() != 100 {
		t.Fatalf("samples = %d, want 100", d.Samples())
	}
	l, _ := d.Frame(1, 1)
	if l != 0 {
		t.Errorf("fully wet delay passed the dry impulse: %f", l)
	}
	var first, second int
	for i := 1; i < 250; i++ {
		l, _ := d.Frame(0, 0)
		switch {
		case l == 1:
			first = i
		case l == 0.5:
			second = i
		}
	}
	if first != 100 || second != 200 {
		t.Errorf("echoes at %d and %d, want 100 and 200", first, second)
	}
}

func TestDelayCrossFeedsOtherSide(t *testing.T) {
	d := NewDelay(1000, 0.01, 0.5, 1, 1)
	d.Frame(1, 0)
	var rightEcho float64
	for i := 1; i <= 20; i++ {
		_, r := d.Frame(0, 0)
		rightEcho = math.Max(rightEcho, r)
	}
	if rightEcho != 0.5 {
		t.Errorf("cross-fed echo = %f, want 0.5", rightEcho)
	}
}

func TestChorusDryWhenWetZero(t *testing.T) {
	c := NewChorus(48000, 0.02, 0.005, 1, 0.3, 0)
	for i := 0; i < 1000; i++ {
		x := math.Sin(float64(i) / 10)
		l, r := c.Frame(x, -x)
		if l != x || r != -x {
			t.Fatalf("frame %d: (%f, %f), want dry (%f, %f)", i, l, r, x, -x)
		}
	}
}

func TestChorusWetPathIsDelayed(t *testing.T) {
	// fully wet: silent until the delay line fills, then it follows the step
	c := NewChorus(1000, 0.02, 0.01, 5, 0, 1)
	var sawZero, sawOne bool
	for i := 0; i < 2000; i++ {
		l, _ := c.Frame(1, 1)
		if i > 40 && l > 0.99 {
			sawOne = true
		}
		if i < 10 && l == 0 {
			sawZero = true
		}
	}
	if !sawZero || !sawOne {
		t.Errorf("chorus tap never crossed the step: zero=%v one=%v", sawZero, sawOne)
	}
}

func TestReverbTailDecays(t *testing.T) {
	r := NewReverb(44100, 0.5, 0.7, 1)
	r.Frame(1, 1)
	var early, late float64
	for i := 0; i < 44100; i++ {
		l, _ := r.Frame(0, 0)
		if i < 10000 {
			early = math.Max(early, math.Abs(l))
		} else if i > 40000 {
			late = math.Max(late, math.Abs(l))
		}
	}
	if early < 0.001 {
		t.Error("expected a reverb tail")
	}
	if late >= early {
		t.Errorf("tail did not decay: early=%f late=%f", early, late)
	}
}

func TestDriveBounded(t *testing.T) {
	d := NewDrive(4, 30000)
	for _, x := range []float64{0, 1000, 30000, 1e6, -1e6} {
		l, r := d.Frame(x, -x)
		if math.Abs(l) > 30000 || l != -r {
			t.Errorf("Frame(%v) = (%v, %v)", x, l, r)
		}
		if x > 0 && l <= 0 {
			t.Errorf("Frame(%v) flipped sign", x)
		}
	}
}

func TestChainMonoAndStereo(t *testing.T) {
	c := NewChain(NewDrive(1, 1), NewDelay(1000, 0.001, 0, 0, 0))
	mono := []float64{0.5, -0.5}
	c.Process(mono, 1)
	if want := math.Tanh(0.5); math.Abs(mono[0]-want) > 1e-12 || math.Abs(mono[1]+want) > 1e-12 {
		t.Errorf("mono = %v, want ±%f", mono, want)
	}
	stereo := []float64{0.5, -0.25}
	c.Process(stereo, 2)
	if math.Abs(stereo[0]-math.Tanh(0.5)) > 1e-12 || math.Abs(stereo[1]-math.Tanh(-0.25)) > 1e-12 {
		t.Errorf("stereo = %v", stereo)
	}
	empty := NewChain()
	buf := []float64{1, 2}
	empty.Process(buf, 2)
	if buf[0] != 1 || buf[1] != 2 {
		t.Error("empty chain changed the block")
	}
}
