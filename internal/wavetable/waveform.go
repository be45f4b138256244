package wavetable

import (
	"encoding/hex"
	"fmt"
	"math"
	"math/rand"
	"strings"
)

const twoPi = math.Pi * 2

// MaxAmplitude is the largest sample magnitude a Waveform holds.
const MaxAmplitude = math.MaxInt16

// DefaultSize is the length used by the builtin waveforms when size <= 0.
const DefaultSize = 512

// Waveform is one cycle of signed 16-bit samples. Waveforms are shared by
// reference between voices and must not be written while a voice plays them.
type Waveform []int16

// Lerp mixes a and b; t=0 gives a, t=1 gives b.
// Both the wavetable scanner and the LFO waveform reader go through it.
func Lerp(a, b int16, t float64) float64 {
	return (1-t)*float64(a) + t*float64(b)
}

// At samples w at fractional index pos, wrapping past the last sample back
// to the first. pos may be any real number.
func At(w Waveform, pos float64) float64 {
	n := len(w)
	if n == 0 {
		return 0
	}
	idx := math.Floor(pos)
	frac := pos - idx
	i0 := int(idx) % n
	if i0 < 0 {
		i0 += n
	}
	i1 := i0 + 1
	if i1 == n {
		i1 = 0
	}
	return Lerp(w[i0], w[i1], frac)
}

// AtClamped samples w at fractional index pos without wrapping: positions
// past the last sample read the last sample.
func AtClamped(w Waveform, pos float64) float64 {
	n := len(w)
	if n == 0 {
		return 0
	}
	if pos <= 0 {
		return float64(w[0])
	}
	if pos >= float64(n-1) {
		return float64(w[n-1])
	}
	idx := math.Floor(pos)
	i0 := int(idx)
	return Lerp(w[i0], w[i0+1], pos-idx)
}

// Linspace returns n samples ramping linearly from start to stop inclusive.
// A downward ramp from +A to -A is the classic saw.
func Linspace(start, stop int16, n int) Waveform {
	if n <= 0 {
		return nil
	}
	w := make(Waveform, n)
	if n == 1 {
		w[0] = start
		return w
	}
	step := (float64(stop) - float64(start)) / float64(n-1)
	for i := range w {
		w[i] = int16(math.Round(float64(start) + step*float64(i)))
	}
	return w
}

// Saw is a downward ramp from +amp to -amp.
func Saw(size int, amp int16) Waveform {
	if size <= 0 {
		size = DefaultSize
	}
	return Linspace(amp, -amp, size)
}

// Sine is one cycle of a sine wave.
func Sine(size int, amp int16) Waveform {
	if size <= 0 {
		size = DefaultSize
	}
	w := make(Waveform, size)
	for i := range w {
		w[i] = int16(math.Round(float64(amp) * math.Sin(twoPi*float64(i)/float64(size))))
	}
	return w
}

// Square is a 50% duty pulse.
func Square(size int, amp int16) Waveform {
	if size <= 0 {
		size = DefaultSize
	}
	w := make(Waveform, size)
	for i := range w {
		if i < size/2 {
			w[i] = amp
		} else {
			w[i] = -amp
		}
	}
	return w
}

// Triangle starts at zero, peaks at a quarter cycle and bottoms at three quarters.
func Triangle(size int, amp int16) Waveform {
	if size <= 0 {
		size = DefaultSize
	}
	w := make(Waveform, size)
	for i := range w {
		p := float64(i) / float64(size)
		var v float64
		switch {
		case p < 0.25:
			v = 4 * p
		case p < 0.75:
			v = 2 - 4*p
		default:
			v = 4*p - 4
		}
		w[i] = int16(math.Round(float64(amp) * v))
	}
	return w
}

// Noise is a table of uniformly distributed random samples. The same seed
// always yields the same table.
func Noise(size int, amp int16, seed int64) Waveform {
	if size <= 0 {
		size = DefaultSize
	}
	r := rand.New(rand.NewSource(seed))
	w := make(Waveform, size)
	for i := range w {
		w[i] = int16(r.Intn(2*int(amp)+1) - int(amp))
	}
	return w
}

// RampUp and RampDown are three-point ramps meant as one-shot pitch LFO shapes.
func RampUp() Waveform   { return Linspace(-MaxAmplitude, MaxAmplitude, 3) }
func RampDown() Waveform { return Linspace(MaxAmplitude, -MaxAmplitude, 3) }

// ParseHex converts pairs of hex digits, each a signed 8-bit sample, into a
// Waveform scaled to the 16-bit range.
func ParseHex(h string) (Waveform, error) {
	data, err := hex.DecodeString(h)
	if err != nil {
		return nil, err
	}
	out := make(Waveform, len(data))
	for i, b := range data {
		out[i] = int16(int8(b)) << 8
	}
	return out, nil
}

// Named returns a builtin waveform of the given size: saw, sine, square,
// triangle, noise, rampup or rampdown. A "hex:" prefix parses the rest
// with ParseHex.
func Named(name string, size int) (Waveform, error) {
	if h, ok := strings.CutPrefix(name, "hex:"); ok {
		return ParseHex(h)
	}
	switch name {
	case "saw":
		return Saw(size, 28000), nil
	case "sine":
		return Sine(size, 28000), nil
	case "square":
		return Square(size, 20000), nil
	case "triangle":
		return Triangle(size, 28000), nil
	case "noise":
		return Noise(size, MaxAmplitude, 1), nil
	case "rampup":
		return RampUp(), nil
	case "rampdown":
		return RampDown(), nil
	}
	return nil, fmt.Errorf("unknown waveform %q", name)
}
