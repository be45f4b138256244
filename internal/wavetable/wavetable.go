package wavetable

import (
	"errors"
	"fmt"
	"math"
)

// DefaultWaveLen is the frame length of waveeditonline-style wavetables.
const DefaultWaveLen = 256

var errNoFrames = errors.New("wavetable: buffer holds no complete frame")

// Wavetable is a run of equal-length frames inside one sample buffer. The
// current frame is a blend of the two frames around the scan position and is
// rewritten in place by SetPosition; voices play it by reference.
type Wavetable struct {
	buf       []int16
	waveLen   int
	numFrames int
	pos       float64
	current   Waveform
}

// NewWavetable slices buf into frames of waveLen samples. Trailing samples
// that do not fill a frame are ignored.
func NewWavetable(buf []int16, waveLen int) (*Wavetable, error) {
	if waveLen <= 0 {
		return nil, fmt.Errorf("wavetable: wave length %d must be positive", waveLen)
	}
	n := len(buf) / waveLen
	if n == 0 {
		return nil, errNoFrames
	}
	wt := &Wavetable{
		buf:       buf[:n*waveLen],
		waveLen:   waveLen,
		numFrames: n,
		current:   make(Waveform, waveLen),
	}
	wt.SetPosition(0)
	return wt, nil
}

// Load swaps in a new sample buffer with the same frame length and rescans
// at the current position. The current frame slice is kept, so voices
// already playing it pick up the new table.
func (wt *Wavetable) Load(buf []int16) error {
	n := len(buf) / wt.waveLen
	if n == 0 {
		return errNoFrames
	}
	wt.buf = buf[:n*wt.waveLen]
	wt.numFrames = n
	wt.SetPosition(wt.pos)
	return nil
}

// SetPosition morphs the current frame to fractional frame index pos,
// clamped to [0, NumFrames-1]. Runs in O(WaveLen).
func (wt *Wavetable) SetPosition(pos float64) {
	if math.IsNaN(pos) {
		pos = 0
	}
	maxPos := float64(wt.numFrames - 1)
	if pos < 0 {
		pos = 0
	}
	if pos > maxPos {
		pos = maxPos
	}
	wt.pos = pos
	idx := math.Floor(pos)
	frac := pos - idx
	a := wt.Frame(int(idx))
	b := a
	if int(idx)+1 < wt.numFrames {
		b = wt.Frame(int(idx) + 1)
	}
	if len(wt.current) != wt.waveLen {
		panic("wavetable: current frame length changed")
	}
	for i := range wt.current {
		wt.current[i] = int16(math.Round(Lerp(a[i], b[i], frac)))
	}
}

// Position returns the clamped scan position last applied.
func (wt *Wavetable) Position() float64 { return wt.pos }

// Current returns the morphed frame. The slice stays the same across
// SetPosition calls, so a voice holding it hears every rescan.
func (wt *Wavetable) Current() Waveform { return wt.current }

// Frame returns frame i of the underlying buffer (read-only).
func (wt *Wavetable) Frame(i int) Waveform {
	start := i * wt.waveLen
	return Waveform(wt.buf[start : start+wt.waveLen])
}

func (wt *Wavetable) NumFrames() int { return wt.numFrames }
func (wt *Wavetable) WaveLen() int   { return wt.waveLen }
