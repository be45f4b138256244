// Package alloc maps key events onto synthesizer voices. Mono plays one key
// at a time with legato handoff; Poly gives every key its own voices and
// steals the oldest ones when the synthesizer is full.
package alloc

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/cbegin/polysynth-go/internal/synth"
)

// Voicer is the part of a Synthesizer an allocator drives.
type Voicer interface {
	PressAll(ns []synth.Note) ([]synth.Handle, error)
	Release(hs ...synth.Handle)
	ReleaseThenPress(old []synth.Handle, ns []synth.Note) ([]synth.Handle, error)
	Kill(hs ...synth.Handle)
	Active(h synth.Handle) bool
	Live() int
	MaxVoices() int
}

// NoteFunc builds the oscillator stack for one key press. id is the key
// number (MIDI note for keyboard input).
type NoteFunc func(id, velocity int) []synth.Note

// Allocator is the event-facing side shared by Mono and Poly.
type Allocator interface {
	NoteOn(id, velocity int) error
	NoteOff(id int)
	AllNotesOff()
	Held() []int
}

// Option configures an allocator.
type Option func(*base)

// WithLogger sets the logger used for voice stealing. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.log = l
		}
	}
}

// base tracks voices that were released but may still be sounding, oldest
// first. They are the first candidates for stealing.
type base struct {
	v        Voicer
	build    NoteFunc
	log      *slog.Logger
	released []synth.Handle
}

func newBase(v Voicer, build NoteFunc, opts []Option) base {
	b := base{
		v:     v,
		build: build,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *base) notes(id, velocity int) ([]synth.Note, error) {
	ns := b.build(id, velocity)
	if len(ns) > b.v.MaxVoices() {
		return nil, fmt.Errorf("key %d needs %d voices, limit %d: %w", id, len(ns), b.v.MaxVoices(), synth.ErrNoFreeVoice)
	}
	return ns, nil
}

// overflow is how many live voices must go before n more fit.
func (b *base) overflow(n int) int {
	return b.v.Live() + n - b.v.MaxVoices()
}

// pruneReleased forgets released voices the synthesizer already removed.
func (b *base) pruneReleased() {
	kept := b.released[:0]
	for _, h := range b.released {
		if b.v.Active(h) {
			kept = append(kept, h)
		}
	}
	b.released = kept
}

// stealReleased kills released voices, oldest first, until n more voices
// fit or none are left. It reports whether n voices now fit.
func (b *base) stealReleased(n int) bool {
	b.pruneReleased()
	for b.overflow(n) > 0 && len(b.released) > 0 {
		h := b.released[0]
		b.released = b.released[1:]
		b.v.Kill(h)
		b.log.Debug("stole released voice", "handle", h)
	}
	return b.overflow(n) <= 0
}
