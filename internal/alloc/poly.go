package alloc

import "github.com/cbegin/polysynth-go/internal/synth"

// Poly gives each held key its own voices. When the synthesizer is full it
// kills the oldest released voice first and then the oldest held key.
type Poly struct {
	base
	keys  map[int][]synth.Handle
	order []int // held keys, oldest first
}

var _ Allocator = (*Poly)(nil)

func NewPoly(v Voicer, build NoteFunc, opts ...Option) *Poly {
	return &Poly{
		base: newBase(v, build, opts),
		keys: make(map[int][]synth.Handle),
	}
}

// NoteOn presses id. Pressing a key that is already held releases its old
// voices and presses fresh ones; at capacity the key's own old voices make
// room before any other key is stolen.
func (p *Poly) NoteOn(id, velocity int) error {
	ns, err := p.notes(id, velocity)
	if err != nil {
		return err
	}
	old, held := p.keys[id]
	if held {
		p.forget(id)
	}
	if need := len(ns) - len(old); !p.stealReleased(need) {
		p.stealHeld(need)
	}
	hs, err := p.v.ReleaseThenPress(old, ns)
	if err != nil {
		if held {
			p.keys[id] = old
			p.order = append(p.order, id)
		}
		return err
	}
	p.released = append(p.released, old...)
	p.keys[id] = hs
	p.order = append(p.order, id)
	return nil
}

func (p *Poly) stealHeld(n int) {
	for p.overflow(n) > 0 && len(p.order) > 0 {
		key := p.order[0]
		hs := p.keys[key]
		p.forget(key)
		p.v.Kill(hs...)
		p.log.Debug("stole held key", "key", key, "voices", len(hs))
	}
}

// NoteOff releases id. Keys that are not held are ignored.
func (p *Poly) NoteOff(id int) {
	hs, ok := p.keys[id]
	if !ok {
		return
	}
	p.v.Release(hs...)
	p.released = append(p.released, hs...)
	p.forget(id)
}

func (p *Poly) AllNotesOff() {
	for len(p.order) > 0 {
		p.NoteOff(p.order[0])
	}
}

// Held returns the held keys, oldest first.
func (p *Poly) Held() []int {
	return append([]int(nil), p.order...)
}

// Handles returns the voices pressed for key id.
func (p *Poly) Handles(id int) []synth.Handle {
	return append([]synth.Handle(nil), p.keys[id]...)
}

func (p *Poly) forget(id int) {
	delete(p.keys, id)
	for i, k := range p.order {
		if k == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			return
		}
	}
}
