package alloc

import "github.com/cbegin/polysynth-go/internal/synth"

// Mono plays the most recent key only. Pressing a new key releases the
// current key's voices and presses the new ones in one step, so two keys
// never sustain together. Releasing a key that was already replaced does
// nothing.
type Mono struct {
	base
	key  int
	held []synth.Handle
	on   bool
}

var _ Allocator = (*Mono)(nil)

func NewMono(v Voicer, build NoteFunc, opts ...Option) *Mono {
	return &Mono{base: newBase(v, build, opts)}
}

func (m *Mono) NoteOn(id, velocity int) error {
	ns, err := m.notes(id, velocity)
	if err != nil {
		return err
	}
	// released voices go first; past that the swap kills the outgoing key
	m.stealReleased(len(ns) - len(m.held))
	hs, err := m.v.ReleaseThenPress(m.held, ns)
	if err != nil {
		return err
	}
	m.released = append(m.released, m.held...)
	m.key, m.held, m.on = id, hs, true
	return nil
}

func (m *Mono) NoteOff(id int) {
	if !m.on || id != m.key {
		return
	}
	m.v.Release(m.held...)
	m.released = append(m.released, m.held...)
	m.held, m.on = nil, false
}

func (m *Mono) AllNotesOff() {
	if m.on {
		m.NoteOff(m.key)
	}
}

// Held returns the sounding key, if any.
func (m *Mono) Held() []int {
	if !m.on {
		return nil
	}
	return []int{m.key}
}

// Handles returns the voices of the sounding key.
func (m *Mono) Handles() []synth.Handle {
	return append([]synth.Handle(nil), m.held...)
}
