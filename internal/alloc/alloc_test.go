package alloc

import (
	"errors"
	"testing"

	"github.com/cbegin/polysynth-go/internal/envelope"
	"github.com/cbegin/polysynth-go/internal/synth"
)

func newSynth(t *testing.T, maxVoices int) *synth.Synthesizer {
	t.Helper()
	s, err := synth.New(synth.Config{SampleRate: 48000, Channels: 1, BlockSize: 256, MaxVoices: maxVoices})
	if err != nil {
		t.Fatalf("new synth: %v", err)
	}
	return s
}

// stack returns a NoteFunc pressing n oscillators per key with a long
// release, so released voices linger.
func stack(n int) NoteFunc {
	return func(id, velocity int) []synth.Note {
		ns := make([]synth.Note, n)
		for i := range ns {
			ns[i] = synth.NewNote(synth.MidiToHz(float64(id)), nil)
			ns[i].Envelope = envelope.Params{AttackTime: 0.01, AttackLevel: 1, SustainLevel: 1, ReleaseTime: 1}
		}
		return ns
	}
}

func stages(s *synth.Synthesizer, hs []synth.Handle) []envelope.Stage {
	out := make([]envelope.Stage, len(hs))
	for i, h := range hs {
		out[i], _ = s.Stage(h)
	}
	return out
}

func TestMonoReplacedKeyOffIsIgnored(t *testing.T) {
	s := newSynth(t, 8)
	m := NewMono(s, stack(3))
	if err := m.NoteOn(60, 100); err != nil {
		t.Fatalf("note on 60: %v", err)
	}
	first := m.Handles()
	s.RenderBlock()
	if err := m.NoteOn(64, 100); err != nil {
		t.Fatalf("note on 64: %v", err)
	}
	second := m.Handles()
	for i, st := range stages(s, first) {
		if st != envelope.Release {
			t.Errorf("key 60 voice %d stage = %v, want release", i, st)
		}
	}
	m.NoteOff(60)
	for i, st := range stages(s, second) {
		if st == envelope.Release {
			t.Errorf("note off for replaced key released key 64 voice %d", i)
		}
	}
	if got := m.Held(); len(got) != 1 || got[0] != 64 {
		t.Errorf("held = %v, want [64]", got)
	}
	m.NoteOff(64)
	for i, st := range stages(s, second) {
		if st != envelope.Release {
			t.Errorf("key 64 voice %d stage = %v after note off", i, st)
		}
	}
	if m.Held() != nil {
		t.Errorf("held = %v after note off", m.Held())
	}
}

func TestMonoNeverSustainsTwoKeys(t *testing.T) {
	s := newSynth(t, 8)
	m := NewMono(s, stack(1))
	keys := []int{60, 62, 64, 65, 67}
	var all []synth.Handle
	for _, k := range keys {
		if err := m.NoteOn(k, 100); err != nil {
			t.Fatalf("note on %d: %v", k, err)
		}
		all = append(all, m.Handles()...)
		for b := 0; b < 4; b++ {
			s.RenderBlock()
			sustaining := 0
			for _, st := range stages(s, all) {
				if st == envelope.Sustain || st == envelope.Attack || st == envelope.Decay {
					sustaining++
				}
			}
			if sustaining > 1 {
				t.Fatalf("key %d block %d: %d keys held", k, b, sustaining)
			}
		}
	}
}

func TestMonoStealsWhenFull(t *testing.T) {
	s := newSynth(t, 3)
	m := NewMono(s, stack(3))
	if err := m.NoteOn(60, 100); err != nil {
		t.Fatalf("note on 60: %v", err)
	}
	first := m.Handles()
	if err := m.NoteOn(62, 100); err != nil {
		t.Fatalf("note on 62 with a full synth: %v", err)
	}
	if s.Live() != 3 {
		t.Errorf("live = %d, want 3", s.Live())
	}
	s.RenderBlock()
	for _, h := range first {
		if s.Active(h) {
			t.Errorf("outgoing voice %d not stolen", h)
		}
	}
}

func TestPolyKeysAreIndependent(t *testing.T) {
	s := newSynth(t, 8)
	p := NewPoly(s, stack(2))
	for _, k := range []int{60, 64, 67} {
		if err := p.NoteOn(k, 100); err != nil {
			t.Fatalf("note on %d: %v", k, err)
		}
	}
	if s.Live() != 6 {
		t.Fatalf("live = %d, want 6", s.Live())
	}
	p.NoteOff(64)
	for _, st := range stages(s, p.Handles(60)) {
		if st == envelope.Release {
			t.Error("releasing 64 touched 60")
		}
	}
	if got := p.Held(); len(got) != 2 || got[0] != 60 || got[1] != 67 {
		t.Errorf("held = %v, want [60 67]", got)
	}
	p.NoteOff(99)
	p.NoteOff(64)
	if len(p.Held()) != 2 {
		t.Errorf("unknown note off changed held keys: %v", p.Held())
	}
}

func TestPolyRepressReleasesOldVoices(t *testing.T) {
	s := newSynth(t, 8)
	p := NewPoly(s, stack(1))
	if err := p.NoteOn(60, 100); err != nil {
		t.Fatal(err)
	}
	old := p.Handles(60)
	if err := p.NoteOn(60, 100); err != nil {
		t.Fatal(err)
	}
	if st, _ := s.Stage(old[0]); st != envelope.Release {
		t.Errorf("old voice stage = %v, want release", st)
	}
	if st, _ := s.Stage(p.Handles(60)[0]); st != envelope.Attack {
		t.Errorf("new voice stage = %v, want attack", st)
	}
	if len(p.Held()) != 1 {
		t.Errorf("held = %v, want one key", p.Held())
	}
}

func TestPolyRepressAtCapacityKeepsOtherKeys(t *testing.T) {
	s := newSynth(t, 2)
	p := NewPoly(s, stack(1))
	_ = p.NoteOn(60, 100)
	_ = p.NoteOn(64, 100)
	other := p.Handles(60)
	old := p.Handles(64)
	s.RenderBlock()
	if err := p.NoteOn(64, 100); err != nil {
		t.Fatalf("re-press at capacity: %v", err)
	}
	if got := p.Held(); len(got) != 2 || got[0] != 60 || got[1] != 64 {
		t.Errorf("held = %v, want [60 64]", got)
	}
	s.RenderBlock()
	if !s.Active(other[0]) {
		t.Error("re-pressing 64 stole key 60")
	}
	if s.Active(old[0]) {
		t.Error("re-pressed key's old voice should make room")
	}
}

func TestPolyStealOrder(t *testing.T) {
	t.Run("released voice first", func(t *testing.T) {
		s := newSynth(t, 2)
		p := NewPoly(s, stack(1))
		_ = p.NoteOn(60, 100)
		_ = p.NoteOn(62, 100)
		released := p.Handles(60)
		p.NoteOff(60)
		if err := p.NoteOn(64, 100); err != nil {
			t.Fatalf("note on: %v", err)
		}
		s.RenderBlock()
		if s.Active(released[0]) {
			t.Error("released voice should have been stolen")
		}
		if got := p.Held(); len(got) != 2 || got[0] != 62 || got[1] != 64 {
			t.Errorf("held = %v, want [62 64]", got)
		}
	})
	t.Run("oldest held key next", func(t *testing.T) {
		s := newSynth(t, 2)
		p := NewPoly(s, stack(1))
		_ = p.NoteOn(60, 100)
		_ = p.NoteOn(62, 100)
		oldest := p.Handles(60)
		if err := p.NoteOn(64, 100); err != nil {
			t.Fatalf("note on: %v", err)
		}
		s.RenderBlock()
		if s.Active(oldest[0]) {
			t.Error("oldest key should have been stolen")
		}
		if got := p.Held(); len(got) != 2 || got[0] != 62 || got[1] != 64 {
			t.Errorf("held = %v, want [62 64]", got)
		}
		p.NoteOff(60)
	})
}

func TestOversizedStackRejected(t *testing.T) {
	s := newSynth(t, 2)
	for name, a := range map[string]Allocator{
		"mono": NewMono(s, stack(3)),
		"poly": NewPoly(s, stack(3)),
	} {
		t.Run(name, func(t *testing.T) {
			if err := a.NoteOn(60, 100); !errors.Is(err, synth.ErrNoFreeVoice) {
				t.Errorf("err = %v, want ErrNoFreeVoice", err)
			}
			if len(a.Held()) != 0 {
				t.Errorf("held = %v", a.Held())
			}
		})
	}
}

func TestAllNotesOff(t *testing.T) {
	s := newSynth(t, 8)
	p := NewPoly(s, stack(1))
	for _, k := range []int{60, 64, 67} {
		_ = p.NoteOn(k, 100)
	}
	hs := s.Handles()
	p.AllNotesOff()
	for i, st := range stages(s, hs) {
		if st != envelope.Release {
			t.Errorf("voice %d stage = %v", i, st)
		}
	}
	if len(p.Held()) != 0 {
		t.Errorf("held = %v", p.Held())
	}
}
