package synth

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"

	"github.com/cbegin/polysynth-go/internal/envelope"
	"github.com/cbegin/polysynth-go/internal/filter"
	"github.com/cbegin/polysynth-go/internal/lfo"
	"github.com/cbegin/polysynth-go/internal/wavetable"
)

var (
	// ErrNoFreeVoice is returned by the press operations when they would
	// exceed MaxVoices. Allocators steal a voice and retry.
	ErrNoFreeVoice = errors.New("synth: no free voice")
	ErrBadConfig   = errors.New("synth: bad config")
)

// Handle identifies a pressed voice. Handles are never reused.
type Handle uint64

// PostMixer processes the interleaved float mix before it is quantized.
type PostMixer interface {
	Process(buf []float64, channels int)
}

// Config sizes a Synthesizer.
type Config struct {
	SampleRate int
	Channels   int // 1 or 2
	BlockSize  int // frames per RenderBlock
	MaxVoices  int
	Effects    PostMixer
	Logger     *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		SampleRate: 48000,
		Channels:   2,
		BlockSize:  512,
		MaxVoices:  32,
	}
}

func (c Config) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrBadConfig, c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("%w: %d channels (want 1 or 2)", ErrBadConfig, c.Channels)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("%w: block size %d", ErrBadConfig, c.BlockSize)
	}
	if c.MaxVoices <= 0 {
		return fmt.Errorf("%w: max voices %d", ErrBadConfig, c.MaxVoices)
	}
	return nil
}

var defaultWave = wavetable.Square(wavetable.DefaultSize, wavetable.MaxAmplitude)

type voice struct {
	h       Handle
	note    Note
	env     envelope.Envelope
	phase   float64 // read position in note.Waveform samples
	coeffs  filter.Coeffs
	fstate  filter.State
	killing bool
}

type lfoEntry struct {
	l     *lfo.LFO
	every bool   // advanced every block, referenced or not
	tick  uint64 // block in which it was last advanced
}

// Synthesizer mixes active voices into fixed-size blocks. It is not safe
// for concurrent use: press/release/modify calls must happen between
// RenderBlock calls.
type Synthesizer struct {
	cfg        Config
	dt         float64
	log        *slog.Logger
	voices     []*voice
	byHandle   map[Handle]*voice
	nextHandle Handle
	lfos       map[ModID]*lfoEntry
	lfoOrder   []ModID
	nextMod    ModID
	tick       uint64
	scratch    []float64
	mix        []float64
	out        []int16
}

// New creates a Synthesizer with no voices.
func New(cfg Config) (*Synthesizer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Synthesizer{
		cfg:      cfg,
		dt:       float64(cfg.BlockSize) / float64(cfg.SampleRate),
		log:      logger,
		byHandle: make(map[Handle]*voice),
		lfos:     make(map[ModID]*lfoEntry),
		scratch:  make([]float64, cfg.BlockSize),
		mix:      make([]float64, cfg.BlockSize*cfg.Channels),
		out:      make([]int16, cfg.BlockSize*cfg.Channels),
	}, nil
}

func (s *Synthesizer) SampleRate() int         { return s.cfg.SampleRate }
func (s *Synthesizer) Channels() int           { return s.cfg.Channels }
func (s *Synthesizer) BlockSize() int          { return s.cfg.BlockSize }
func (s *Synthesizer) MaxVoices() int          { return s.cfg.MaxVoices }
func (s *Synthesizer) BlockDuration() float64  { return s.dt }
func (s *Synthesizer) SetEffects(fx PostMixer) { s.cfg.Effects = fx }

// AddLFO registers l as a modulation source. It is advanced once per block
// while at least one active voice references it.
func (s *Synthesizer) AddLFO(l *lfo.LFO) ModID {
	return s.addLFO(l, false)
}

// AddGlobalLFO registers l and advances it every block whether or not a
// voice references it. Use it for LFOs read outside the synthesizer, such
// as one driving a filter cutoff or a wavetable scan position.
func (s *Synthesizer) AddGlobalLFO(l *lfo.LFO) ModID {
	return s.addLFO(l, true)
}

func (s *Synthesizer) addLFO(l *lfo.LFO, every bool) ModID {
	s.nextMod++
	id := s.nextMod
	s.lfos[id] = &lfoEntry{l: l, every: every}
	s.lfoOrder = append(s.lfoOrder, id)
	return id
}

// RemoveLFO unregisters id. Mods still naming it fall back to their Value.
func (s *Synthesizer) RemoveLFO(id ModID) {
	if _, ok := s.lfos[id]; !ok {
		return
	}
	delete(s.lfos, id)
	for i, other := range s.lfoOrder {
		if other == id {
			s.lfoOrder = append(s.lfoOrder[:i], s.lfoOrder[i+1:]...)
			break
		}
	}
}

// LFO returns the source registered under id, or nil.
func (s *Synthesizer) LFO(id ModID) *lfo.LFO {
	if e := s.lfos[id]; e != nil {
		return e.l
	}
	return nil
}

// Press adds one voice and triggers its envelope.
func (s *Synthesizer) Press(n Note) (Handle, error) {
	hs, err := s.PressAll([]Note{n})
	if err != nil {
		return 0, err
	}
	return hs[0], nil
}

// PressAll adds every note or, if that would exceed MaxVoices, none.
func (s *Synthesizer) PressAll(ns []Note) ([]Handle, error) {
	if s.Live()+len(ns) > s.cfg.MaxVoices {
		s.log.Warn("press rejected", "notes", len(ns), "live", s.Live(), "max", s.cfg.MaxVoices)
		return nil, ErrNoFreeVoice
	}
	hs := make([]Handle, len(ns))
	for i, n := range ns {
		hs[i] = s.add(n)
	}
	return hs, nil
}

func (s *Synthesizer) add(n Note) Handle {
	if n.Frequency < 0 || math.IsNaN(n.Frequency) {
		n.Frequency = 0
	}
	s.nextHandle++
	v := &voice{
		h:    s.nextHandle,
		note: n,
		env:  envelope.New(n.Envelope),
	}
	v.env.Trigger()
	s.voices = append(s.voices, v)
	s.byHandle[v.h] = v
	return v.h
}

// Release starts the release stage of each voice. Unknown or already
// removed handles are ignored.
func (s *Synthesizer) Release(hs ...Handle) {
	for _, h := range hs {
		if v := s.byHandle[h]; v != nil {
			v.env.Release()
		}
	}
}

// ReleaseAll releases every active voice.
func (s *Synthesizer) ReleaseAll() {
	for _, v := range s.voices {
		v.env.Release()
	}
}

// ReleaseThenPress releases old and presses ns as one step: when the next
// block renders, every old voice is in Release and every new voice is in
// Attack. If the new voices would not fit, old voices are killed instead of
// released, in order, until they do. Nothing changes if even that is not
// enough.
func (s *Synthesizer) ReleaseThenPress(old []Handle, ns []Note) ([]Handle, error) {
	over := s.Live() + len(ns) - s.cfg.MaxVoices
	var victims []Handle
	for _, h := range old {
		if over <= 0 {
			break
		}
		if v := s.byHandle[h]; v != nil && !v.killing && !slices.Contains(victims, h) {
			victims = append(victims, h)
			over--
		}
	}
	if over > 0 {
		s.log.Warn("swap rejected", "notes", len(ns), "live", s.Live(), "max", s.cfg.MaxVoices)
		return nil, ErrNoFreeVoice
	}
	s.Kill(victims...)
	s.Release(old...)
	return s.PressAll(ns)
}

// ReleaseAllThenPress releases every active voice and presses ns, killing
// the oldest voices when the synthesizer is full.
func (s *Synthesizer) ReleaseAllThenPress(ns []Note) ([]Handle, error) {
	return s.ReleaseThenPress(s.Handles(), ns)
}

// Kill fades each voice to silence over the next block and then removes
// it. Killed voices no longer count against MaxVoices.
func (s *Synthesizer) Kill(hs ...Handle) {
	for _, h := range hs {
		if v := s.byHandle[h]; v != nil && !v.killing {
			v.killing = true
			s.log.Debug("voice killed", "handle", h, "stage", v.env.Stage())
		}
	}
}

// Modify lets fn change a sounding voice's note between blocks: frequency,
// waveform, filter and modulation take effect on the next block; envelope
// params only apply to later presses. It reports whether h is active.
func (s *Synthesizer) Modify(h Handle, fn func(*Note)) bool {
	v := s.byHandle[h]
	if v == nil {
		return false
	}
	fn(&v.note)
	if v.note.Frequency < 0 || math.IsNaN(v.note.Frequency) {
		v.note.Frequency = 0
	}
	if n := float64(len(v.waveform())); v.phase >= n {
		v.phase = math.Mod(v.phase, n)
	}
	return true
}

// Active reports whether h is still in the active set.
func (s *Synthesizer) Active(h Handle) bool {
	_, ok := s.byHandle[h]
	return ok
}

// Stage returns the envelope stage of h.
func (s *Synthesizer) Stage(h Handle) (envelope.Stage, bool) {
	if v := s.byHandle[h]; v != nil {
		return v.env.Stage(), true
	}
	return envelope.Idle, false
}

// Level returns the envelope level of h.
func (s *Synthesizer) Level(h Handle) (float64, bool) {
	if v := s.byHandle[h]; v != nil {
		return v.env.Level(), true
	}
	return 0, false
}

// Note returns a copy of the note h plays.
func (s *Synthesizer) Note(h Handle) (Note, bool) {
	if v := s.byHandle[h]; v != nil {
		return v.note, true
	}
	return Note{}, false
}

// Len is the number of voices in the active set, including fading ones.
func (s *Synthesizer) Len() int { return len(s.voices) }

// Live is the number of voices counted against MaxVoices.
func (s *Synthesizer) Live() int {
	n := 0
	for _, v := range s.voices {
		if !v.killing {
			n++
		}
	}
	return n
}

// Handles lists active voices in press order.
func (s *Synthesizer) Handles() []Handle {
	hs := make([]Handle, len(s.voices))
	for i, v := range s.voices {
		hs[i] = v.h
	}
	return hs
}

// RenderBlock renders the next BlockSize frames as interleaved signed
// 16-bit samples. The returned slice is reused by the next call.
func (s *Synthesizer) RenderBlock() []int16 {
	s.tick++
	for _, id := range s.lfoOrder {
		if s.lfos[id].every {
			s.advanceLFO(id)
		}
	}
	for i := range s.mix {
		s.mix[i] = 0
	}
	for _, v := range s.voices {
		s.renderVoice(v)
	}
	if s.cfg.Effects != nil {
		s.cfg.Effects.Process(s.mix, s.cfg.Channels)
	}
	for i, x := range s.mix {
		s.out[i] = quantize(x)
	}
	s.sweep()
	return s.out
}

func (s *Synthesizer) advanceLFO(id ModID) {
	e := s.lfos[id]
	if e == nil || e.tick == s.tick {
		return
	}
	e.l.Advance(s.dt)
	e.tick = s.tick
}

func (s *Synthesizer) value(m Mod) float64 {
	if m.Source != 0 {
		if e := s.lfos[m.Source]; e != nil {
			return e.l.Value()
		}
	}
	return m.Value
}

// gain reads an amplitude Mod, which is unity when unset or orphaned.
func (s *Synthesizer) gain(m *Mod) float64 {
	switch {
	case m == nil:
		return 1
	case m.Source == 0:
		return m.Value
	}
	if e := s.lfos[m.Source]; e != nil {
		return e.l.Value()
	}
	return 1
}

func (v *voice) waveform() wavetable.Waveform {
	if len(v.note.Waveform) == 0 {
		return defaultWave
	}
	return v.note.Waveform
}

func (s *Synthesizer) renderVoice(v *voice) {
	n := &v.note
	s.advanceLFO(n.Bend.Source)
	if n.Amplitude != nil {
		s.advanceLFO(n.Amplitude.Source)
	}
	s.advanceLFO(n.Panning.Source)
	if n.Filter != nil {
		s.advanceLFO(n.Filter.CutoffMod.Source)
	}

	startLevel := v.env.Level()
	endLevel := v.env.Advance(s.dt)
	if v.killing {
		endLevel = 0
	}
	amp := s.gain(n.Amplitude)

	w := v.waveform()
	wl := float64(len(w))
	freq := n.Frequency * math.Exp2(s.value(n.Bend))
	inc := freq * wl / float64(s.cfg.SampleRate)

	buf := s.scratch
	phase := v.phase
	for i := range buf {
		buf[i] = wavetable.At(w, phase)
		phase += inc
		if phase >= wl {
			phase -= wl
			if phase >= wl {
				phase = math.Mod(phase, wl)
			}
		}
	}
	v.phase = phase

	if f := n.Filter; f != nil {
		v.coeffs.Set(f.Mode, f.Cutoff+s.value(f.CutoffMod), f.Q, float64(s.cfg.SampleRate))
		v.fstate.Process(&v.coeffs, buf)
	}

	// the envelope ramps across the block so the last frame lands exactly
	// on endLevel; a killed or finished voice ends on a zero sample
	frames := float64(len(buf))
	step := (endLevel - startLevel) / frames
	if s.cfg.Channels == 1 {
		for i, x := range buf {
			g := (startLevel + step*float64(i+1)) * amp
			s.mix[i] += x * g
		}
		return
	}
	pan := clamp(s.value(n.Panning), -1, 1)
	left := math.Min(1, 1-pan)
	right := math.Min(1, 1+pan)
	for i, x := range buf {
		g := (startLevel + step*float64(i+1)) * amp
		s.mix[2*i] += x * g * left
		s.mix[2*i+1] += x * g * right
	}
}

// sweep drops voices that finished their release or were killed.
func (s *Synthesizer) sweep() {
	kept := s.voices[:0]
	for _, v := range s.voices {
		if v.killing || v.env.Idle() {
			delete(s.byHandle, v.h)
			s.log.Debug("voice removed", "handle", v.h, "killed", v.killing)
			continue
		}
		kept = append(kept, v)
	}
	for i := len(kept); i < len(s.voices); i++ {
		s.voices[i] = nil
	}
	s.voices = kept
}

func quantize(x float64) int16 {
	x = math.Round(x)
	if x > math.MaxInt16 {
		return math.MaxInt16
	}
	if x < math.MinInt16 {
		return math.MinInt16
	}
	return int16(x)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
