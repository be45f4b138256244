package polysynth

import (
	"io"
	"log/slog"

	"github.com/cbegin/polysynth-go/internal/alloc"
	"github.com/cbegin/polysynth-go/internal/arp"
	"github.com/cbegin/polysynth-go/internal/envelope"
	"github.com/cbegin/polysynth-go/internal/filter"
	"github.com/cbegin/polysynth-go/internal/lfo"
	"github.com/cbegin/polysynth-go/internal/synth"
	"github.com/cbegin/polysynth-go/internal/wavetable"
)

// MIDI controllers the instrument responds to.
const (
	CCModWheel    = 1
	CCRelease2    = 18
	CCResonance   = 71
	CCRelease     = 72
	CCCutoff      = 74
	CCDetune      = 93
	CCAllNotesOff = 123
)

// Controller ranges: each CC sweeps its parameter linearly across 0..127.
const (
	VibratoMax   = 0.1 // octaves
	CutoffMin    = 100.0
	CutoffMax    = 4500.0
	ResonanceMin = 0.5
	ResonanceMax = 2.0
	ReleaseMin   = 0.1
	ReleaseMax   = 1.0
	DetuneMax    = 0.01
)

// MapRange maps s from [a1, a2] onto [b1, b2] without clamping.
func MapRange(s, a1, a2, b1, b2 float64) float64 {
	return b1 + (s-a1)*(b2-b1)/(a2-a1)
}

// InstrumentParams is the patch: how each key press is voiced.
type InstrumentParams struct {
	Mono         bool
	OscsPerNote  int     // detuned oscillators per key
	Detune       float64 // oscillator i plays at f*(1+Detune*i)
	Waveform     wavetable.Waveform
	AttackTime   float64
	DecayTime    float64
	ReleaseTime  float64
	SustainRatio float64 // sustain level as a fraction of the velocity level
	FilterMode   filter.Mode
	Cutoff       float64
	Resonance    float64
	VibratoRate  float64 // Hz
	VibratoDepth float64 // octaves
}

// DefaultInstrumentParams is a three-oscillator detuned saw through a
// lowpass filter.
func DefaultInstrumentParams() InstrumentParams {
	return InstrumentParams{
		OscsPerNote:  3,
		Detune:       0.001,
		Waveform:     wavetable.Linspace(28000, -28000, wavetable.DefaultSize),
		AttackTime:   0.1,
		DecayTime:    0.05,
		ReleaseTime:  0.8,
		SustainRatio: 0.8,
		FilterMode:   filter.LowPass,
		Cutoff:       2000,
		Resonance:    1.0,
		VibratoRate:  5,
		VibratoDepth: 0.01,
	}
}

// Instrument turns note and controller events into synthesizer voices. It
// is not safe for concurrent use; Player serializes access to it.
type Instrument struct {
	s     *synth.Synthesizer
	alloc alloc.Allocator
	p     InstrumentParams
	log   *slog.Logger

	// one filter spec shared by every voice, so controller moves reach
	// notes that are already sounding
	filter *synth.FilterSpec

	vibrato   *lfo.LFO
	vibratoID synth.ModID

	table *wavetable.Wavetable
	scan  *lfo.LFO

	filterLFO *lfo.LFO
	sweep     *lfo.LFO

	arp     *arp.Arp
	arpKey  int
	arpHeld bool
	arpVel  int
}

// InstrumentOption configures an Instrument.
type InstrumentOption func(*Instrument)

// WithWavetable plays t's current frame instead of the patch waveform and
// sweeps its position between minPos and maxPos with a triangle LFO at
// rateHz.
func WithWavetable(t *wavetable.Wavetable, minPos, maxPos, rateHz float64) InstrumentOption {
	return func(i *Instrument) {
		i.table = t
		i.scan = lfo.New(rateHz,
			lfo.WithWaveform(wavetable.Waveform{0, wavetable.MaxAmplitude}),
			lfo.WithScale(maxPos-minPos),
			lfo.WithOffset(minPos),
		)
	}
}

// WithFilterLFO sweeps the cutoff by scale Hz around offset Hz added to the
// patch cutoff.
func WithFilterLFO(rateHz, scale, offset float64) InstrumentOption {
	return func(i *Instrument) {
		i.filterLFO = lfo.New(rateHz, lfo.WithShape(lfo.ShapeSine), lfo.WithScale(scale), lfo.WithOffset(offset))
	}
}

// WithPitchSweep bends every new note along w, a one-shot shape such as
// wavetable.RampDown, over seconds. The bend spans octaves and settles on
// the note's pitch where w ends.
func WithPitchSweep(w wavetable.Waveform, seconds, octaves float64) InstrumentOption {
	return func(i *Instrument) {
		if len(w) == 0 || seconds <= 0 {
			return
		}
		end := float64(w[len(w)-1]) / wavetable.MaxAmplitude
		i.sweep = lfo.New(1/seconds,
			lfo.WithWaveform(w),
			lfo.WithOnce(true),
			lfo.WithScale(octaves/2),
			lfo.WithOffset(-end*octaves/2),
		)
	}
}

// WithArpeggiator holds a key down as the arpeggio root instead of playing
// it directly.
func WithArpeggiator(opts ...arp.Option) InstrumentOption {
	return func(i *Instrument) {
		opts = append([]arp.Option{arp.WithLogger(i.log)}, opts...)
		i.arp = arp.New(i.arpNoteOn, i.arpNoteOff, opts...)
	}
}

func WithInstrumentLogger(l *slog.Logger) InstrumentOption {
	return func(i *Instrument) {
		if l != nil {
			i.log = l
		}
	}
}

// NewInstrument wires an instrument to s. Its LFOs are registered with s.
func NewInstrument(s *synth.Synthesizer, p InstrumentParams, opts ...InstrumentOption) *Instrument {
	if p.OscsPerNote < 1 {
		p.OscsPerNote = 1
	}
	if p.SustainRatio < 0 || p.SustainRatio > 1 {
		p.SustainRatio = 0.8
	}
	i := &Instrument{
		s:      s,
		p:      p,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		filter: &synth.FilterSpec{Mode: p.FilterMode, Cutoff: p.Cutoff, Q: p.Resonance},
	}
	for _, opt := range opts {
		opt(i)
	}
	i.vibrato = lfo.New(p.VibratoRate, lfo.WithScale(p.VibratoDepth))
	i.vibratoID = s.AddLFO(i.vibrato)
	if i.scan != nil {
		s.AddGlobalLFO(i.scan)
	}
	if i.sweep != nil {
		s.AddGlobalLFO(i.sweep)
	}
	if i.filterLFO != nil {
		i.filter.CutoffMod = synth.From(s.AddGlobalLFO(i.filterLFO))
	}
	if p.Mono {
		i.alloc = alloc.NewMono(s, i.voices, alloc.WithLogger(i.log))
	} else {
		i.alloc = alloc.NewPoly(s, i.voices, alloc.WithLogger(i.log))
	}
	return i
}

// voices builds the oscillator stack for one key.
func (i *Instrument) voices(id, velocity int) []synth.Note {
	level := MapRange(float64(velocity), 0, 127, 0, 1)
	env := envelope.Params{
		AttackTime:   i.p.AttackTime,
		DecayTime:    i.p.DecayTime,
		ReleaseTime:  i.p.ReleaseTime,
		AttackLevel:  level,
		SustainLevel: level * i.p.SustainRatio,
	}.Sanitize()
	w := i.p.Waveform
	if i.table != nil {
		w = i.table.Current()
	}
	f := synth.MidiToHz(float64(id))
	ns := make([]synth.Note, i.p.OscsPerNote)
	for k := range ns {
		n := synth.NewNote(f*(1+i.p.Detune*float64(k)), w)
		n.Envelope = env
		n.Filter = i.filter
		n.Bend = synth.From(i.vibratoID)
		ns[k] = n
	}
	return ns
}

func (i *Instrument) OnNoteOn(id, velocity int) {
	if velocity == 0 {
		i.OnNoteOff(id, 0)
		return
	}
	if i.arp != nil {
		i.arpKey, i.arpHeld, i.arpVel = id, true, velocity
		i.arp.SetRoot(id)
		if !i.arp.Enabled() {
			i.arp.On()
		}
		return
	}
	i.retriggerSweep()
	if err := i.alloc.NoteOn(id, velocity); err != nil {
		i.log.Warn("note dropped", "key", id, "err", err)
	}
}

func (i *Instrument) retriggerSweep() {
	if i.sweep != nil {
		i.sweep.Retrigger()
		i.vibrato.SetOffset(i.sweep.Value())
	}
}

// OnNoteOff releases id. Keys that are not sounding are ignored.
func (i *Instrument) OnNoteOff(id, velocity int) {
	if i.arp != nil {
		if i.arpHeld && id == i.arpKey {
			i.arpHeld = false
			i.arp.Off()
		}
		return
	}
	i.alloc.NoteOff(id)
}

func (i *Instrument) arpNoteOn(note int) {
	i.retriggerSweep()
	if err := i.alloc.NoteOn(note, i.arpVel); err != nil {
		i.log.Warn("arp note dropped", "key", note, "err", err)
	}
}

func (i *Instrument) arpNoteOff(note int) { i.alloc.NoteOff(note) }

func (i *Instrument) OnControlChange(ctl, value int) {
	v := float64(value)
	switch ctl {
	case CCModWheel:
		i.vibrato.SetScale(MapRange(v, 0, 127, 0, VibratoMax))
	case CCCutoff:
		i.p.Cutoff = MapRange(v, 0, 127, CutoffMin, CutoffMax)
		i.filter.Cutoff = i.p.Cutoff
	case CCResonance:
		i.p.Resonance = MapRange(v, 0, 127, ResonanceMin, ResonanceMax)
		i.filter.Q = i.p.Resonance
	case CCRelease, CCRelease2:
		i.p.ReleaseTime = MapRange(v, 0, 127, ReleaseMin, ReleaseMax)
	case CCDetune:
		i.p.Detune = MapRange(v, 0, 127, 0, DetuneMax)
	case CCAllNotesOff:
		i.AllNotesOff()
	default:
		i.log.Debug("unmapped controller", "ctl", ctl, "value", value)
	}
}

// AllNotesOff releases every held key and stops the arpeggio.
func (i *Instrument) AllNotesOff() {
	if i.arp != nil {
		i.arpHeld = false
		i.arp.Off()
	}
	i.alloc.AllNotesOff()
}

// Tick runs the control-rate work due before the next block: the
// arpeggiator clock, the pitch sweep and the wavetable scan.
func (i *Instrument) Tick() {
	if i.arp != nil {
		i.arp.Advance(i.s.BlockDuration())
	}
	if i.sweep != nil {
		i.vibrato.SetOffset(i.sweep.Value())
	}
	if i.table != nil {
		i.table.SetPosition(i.scan.Value())
	}
}

// RenderBlock ticks the instrument and renders one block.
func (i *Instrument) RenderBlock() []int16 {
	i.Tick()
	return i.s.RenderBlock()
}

func (i *Instrument) Channels() int { return i.s.Channels() }

func (i *Instrument) Params() InstrumentParams        { return i.p }
func (i *Instrument) Synth() *synth.Synthesizer       { return i.s }
func (i *Instrument) Wavetable() *wavetable.Wavetable { return i.table }
func (i *Instrument) Arp() *arp.Arp                   { return i.arp }
func (i *Instrument) Bend() float64                   { return i.vibrato.Value() }
func (i *Instrument) Held() []int                     { return i.alloc.Held() }
