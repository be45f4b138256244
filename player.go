package polysynth

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	intaudio "github.com/cbegin/polysynth-go/internal/audio"
	intfx "github.com/cbegin/polysynth-go/internal/effects"
	intsynth "github.com/cbegin/polysynth-go/internal/synth"
)

type PlayerOption func(*playerConfig)

type playerConfig struct {
	synth     intsynth.Config
	params    InstrumentParams
	instOpts  []InstrumentOption
	effects   []func(sampleRate int) intfx.Effect
	buffer    time.Duration
	sampleTap func([]int16)
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{
		synth:  intsynth.DefaultConfig(),
		params: DefaultInstrumentParams(),
	}
}

func WithSampleRate(hz int) PlayerOption {
	return func(cfg *playerConfig) { cfg.synth.SampleRate = hz }
}

// WithBlockSize sets frames per render block. Control changes take effect
// at block boundaries, so smaller blocks respond faster.
func WithBlockSize(frames int) PlayerOption {
	return func(cfg *playerConfig) { cfg.synth.BlockSize = frames }
}

func WithChannels(n int) PlayerOption {
	return func(cfg *playerConfig) { cfg.synth.Channels = n }
}

func WithMaxVoices(n int) PlayerOption {
	return func(cfg *playerConfig) { cfg.synth.MaxVoices = n }
}

func WithLogger(l *slog.Logger) PlayerOption {
	return func(cfg *playerConfig) { cfg.synth.Logger = l }
}

// WithEffects runs the mix through effects, in order, before quantizing.
func WithEffects(effects ...intfx.Effect) PlayerOption {
	return func(cfg *playerConfig) {
		for _, e := range effects {
			e := e
			cfg.effects = append(cfg.effects, func(int) intfx.Effect { return e })
		}
	}
}

// WithDelay adds a stereo echo of delaySec. cross sends part of the
// feedback to the opposite side.
func WithDelay(delaySec, feedback, cross, wet float64) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.effects = append(cfg.effects, func(sr int) intfx.Effect {
			return intfx.NewDelay(sr, delaySec, feedback, cross, wet)
		})
	}
}

// WithChorus adds a chorus swept at rateHz. The delay and depth are the
// usual 20 ms and 5 ms.
func WithChorus(rateHz, wet float64) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.effects = append(cfg.effects, func(sr int) intfx.Effect {
			return intfx.NewChorus(sr, 0.02, 0.005, rateHz, 0.2, wet)
		})
	}
}

// WithReverb adds a reverb; room and decay run 0 to 1.
func WithReverb(room, decay, wet float64) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.effects = append(cfg.effects, func(sr int) intfx.Effect {
			return intfx.NewReverb(sr, room, decay, wet)
		})
	}
}

// WithDrive adds tanh saturation with the given input gain.
func WithDrive(gain float64) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.effects = append(cfg.effects, func(int) intfx.Effect { return intfx.NewDrive(gain, 0) })
	}
}

// WithInstrument sets the patch and instrument options.
func WithInstrument(p InstrumentParams, opts ...InstrumentOption) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.params = p
		cfg.instOpts = opts
	}
}

// WithBufferSize sets the audio device buffer length.
func WithBufferSize(d time.Duration) PlayerOption {
	return func(cfg *playerConfig) { cfg.buffer = d }
}

// WithSampleTap installs a callback invoked with each rendered block.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]int16)) PlayerOption {
	return func(cfg *playerConfig) { cfg.sampleTap = tap }
}

// newInstrument builds the synthesizer and instrument described by cfg.
func newInstrument(cfg playerConfig) (*Instrument, error) {
	sc := cfg.synth
	if len(cfg.effects) > 0 {
		chain := intfx.NewChain()
		for _, build := range cfg.effects {
			chain.Add(build(sc.SampleRate))
		}
		sc.Effects = chain
	}
	s, err := intsynth.New(sc)
	if err != nil {
		return nil, err
	}
	opts := cfg.instOpts
	if sc.Logger != nil {
		opts = append([]InstrumentOption{WithInstrumentLogger(sc.Logger)}, opts...)
	}
	return NewInstrument(s, cfg.params, opts...), nil
}

// Player plays an Instrument in real time. Its event methods may be called
// from any goroutine, such as a MIDI listener; they take effect at the next
// block boundary.
type Player struct {
	mu        sync.Mutex
	inst      *Instrument
	audio     *intaudio.Player
	buffer    time.Duration
	sampleTap func([]int16)
}

func NewPlayer(opts ...PlayerOption) (*Player, error) {
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	inst, err := newInstrument(cfg)
	if err != nil {
		return nil, err
	}
	return &Player{inst: inst, buffer: cfg.buffer, sampleTap: cfg.sampleTap}, nil
}

// Start opens the audio device and begins playback.
func (p *Player) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		return errors.New("player already started")
	}
	backend, err := intaudio.NewPlayer(p.inst.Synth().SampleRate(), blockSource{p}, p.buffer)
	if err != nil {
		return fmt.Errorf("start audio: %w", err)
	}
	p.audio = backend
	p.audio.Play()
	return nil
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Pause()
	}
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Play()
	}
}

func (p *Player) Stop() error {
	p.mu.Lock()
	a := p.audio
	p.audio = nil
	p.mu.Unlock()
	if a == nil {
		return nil
	}
	return a.Stop()
}

// Position reports how much audio has been heard since Start.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio == nil {
		return 0
	}
	return p.audio.Position()
}

func (p *Player) OnNoteOn(id, velocity int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inst.OnNoteOn(id, velocity)
}

func (p *Player) OnNoteOff(id, velocity int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inst.OnNoteOff(id, velocity)
}

func (p *Player) OnControlChange(ctl, value int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inst.OnControlChange(ctl, value)
}

func (p *Player) AllNotesOff() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inst.AllNotesOff()
}

// Do runs fn with exclusive access to the instrument, between blocks.
func (p *Player) Do(fn func(*Instrument)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.inst)
}

// renderBlock is what the audio thread pulls.
func (p *Player) renderBlock() []int16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.inst.RenderBlock()
	if p.sampleTap != nil {
		p.sampleTap(out)
	}
	return out
}

// blockSource keeps RenderBlock off Player's exported API.
type blockSource struct{ p *Player }

func (b blockSource) RenderBlock() []int16 { return b.p.renderBlock() }
func (b blockSource) Channels() int        { return b.p.inst.Channels() }
