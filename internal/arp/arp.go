// Package arp is a step arpeggiator. It is clocked by Advance with the
// render block duration instead of a wall clock, so arpeggios render the
// same way offline and in real time.
package arp

import (
	"fmt"
	"io"
	"log/slog"
	"math"
)

// Pattern is a named list of semitone offsets from the root note.
type Pattern struct {
	Name  string
	Steps []int
}

// Patterns are the builtin arpeggios, selectable by name or index.
var Patterns = []Pattern{
	{"major", []int{0, 4, 7, 12}},
	{"minor7th", []int{0, 3, 7, 10}},
	{"diminished", []int{0, 3, 6, 3}},
	{"suspended4th", []int{0, 5, 7, 12}},
	{"octaves", []int{0, 12, 0, -12}},
	{"octaves2", []int{0, 12, 24, -12}},
	{"octaves3", []int{0, -12, -12, 0}},
	{"root", []int{0, 0, 0, 0}},
}

const (
	DefaultRoot         = 48
	DefaultBPM          = 100
	DefaultStepsPerBeat = 2 // eighth notes
	DefaultGate         = 0.3
)

// PatternIndex looks up a builtin pattern by name.
func PatternIndex(name string) (int, bool) {
	for i, p := range Patterns {
		if p.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Arp emits note on/off callbacks for the current pattern, transposed by
// Root and by the optional per-cycle transpose.
type Arp struct {
	enabled bool
	root    int

	bpm          float64
	stepsPerBeat int
	gate         float64
	stepTime     float64
	noteDur      float64

	pattern int
	user    []int
	pos     int

	transDistance int
	transSteps    int
	transPos      int

	sinceStep float64
	playing   int
	sounding  bool

	skipped int

	noteOn  func(note int)
	noteOff func(note int)
	log     *slog.Logger
}

// Option configures an Arp.
type Option func(*Arp)

func WithRoot(note int) Option { return func(a *Arp) { a.root = note } }

// WithTempo sets beats per minute and steps per beat.
func WithTempo(bpm float64, stepsPerBeat int) Option {
	return func(a *Arp) {
		if bpm > 0 {
			a.bpm = bpm
		}
		if stepsPerBeat > 0 {
			a.stepsPerBeat = stepsPerBeat
		}
	}
}

// WithGate sets how much of each step a note sounds, in (0, 1].
// WithLogger reports steps lost to a clock coarser than the step time.
func WithLogger(l *slog.Logger) Option {
	return func(a *Arp) {
		if l != nil {
			a.log = l
		}
	}
}

func WithGate(g float64) Option { return func(a *Arp) { a.gate = clampGate(g) } }

// WithPattern selects a builtin pattern by index.
func WithPattern(i int) Option {
	return func(a *Arp) {
		if i >= 0 && i < len(Patterns) {
			a.pattern = i
		}
	}
}

// New returns a stopped arpeggiator that reports notes to noteOn and noteOff.
func New(noteOn, noteOff func(note int), opts ...Option) *Arp {
	a := &Arp{
		root:          DefaultRoot,
		bpm:           DefaultBPM,
		stepsPerBeat:  DefaultStepsPerBeat,
		gate:          DefaultGate,
		transDistance: 12,
		noteOn:        noteOn,
		noteOff:       noteOff,
		log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.retime()
	return a
}

func clampGate(g float64) float64 {
	if math.IsNaN(g) || g <= 0 {
		return DefaultGate
	}
	return math.Min(g, 1)
}

func (a *Arp) retime() {
	a.stepTime = 60 / a.bpm / float64(a.stepsPerBeat)
	a.noteDur = a.gate * a.stepTime
}

// SetTempo changes the tempo. stepsPerBeat <= 0 keeps the current value.
func (a *Arp) SetTempo(bpm float64, stepsPerBeat int) error {
	if bpm <= 0 || math.IsNaN(bpm) {
		return fmt.Errorf("arp: invalid bpm %v", bpm)
	}
	a.bpm = bpm
	if stepsPerBeat > 0 {
		a.stepsPerBeat = stepsPerBeat
	}
	a.retime()
	return nil
}

func (a *Arp) SetGate(g float64) {
	a.gate = clampGate(g)
	a.retime()
}

// SetTranspose shifts each successive cycle by distance semitones, for
// steps cycles before returning to the root.
func (a *Arp) SetTranspose(distance, steps int) {
	a.transDistance = distance
	if steps < 0 {
		steps = 0
	}
	a.transSteps = steps
	a.transPos = 0
}

// SetPattern selects a builtin pattern by name.
func (a *Arp) SetPattern(name string) error {
	i, ok := PatternIndex(name)
	if !ok {
		return fmt.Errorf("arp: unknown pattern %q", name)
	}
	a.pattern = i
	return nil
}

// Next cycles to the following builtin pattern.
func (a *Arp) Next() {
	a.pattern = (a.pattern + 1) % len(Patterns)
}

// Play replaces the builtin pattern with custom offsets. nil restores it.
func (a *Arp) Play(steps []int) {
	a.user = append([]int(nil), steps...)
	if len(a.user) == 0 {
		a.user = nil
	}
	a.pos = 0
}

func (a *Arp) SetRoot(note int) { a.root = note }

func (a *Arp) Root() int             { return a.root }
func (a *Arp) Enabled() bool         { return a.enabled }
func (a *Arp) StepTime() float64     { return a.stepTime }
func (a *Arp) NoteDuration() float64 { return a.noteDur }

// Skipped counts steps dropped because Advance was called with more than a
// step's worth of time.
func (a *Arp) Skipped() int { return a.skipped }

// PatternName reports the active pattern, "user" for custom steps.
func (a *Arp) PatternName() string {
	if a.user != nil {
		return "user"
	}
	return Patterns[a.pattern].Name
}

func (a *Arp) steps() []int {
	if a.user != nil {
		return a.user
	}
	return Patterns[a.pattern].Steps
}

// On starts the arpeggio; the first step plays on the next Advance.
func (a *Arp) On() {
	a.enabled = true
	a.sinceStep = a.stepTime
}

// Off stops the arpeggio and releases the sounding note.
func (a *Arp) Off() {
	a.enabled = false
	a.release()
	a.pos = 0
	a.transPos = 0
}

func (a *Arp) release() {
	if a.sounding {
		a.sounding = false
		a.noteOff(a.playing)
	}
}

// Advance moves the arpeggio clock forward dt seconds, firing at most one
// step per call. Further steps that fell due in the same call are skipped
// and counted by Skipped.
func (a *Arp) Advance(dt float64) {
	if !a.enabled {
		return
	}
	a.sinceStep += dt
	if a.sinceStep >= a.stepTime {
		late := a.sinceStep - a.stepTime
		if n := int(late / a.stepTime); n > 0 {
			a.skipped += n
			a.log.Debug("arp steps skipped", "steps", n, "step_time", a.stepTime, "dt", dt)
		}
		a.sinceStep = math.Mod(late, a.stepTime)
		a.step()
	}
	if a.sounding && a.sinceStep >= a.noteDur {
		a.release()
	}
}

func (a *Arp) step() {
	steps := a.steps()
	if a.pos >= len(steps) {
		a.pos = 0
	}
	trans := a.transDistance * a.transPos
	if a.pos == 0 {
		// transpose only moves at the top of the pattern
		a.transPos = (a.transPos + 1) % (a.transSteps + 1)
	}
	a.release()
	a.playing = a.root + steps[a.pos] + trans
	a.sounding = true
	a.noteOn(a.playing)
	a.pos = (a.pos + 1) % len(steps)
}
