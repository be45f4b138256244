package polysynth

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

type EventKind int

const (
	NoteOn EventKind = iota
	NoteOff
	ControlChange
)

// Event is an instrument event at a time offset, for offline renders.
// ID is the key or controller number; Value the velocity or controller
// value.
type Event struct {
	At    float64 // seconds
	Kind  EventKind
	ID    int
	Value int
}

func (i *Instrument) apply(ev Event) {
	switch ev.Kind {
	case NoteOn:
		i.OnNoteOn(ev.ID, ev.Value)
	case NoteOff:
		i.OnNoteOff(ev.ID, ev.Value)
	case ControlChange:
		i.OnControlChange(ev.ID, ev.Value)
	}
}

// Render renders seconds of audio with no new events.
func (i *Instrument) Render(seconds float64) []int16 {
	return i.RenderEvents(nil, seconds)
}

// RenderEvents renders seconds of audio, applying each event before the
// first block that starts at or after its time. Events are quantized to
// block boundaries exactly as they are in real time.
func (i *Instrument) RenderEvents(events []Event, seconds float64) []int16 {
	s := i.Synth()
	frames := int(math.Round(seconds * float64(s.SampleRate())))
	if frames <= 0 {
		return nil
	}
	evs := append([]Event(nil), events...)
	sort.SliceStable(evs, func(a, b int) bool { return evs[a].At < evs[b].At })

	out := make([]int16, 0, frames*s.Channels())
	dt := s.BlockDuration()
	for block := 0; len(out) < cap(out); block++ {
		start := float64(block) * dt
		for len(evs) > 0 && evs[0].At <= start {
			i.apply(evs[0])
			evs = evs[1:]
		}
		b := i.RenderBlock()
		if room := cap(out) - len(out); len(b) > room {
			b = b[:room]
		}
		out = append(out, b...)
	}
	return out
}

// WriteWAV encodes interleaved 16-bit samples as a PCM WAV file.
func WriteWAV(w io.WriteSeeker, samples []int16, sampleRate, channels int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, channels, 1)
	data := make([]int, len(samples))
	for k, v := range samples {
		data[k] = int(v)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return enc.Close()
}

// WriteWAVFile renders to path, replacing any existing file.
func WriteWAVFile(path string, samples []int16, sampleRate, channels int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAV(f, samples, sampleRate, channels); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// NewOfflineInstrument builds an instrument for Render without opening an
// audio device. It takes the same options as NewPlayer.
func NewOfflineInstrument(opts ...PlayerOption) (*Instrument, error) {
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newInstrument(cfg)
}
