package polysynth

import (
	"crypto/sha256"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func phrase() []Event {
	return []Event{
		{At: 0, Kind: NoteOn, ID: 60, Value: 110},
		{At: 0.1, Kind: NoteOn, ID: 64, Value: 90},
		{At: 0.2, Kind: ControlChange, ID: CCCutoff, Value: 30},
		{At: 0.3, Kind: NoteOff, ID: 60},
		{At: 0.3, Kind: NoteOff, ID: 64},
	}
}

func renderPhrase(t *testing.T, opts ...PlayerOption) []int16 {
	t.Helper()
	inst, err := NewOfflineInstrument(opts...)
	if err != nil {
		t.Fatalf("new instrument: %v", err)
	}
	return inst.RenderEvents(phrase(), 1.2)
}

func digest(samples []int16) [32]byte {
	raw := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(s))
	}
	return sha256.Sum256(raw)
}

func TestRenderIsDeterministic(t *testing.T) {
	a := renderPhrase(t)
	b := renderPhrase(t)
	if len(a) != 48000*1.2*2 {
		t.Fatalf("render length = %d, want %d", len(a), int(48000*1.2*2))
	}
	if digest(a) != digest(b) {
		t.Fatal("two renders of the same phrase differ")
	}
}

func TestRenderEventsQuantizedToBlocks(t *testing.T) {
	inst, err := NewOfflineInstrument(WithChannels(1), WithBlockSize(480))
	if err != nil {
		t.Fatal(err)
	}
	// 480 frames at 48 kHz is 10 ms, so a note at 50 ms starts block 5
	out := inst.RenderEvents([]Event{{At: 0.05, Kind: NoteOn, ID: 60, Value: 127}}, 0.2)
	for i, s := range out[:5*480] {
		if s != 0 {
			t.Fatalf("sample %d = %d before the note", i, s)
		}
	}
	loud := false
	for _, s := range out[5*480:] {
		if s != 0 {
			loud = true
			break
		}
	}
	if !loud {
		t.Error("note never sounded")
	}
}

func TestReleaseFadesToSilence(t *testing.T) {
	p := DefaultInstrumentParams()
	p.ReleaseTime = 0.1
	inst, err := NewOfflineInstrument(WithChannels(1), WithInstrument(p))
	if err != nil {
		t.Fatal(err)
	}
	out := inst.RenderEvents([]Event{
		{At: 0, Kind: NoteOn, ID: 57, Value: 127},
		{At: 0.3, Kind: NoteOff, ID: 57},
	}, 0.6)
	for i, s := range out[len(out)-4800:] {
		if s != 0 {
			t.Fatalf("sample %d of the tail = %d, want silence", i, s)
		}
	}
	if n := inst.Synth().Len(); n != 0 {
		t.Errorf("%d voices left after release", n)
	}
}

func TestWriteWAV(t *testing.T) {
	samples := renderPhrase(t, WithSampleRate(22050))
	path := filepath.Join(t.TempDir(), "phrase.wav")
	if err := WriteWAVFile(path, samples, 22050, 2); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	d := wav.NewDecoder(f)
	buf, err := d.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.SampleRate != 22050 || d.NumChans != 2 || d.BitDepth != 16 {
		t.Errorf("header = %d Hz, %d ch, %d bit", d.SampleRate, d.NumChans, d.BitDepth)
	}
	if len(buf.Data) != len(samples) {
		t.Fatalf("decoded %d samples, wrote %d", len(buf.Data), len(samples))
	}
	for i := range samples {
		if buf.Data[i] != int(samples[i]) {
			t.Fatalf("sample %d = %d, want %d", i, buf.Data[i], samples[i])
		}
	}
}

func TestEffectOptions(t *testing.T) {
	dry := renderPhrase(t)
	tail := func(samples []int16) (peak int) {
		for _, s := range samples[len(samples)-2400:] {
			peak = max(peak, abs(int(s)))
		}
		return peak
	}
	if p := tail(dry); p != 0 {
		t.Fatalf("dry tail peak = %d, want silence", p)
	}
	for name, tc := range map[string]struct {
		opt      PlayerOption
		ringsOut bool
	}{
		"delay":  {WithDelay(0.2, 0.6, 0.3, 0.5), true},
		"reverb": {WithReverb(0.8, 0.8, 0.5), true},
		"chorus": {WithChorus(1.5, 0.5), false},
		"drive":  {WithDrive(4), false},
	} {
		t.Run(name, func(t *testing.T) {
			wet := renderPhrase(t, tc.opt)
			if digest(wet) == digest(dry) {
				t.Fatal("effect left the render unchanged")
			}
			if tc.ringsOut && tail(wet) == 0 {
				t.Error("no tail after the notes finished")
			}
		})
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
