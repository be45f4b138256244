package polysynth

import (
	"errors"
	"sync"
	"testing"

	"github.com/cbegin/polysynth-go/internal/effects"
	"github.com/cbegin/polysynth-go/internal/synth"
)

func TestNewPlayerRejectsBadConfig(t *testing.T) {
	_, err := NewPlayer(WithChannels(3))
	if !errors.Is(err, synth.ErrBadConfig) {
		t.Fatalf("err = %v, want ErrBadConfig", err)
	}
}

func TestPlayerEventsLandBetweenBlocks(t *testing.T) {
	var taps int
	pl, err := NewPlayer(
		WithSampleRate(28000),
		WithBlockSize(128),
		WithMaxVoices(8),
		WithEffects(effects.NewDrive(1.5, 30000)),
		WithSampleTap(func(b []int16) { taps++ }),
	)
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	src := blockSource{pl}
	if src.Channels() != 2 {
		t.Errorf("channels = %d", src.Channels())
	}

	var wg sync.WaitGroup
	for k := 0; k < 4; k++ {
		wg.Add(1)
		go func(key int) {
			defer wg.Done()
			pl.OnNoteOn(key, 100)
			pl.OnControlChange(CCCutoff, 64)
		}(60 + k)
	}
	for b := 0; b < 8; b++ {
		if len(src.RenderBlock()) != 256 {
			t.Fatal("wrong block length")
		}
	}
	wg.Wait()

	pl.Do(func(inst *Instrument) {
		if got := len(inst.Held()); got > 2 {
			t.Errorf("held %d keys with 8 voices of 3 oscillators", got)
		}
	})
	pl.AllNotesOff()
	if taps != 8 {
		t.Errorf("sample tap saw %d blocks, want 8", taps)
	}
	if err := pl.Stop(); err != nil {
		t.Errorf("stop before start: %v", err)
	}
}
