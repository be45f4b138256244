// Package audio streams synthesizer blocks to the speakers through ebiten's
// audio player.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// BlockSource renders fixed-size blocks of interleaved 16-bit samples with
// 1 or 2 channels. The returned slice may be reused by the next call.
type BlockSource interface {
	RenderBlock() []int16
	Channels() int
}

// StreamReader adapts a BlockSource to the 16-bit little-endian stereo
// byte stream ebiten plays. Mono blocks are copied to both sides. Blocks
// are rendered whole, so control changes land on block boundaries.
type StreamReader struct {
	mu      sync.Mutex
	source  BlockSource
	stereo  []int16
	pending []int16
}

func NewStreamReader(source BlockSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 4
	if frames == 0 {
		return 0, nil
	}
	n := 0
	for n < frames*4 {
		if len(r.pending) == 0 {
			r.pending = r.nextBlock()
			if len(r.pending) < 2 {
				r.pending = nil
				break
			}
		}
		for len(r.pending) >= 2 && n < frames*4 {
			binary.LittleEndian.PutUint16(p[n:], uint16(r.pending[0]))
			binary.LittleEndian.PutUint16(p[n+2:], uint16(r.pending[1]))
			r.pending = r.pending[2:]
			n += 4
		}
	}
	return n, nil
}

func (r *StreamReader) nextBlock() []int16 {
	block := r.source.RenderBlock()
	if r.source.Channels() == 2 {
		r.stereo = append(r.stereo[:0], block...)
		return r.stereo
	}
	r.stereo = r.stereo[:0]
	for _, s := range block {
		r.stereo = append(r.stereo, s, s)
	}
	return r.stereo
}

func (r *StreamReader) Close() error { return nil }

type Player struct {
	player *ebitaudio.Player
	reader io.ReadCloser
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

// ebiten allows one audio context per process.
func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already running at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// NewPlayer connects source to the system audio output. buffer sets the
// player's buffer length; 0 keeps ebiten's default.
func NewPlayer(sampleRate int, source BlockSource, buffer time.Duration) (*Player, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source)
	pl, err := ctx.NewPlayer(reader)
	if err != nil {
		return nil, fmt.Errorf("audio player: %w", err)
	}
	if buffer > 0 {
		pl.SetBufferSize(buffer)
	}
	return &Player{player: pl, reader: reader}, nil
}

func (p *Player) Play()           { p.player.Play() }
func (p *Player) Pause()          { p.player.Pause() }
func (p *Player) IsPlaying() bool { return p.player.IsPlaying() }

// Position returns how much audio the listener has heard.
func (p *Player) Position() time.Duration {
	return p.player.Position()
}

func (p *Player) Stop() error {
	p.player.Pause()
	if err := p.player.Close(); err != nil {
		return err
	}
	return p.reader.Close()
}
