package wavetable

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
)

// FormatError reports a sample buffer that is not 16-bit mono PCM.
type FormatError struct {
	BitDepth int
	Channels int
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unsupported WAV format: %d-bit, %d channel(s); want 16-bit mono", e.BitDepth, e.Channels)
}

var errNotWAV = errors.New("not a WAV file")

// ReadPCM16 decodes a 16-bit mono PCM WAV stream into raw samples.
func ReadPCM16(r io.ReadSeeker) ([]int16, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		if err := d.Err(); err != nil {
			return nil, fmt.Errorf("read wav header: %w", err)
		}
		return nil, errNotWAV
	}
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("read wav header: %w", err)
	}
	if d.BitDepth != 16 || d.NumChans != 1 {
		return nil, &FormatError{BitDepth: int(d.BitDepth), Channels: int(d.NumChans)}
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode pcm: %w", err)
	}
	out := make([]int16, len(buf.Data))
	for i, s := range buf.Data {
		out[i] = int16(s)
	}
	return out, nil
}

// LoadWavetable reads a 16-bit mono WAV stream and slices it into frames.
func LoadWavetable(r io.ReadSeeker, waveLen int) (*Wavetable, error) {
	samples, err := ReadPCM16(r)
	if err != nil {
		return nil, err
	}
	return NewWavetable(samples, waveLen)
}

// LoadWaveform reads n samples starting at sample start (n=0 reads to the end).
func LoadWaveform(r io.ReadSeeker, start, n int) (Waveform, error) {
	samples, err := ReadPCM16(r)
	if err != nil {
		return nil, err
	}
	if start < 0 || start > len(samples) {
		return nil, fmt.Errorf("start %d outside %d samples", start, len(samples))
	}
	samples = samples[start:]
	if n > 0 && n < len(samples) {
		samples = samples[:n]
	}
	return Waveform(samples), nil
}

// LoadWaveformFile reads n samples of path starting at start; n=0 reads to
// the end.
func LoadWaveformFile(path string, start, n int) (Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't open waveform: %w", err)
	}
	defer f.Close()
	w, err := LoadWaveform(f, start, n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// LoadWavetableFile opens path and loads it as a wavetable.
func LoadWavetableFile(path string, waveLen int) (*Wavetable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't open wavetable: %w", err)
	}
	defer f.Close()
	wt, err := LoadWavetable(f, waveLen)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return wt, nil
}
