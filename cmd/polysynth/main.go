package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cbegin/polysynth-go"
	"github.com/cbegin/polysynth-go/internal/arp"
	"github.com/cbegin/polysynth-go/internal/midiin"
	"github.com/cbegin/polysynth-go/internal/wavetable"
	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

func main() {
	var (
		sampleRate = flag.Int("sample-rate", 48000, "output sample rate")
		blockSize  = flag.Int("block", 512, "frames per render block")
		channels   = flag.Int("channels", 2, "output channels: 1|2")
		voices     = flag.Int("voices", 32, "maximum sounding voices")
		waveName   = flag.String("wave", "saw", "oscillator waveform: saw|sine|square|triangle|noise|hex:<bytes>")
		waveFile   = flag.String("wave-file", "", "read the oscillator waveform from a 16-bit mono WAV file")
		waveStart  = flag.Int("wave-start", 0, "first sample to read from -wave-file")
		tablePath  = flag.String("wavetable", "", "WAV file to scan as a wavetable; reloaded when it changes")
		waveLen    = flag.Int("wave-len", wavetable.DefaultSize, "samples per waveform and wavetable frame")
		scanRate   = flag.Float64("scan-rate", 0.2, "wavetable scan rate in Hz")
		mono       = flag.Bool("mono", false, "mono legato instead of polyphonic")
		arpPattern = flag.String("arp", "", "arpeggiate held keys with the named pattern")
		bpm        = flag.Float64("bpm", 100, "arpeggiator tempo")
		filterLFO  = flag.Float64("filter-lfo", 0, "cutoff sweep rate in Hz (0 = off)")
		sweep      = flag.String("sweep", "", "glide into each note: up|down")
		sweepTime  = flag.Float64("sweep-time", 0.1, "pitch sweep length in seconds")
		sweepOct   = flag.Float64("sweep-octaves", 1, "pitch sweep span in octaves")
		delay      = flag.Float64("delay", 0, "echo time in seconds (0 = off)")
		chorus     = flag.Float64("chorus", 0, "chorus rate in Hz (0 = off)")
		reverb     = flag.Float64("reverb", 0, "reverb mix 0-1 (0 = off)")
		drive      = flag.Float64("drive", 0, "saturation gain (0 = off)")
		midiPort   = flag.String("midi", "", "MIDI input port name (default first port)")
		midiChan   = flag.Int("midi-channel", midiin.Omni, "MIDI channel 0-15 (-1 = all)")
		outPath    = flag.String("out", "", "render a demo phrase to this WAV file instead of playing live")
		seconds    = flag.Float64("seconds", 4, "length of the -out render")
		debug      = flag.Bool("debug", false, "verbose logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	params := polysynth.DefaultInstrumentParams()
	params.Mono = *mono
	wave, err := loadWave(*waveName, *waveFile, *waveStart, *waveLen)
	if err != nil {
		log.Fatal(err)
	}
	params.Waveform = wave
	var instOpts []polysynth.InstrumentOption
	if *tablePath != "" {
		table, err := wavetable.LoadWavetableFile(*tablePath, *waveLen)
		if err != nil {
			log.Fatal(err)
		}
		instOpts = append(instOpts, polysynth.WithWavetable(table, 0, float64(table.NumFrames()-1), *scanRate))
	}
	if *arpPattern != "" {
		idx, ok := arp.PatternIndex(*arpPattern)
		if !ok {
			log.Fatalf("unknown arp pattern %q", *arpPattern)
		}
		instOpts = append(instOpts, polysynth.WithArpeggiator(arp.WithPattern(idx), arp.WithTempo(*bpm, 2)))
	}
	if *filterLFO > 0 {
		instOpts = append(instOpts, polysynth.WithFilterLFO(*filterLFO, 1500, 0))
	}
	switch *sweep {
	case "":
	case "up":
		instOpts = append(instOpts, polysynth.WithPitchSweep(wavetable.RampUp(), *sweepTime, *sweepOct))
	case "down":
		instOpts = append(instOpts, polysynth.WithPitchSweep(wavetable.RampDown(), *sweepTime, *sweepOct))
	default:
		log.Fatalf("unknown sweep %q", *sweep)
	}

	opts := []polysynth.PlayerOption{
		polysynth.WithSampleRate(*sampleRate),
		polysynth.WithBlockSize(*blockSize),
		polysynth.WithChannels(*channels),
		polysynth.WithMaxVoices(*voices),
		polysynth.WithLogger(logger),
		polysynth.WithInstrument(params, instOpts...),
	}
	if *drive > 0 {
		opts = append(opts, polysynth.WithDrive(*drive))
	}
	if *chorus > 0 {
		opts = append(opts, polysynth.WithChorus(*chorus, 0.5))
	}
	if *delay > 0 {
		opts = append(opts, polysynth.WithDelay(*delay, 0.4, 0.3, 0.35))
	}
	if *reverb > 0 {
		opts = append(opts, polysynth.WithReverb(0.7, 0.8, *reverb))
	}

	if *outPath != "" {
		if err := renderDemo(*outPath, *seconds, *sampleRate, *channels, opts); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("wrote %s\n", *outPath)
		return
	}

	pl, err := polysynth.NewPlayer(opts...)
	if err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	if *tablePath != "" {
		watchWavetable(pl, *tablePath, logger, done)
	}

	defer midi.CloseDriver()
	in, err := midiin.FindIn(*midiPort)
	if err != nil {
		log.Fatal(err)
	}
	stopMIDI, err := midiin.Listen(in, midiin.NewRouter(pl, *midiChan, logger))
	if err != nil {
		log.Fatal(err)
	}
	defer stopMIDI()

	if err := pl.Start(); err != nil {
		log.Fatal(err)
	}
	logger.Info("listening", "port", in.String(), "sample_rate", *sampleRate, "block", *blockSize)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	close(done)
	pl.AllNotesOff()
	if err := pl.Stop(); err != nil {
		log.Fatal(err)
	}
}

// loadWave reads the oscillator waveform from file when one is given and
// otherwise builds the named builtin.
func loadWave(name, file string, start, size int) (wavetable.Waveform, error) {
	if file != "" {
		return wavetable.LoadWaveformFile(file, start, size)
	}
	return wavetable.Named(name, size)
}

// watchWavetable swaps in new table contents whenever the file changes.
func watchWavetable(pl *polysynth.Player, path string, logger *slog.Logger, done chan struct{}) {
	buffers := make(chan []int16)
	errs := make(chan error)
	if err := wavetable.Watch(path, buffers, errs, done); err != nil {
		logger.Warn("wavetable watch disabled", "err", err)
		return
	}
	go func() {
		for {
			select {
			case buf := <-buffers:
				var loadErr error
				pl.Do(func(inst *polysynth.Instrument) { loadErr = inst.Wavetable().Load(buf) })
				if loadErr != nil {
					logger.Warn("wavetable reload rejected", "path", path, "err", loadErr)
					continue
				}
				logger.Info("wavetable reloaded", "path", path)
			case err := <-errs:
				logger.Warn("wavetable reload failed", "path", path, "err", err)
			case <-done:
				return
			}
		}
	}()
}

// renderDemo plays a short chord progression offline.
func renderDemo(path string, seconds float64, sampleRate, channels int, opts []polysynth.PlayerOption) error {
	inst, err := polysynth.NewOfflineInstrument(opts...)
	if err != nil {
		return err
	}
	var events []polysynth.Event
	chords := [][]int{{48, 55, 64}, {45, 52, 60}, {41, 48, 57}, {43, 50, 59}}
	step := seconds / float64(len(chords)+1)
	for k, chord := range chords {
		on := float64(k) * step
		for _, key := range chord {
			events = append(events,
				polysynth.Event{At: on, Kind: polysynth.NoteOn, ID: key, Value: 100},
				polysynth.Event{At: on + step*0.8, Kind: polysynth.NoteOff, ID: key},
			)
		}
	}
	events = append(events, polysynth.Event{At: step, Kind: polysynth.ControlChange, ID: polysynth.CCCutoff, Value: 100})
	samples := inst.RenderEvents(events, seconds)
	return polysynth.WriteWAVFile(path, samples, sampleRate, channels)
}
