// Package midiin turns decoded MIDI messages into instrument events. The
// synthesizer core never sees MIDI; this adapter sits in front of it.
package midiin

import (
	"fmt"
	"io"
	"log/slog"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Handler receives note and controller events.
type Handler interface {
	OnNoteOn(id, velocity int)
	OnNoteOff(id, velocity int)
	OnControlChange(ctl, value int)
}

// Omni accepts messages on every channel.
const Omni = -1

// Router filters messages by channel and forwards them to a Handler.
type Router struct {
	h       Handler
	channel int
	log     *slog.Logger
}

// NewRouter forwards messages on channel (0-15, or Omni) to h.
func NewRouter(h Handler, channel int, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if channel < Omni || channel > 15 {
		channel = Omni
	}
	return &Router{h: h, channel: channel, log: logger}
}

func (r *Router) accept(ch uint8) bool {
	return r.channel == Omni || int(ch) == r.channel
}

// Dispatch forwards msg and reports whether the handler was called. A note
// on with velocity 0 is a note off.
func (r *Router) Dispatch(msg midi.Message) bool {
	var ch, key, vel, ctl, val uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		if !r.accept(ch) {
			return false
		}
		r.log.Debug("note on", "ch", ch, "key", key, "vel", vel)
		r.h.OnNoteOn(int(key), int(vel))
	case msg.GetNoteOff(&ch, &key, &vel):
		if !r.accept(ch) {
			return false
		}
		r.log.Debug("note off", "ch", ch, "key", key, "vel", vel)
		r.h.OnNoteOff(int(key), int(vel))
	case msg.GetNoteEnd(&ch, &key):
		if !r.accept(ch) {
			return false
		}
		r.log.Debug("note off", "ch", ch, "key", key)
		r.h.OnNoteOff(int(key), 0)
	case msg.GetControlChange(&ch, &ctl, &val):
		if !r.accept(ch) {
			return false
		}
		r.log.Debug("control change", "ch", ch, "ctl", ctl, "val", val)
		r.h.OnControlChange(int(ctl), int(val))
	default:
		r.log.Debug("unhandled message", "msg", msg.String())
		return false
	}
	return true
}

// FindIn returns the input port called name, or the first port when name is
// empty. A driver must be registered by the caller.
func FindIn(name string) (drivers.In, error) {
	if name != "" {
		in, err := midi.FindInPort(name)
		if err != nil {
			return nil, fmt.Errorf("midi input %q: %w", name, err)
		}
		return in, nil
	}
	ins := midi.GetInPorts()
	if len(ins) == 0 {
		return nil, fmt.Errorf("no midi inputs")
	}
	return ins[0], nil
}

// Listen opens in and dispatches its messages to r until stop is called.
// Messages arrive on the driver's goroutine, so the handler must do its own
// locking.
func Listen(in drivers.In, r *Router) (stop func(), err error) {
	if !in.IsOpen() {
		if err := in.Open(); err != nil {
			return nil, fmt.Errorf("open %q: %w", in.String(), err)
		}
	}
	stop, err = midi.ListenTo(in, func(msg midi.Message, _ int32) {
		r.Dispatch(msg)
	}, midi.HandleError(func(listenErr error) {
		r.log.Warn("midi listener error", "port", in.String(), "err", listenErr)
	}))
	if err != nil {
		_ = in.Close()
		return nil, fmt.Errorf("listen %q: %w", in.String(), err)
	}
	return stop, nil
}
