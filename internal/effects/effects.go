// Package effects holds post-mix processors applied to the synthesizer's
// float mix before it is quantized to 16 bits.
package effects

// Effect processes one stereo frame. Mono mixes feed the same sample to
// both inputs and keep the left output.
type Effect interface {
	Frame(l, r float64) (float64, float64)
	Reset()
}

// Chain runs effects in order over an interleaved block.
type Chain struct {
	effects []Effect
}

func NewChain(effects ...Effect) *Chain {
	return &Chain{effects: effects}
}

func (c *Chain) Add(e Effect) {
	c.effects = append(c.effects, e)
}

func (c *Chain) Len() int { return len(c.effects) }

func (c *Chain) Reset() {
	for _, e := range c.effects {
		e.Reset()
	}
}

// Process filters an interleaved block with 1 or 2 channels in place.
func (c *Chain) Process(buf []float64, channels int) {
	if len(c.effects) == 0 {
		return
	}
	if channels == 1 {
		for i, x := range buf {
			buf[i], _ = c.frame(x, x)
		}
		return
	}
	for i := 0; i+1 < len(buf); i += 2 {
		buf[i], buf[i+1] = c.frame(buf[i], buf[i+1])
	}
}

func (c *Chain) frame(l, r float64) (float64, float64) {
	for _, e := range c.effects {
		l, r = e.Frame(l, r)
	}
	return l, r
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func mix(dry, wet, amount float64) float64 {
	return dry*(1-amount) + wet*amount
}
