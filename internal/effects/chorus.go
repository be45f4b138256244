package effects

import (
	"math"

	"github.com/cbegin/polysynth-go/internal/lfo"
)

// Chorus mixes in a copy of the signal read from a delay line whose length
// is swept by a sine LFO. The right side runs a quarter cycle behind the
// left for width.
type Chorus struct {
	left, right []float64
	pos         int
	base        float64 // center delay in frames
	depth       float64 // sweep in frames
	feedback    float64
	wet         float64
	dt          float64
	modL, modR  *lfo.LFO
}

// NewChorus builds a chorus centered on delaySec, swept ±depthSec at
// rateHz. Short delays with feedback give a flanger.
func NewChorus(sampleRate int, delaySec, depthSec, rateHz, feedback, wet float64) *Chorus {
	sr := float64(sampleRate)
	base := math.Max(delaySec*sr, 1)
	depth := clamp(depthSec*sr, 0, base-1)
	n := int(base+depth) + 2
	return &Chorus{
		left:     make([]float64, n),
		right:    make([]float64, n),
		base:     base,
		depth:    depth,
		feedback: clamp(feedback, 0, 0.9),
		wet:      clamp(wet, 0, 1),
		dt:       1 / sr,
		modL:     lfo.New(rateHz, lfo.WithShape(lfo.ShapeSine)),
		modR:     lfo.New(rateHz, lfo.WithShape(lfo.ShapeSine), lfo.WithPhase(0.25)),
	}
}

func (c *Chorus) Frame(l, r float64) (float64, float64) {
	c.modL.Advance(c.dt)
	c.modR.Advance(c.dt)
	c.left[c.pos] = l
	c.right[c.pos] = r
	wl := c.tap(c.left, c.base+c.depth*c.modL.Value())
	wr := c.tap(c.right, c.base+c.depth*c.modR.Value())
	c.left[c.pos] += wl * c.feedback
	c.right[c.pos] += wr * c.feedback
	if c.pos++; c.pos == len(c.left) {
		c.pos = 0
	}
	return mix(l, wl, c.wet), mix(r, wr, c.wet)
}

// tap reads buf delay frames behind the write position.
func (c *Chorus) tap(buf []float64, delay float64) float64 {
	n := float64(len(buf))
	p := float64(c.pos) - delay
	if p < 0 {
		p += n
	}
	i := int(p)
	frac := p - float64(i)
	j := i + 1
	if j == len(buf) {
		j = 0
	}
	return buf[i]*(1-frac) + buf[j]*frac
}

func (c *Chorus) Reset() {
	clear(c.left)
	clear(c.right)
	c.pos = 0
	c.modL.Retrigger()
	c.modR.Retrigger()
}
