package effects

// Delay is a stereo echo. Cross sends part of each side's feedback to the
// other side for a ping-pong spread.
type Delay struct {
	left, right []float64
	pos         int
	feedback    float64
	cross       float64
	wet         float64
}

// NewDelay returns an echo of delaySec seconds. feedback is capped at 0.95
// so the tail always dies out.
func NewDelay(sampleRate int, delaySec, feedback, cross, wet float64) *Delay {
	n := int(delaySec * float64(sampleRate))
	if n < 1 {
		n = 1
	}
	return &Delay{
		left:     make([]float64, n),
		right:    make([]float64, n),
		feedback: clamp(feedback, 0, 0.95),
		cross:    clamp(cross, 0, 1),
		wet:      clamp(wet, 0, 1),
	}
}

func (d *Delay) Frame(l, r float64) (float64, float64) {
	dl, dr := d.left[d.pos], d.right[d.pos]
	straight := d.feedback * (1 - d.cross)
	crossed := d.feedback * d.cross
	d.left[d.pos] = l + dl*straight + dr*crossed
	d.right[d.pos] = r + dr*straight + dl*crossed
	if d.pos++; d.pos == len(d.left) {
		d.pos = 0
	}
	return mix(l, dl, d.wet), mix(r, dr, d.wet)
}

func (d *Delay) Reset() {
	clear(d.left)
	clear(d.right)
	d.pos = 0
}

// Samples is the delay length in frames.
func (d *Delay) Samples() int { return len(d.left) }
