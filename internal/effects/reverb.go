package effects

// Reverb is a Schroeder reverb: four parallel feedback combs into two
// series allpasses, fed from the mono sum.
type Reverb struct {
	combs   [4]delayLine
	allpass [2]delayLine
	wet     float64
}

type delayLine struct {
	buf []float64
	pos int
	g   float64
}

// Comb and allpass lengths relative to the room size. The ratios are
// mutually prime-ish so the comb echoes do not pile up.
var (
	combRatios    = [4]float64{1, 1.117, 1.271, 1.437}
	allpassRatios = [2]float64{0.347, 0.213}
)

// NewReverb returns a reverb. room in [0, 1] scales the comb lengths up to
// 50 ms; decay in [0, 0.95] is the comb feedback.
func NewReverb(sampleRate int, room, decay, wet float64) *Reverb {
	base := clamp(room, 0, 1) * 0.05 * float64(sampleRate)
	if base < 10 {
		base = 10
	}
	r := &Reverb{wet: clamp(wet, 0, 1)}
	for i, k := range combRatios {
		r.combs[i] = newDelayLine(int(base*k), clamp(decay, 0, 0.95))
	}
	for i, k := range allpassRatios {
		r.allpass[i] = newDelayLine(int(base*k), 0.5)
	}
	return r
}

func newDelayLine(n int, g float64) delayLine {
	if n < 1 {
		n = 1
	}
	return delayLine{buf: make([]float64, n), g: g}
}

func (d *delayLine) advance() {
	if d.pos++; d.pos == len(d.buf) {
		d.pos = 0
	}
}

func (d *delayLine) comb(in float64) float64 {
	out := d.buf[d.pos]
	d.buf[d.pos] = in + out*d.g
	d.advance()
	return out
}

func (d *delayLine) allpassStep(in float64) float64 {
	held := d.buf[d.pos]
	d.buf[d.pos] = in + held*d.g
	d.advance()
	return held - in
}

func (r *Reverb) Frame(l, rt float64) (float64, float64) {
	in := (l + rt) / 2
	var out float64
	for i := range r.combs {
		out += r.combs[i].comb(in)
	}
	out /= float64(len(r.combs))
	for i := range r.allpass {
		out = r.allpass[i].allpassStep(out)
	}
	return mix(l, out, r.wet), mix(rt, out, r.wet)
}

func (r *Reverb) Reset() {
	for i := range r.combs {
		clear(r.combs[i].buf)
		r.combs[i].pos = 0
	}
	for i := range r.allpass {
		clear(r.allpass[i].buf)
		r.allpass[i].pos = 0
	}
}
