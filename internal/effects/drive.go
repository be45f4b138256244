package effects

import "math"

// Drive soft-clips the mix with tanh so a loud chord saturates instead of
// hard-clipping at the 16-bit limit. Input and output are in sample units;
// ceiling is the level the curve approaches.
type Drive struct {
	gain    float64
	ceiling float64
}

// NewDrive returns a soft clipper. gain > 1 pushes harder into the curve.
func NewDrive(gain, ceiling float64) *Drive {
	if gain <= 0 {
		gain = 1
	}
	if ceiling <= 0 {
		ceiling = math.MaxInt16
	}
	return &Drive{gain: gain, ceiling: ceiling}
}

func (d *Drive) Frame(l, r float64) (float64, float64) {
	return d.shape(l), d.shape(r)
}

func (d *Drive) shape(x float64) float64 {
	return d.ceiling * math.Tanh(d.gain*x/d.ceiling)
}

func (d *Drive) Reset() {}
