package graph

import "math"

// FilterType selects the biquad response.
type FilterType int

const (
	Lowpass FilterType = iota
	Highpass
	Bandpass
)

func (t FilterType) String() string {
	switch t {
	case Highpass:
		return "highpass"
	case Bandpass:
		return "bandpass"
	default:
		return "lowpass"
	}
}

// Biquad is a second order filter using the Audio EQ Cookbook formulas.
// Frequency and Q are evaluated once per quantum. For lowpass and highpass Q
// is a resonance in dB; for bandpass it is the linear quality factor.
type Biquad struct {
	node
	Type      FilterType
	Frequency *Param
	Q         *Param

	in       Block
	lastF    float64
	lastQ    float64
	b0, b1   float64
	b2       float64
	a1, a2   float64
	x1, x2   [2]float64
	y1, y2   [2]float64
	prepared bool
}

// NewBiquad creates a filter with the Web Audio defaults of 350 Hz and Q 1.
func (c *Context) NewBiquad(kind FilterType) *Biquad {
	f := &Biquad{node: c.newNode(), Type: kind}
	f.Frequency = newParam(c, 350, 0, c.sampleRate/2)
	f.Q = newParam(c, 1, -770, 770)
	return f
}

func (f *Biquad) coefficients(freq, q float64) {
	if f.prepared && freq == f.lastF && q == f.lastQ {
		return
	}
	f.prepared, f.lastF, f.lastQ = true, freq, q

	nyquist := f.ctx.sampleRate / 2
	freq = math.Max(1, math.Min(freq, nyquist*0.999))
	w0 := 2 * math.Pi * freq / f.ctx.sampleRate
	cosw, sinw := math.Cos(w0), math.Sin(w0)

	var b0, b1, b2, a0, a1, a2 float64
	switch f.Type {
	case Bandpass:
		alpha := sinw / (2 * math.Max(q, 1e-4))
		b0, b1, b2 = alpha, 0, -alpha
		a0, a1, a2 = 1+alpha, -2*cosw, 1-alpha
	case Highpass:
		alpha := sinw / (2 * math.Pow(10, q/20))
		b0, b1, b2 = (1+cosw)/2, -(1 + cosw), (1+cosw)/2
		a0, a1, a2 = 1+alpha, -2*cosw, 1-alpha
	default:
		alpha := sinw / (2 * math.Pow(10, q/20))
		b0, b1, b2 = (1-cosw)/2, 1-cosw, (1-cosw)/2
		a0, a1, a2 = 1+alpha, -2*cosw, 1-alpha
	}
	f.b0, f.b1, f.b2 = b0/a0, b1/a0, b2/a0
	f.a1, f.a2 = a1/a0, a2/a0
}

func (f *Biquad) process(out *Block) {
	f.ctx.mixInputs(&f.node, &f.in)
	t0 := f.ctx.quantumStart()
	f.coefficients(f.Frequency.valueAt(t0), f.Q.valueAt(t0))
	out.Channels = f.in.Channels
	f.run(0, &f.in.L, &out.L)
	if f.in.Channels == 2 {
		f.run(1, &f.in.R, &out.R)
	}
}

func (f *Biquad) run(ch int, in, out *[Quantum]float64) {
	x1, x2, y1, y2 := f.x1[ch], f.x2[ch], f.y1[ch], f.y2[ch]
	for i := 0; i < Quantum; i++ {
		x0 := in[i]
		y0 := f.b0*x0 + f.b1*x1 + f.b2*x2 - f.a1*y1 - f.a2*y2
		out[i] = y0
		x2, x1 = x1, x0
		y2, y1 = y1, y0
	}
	f.x1[ch], f.x2[ch], f.y1[ch], f.y2[ch] = x1, x2, y1, y2
}
