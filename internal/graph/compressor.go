package graph

import "math"

// CompressorSettings are the fixed parameters of a Compressor.
type CompressorSettings struct {
	ThresholdDB float64
	KneeDB      float64
	Ratio       float64
	Attack      float64 // seconds
	Release     float64 // seconds
}

// Compressor is a feed-forward, soft-knee dynamics processor with a stereo
// linked peak detector.
type Compressor struct {
	node
	settings CompressorSettings
	in       Block

	attackCoef  float64
	releaseCoef float64
	envDB       float64
	reduction   float64
}

// NewCompressor creates a compressor with the given settings.
func (c *Context) NewCompressor(s CompressorSettings) *Compressor {
	if s.Ratio < 1 {
		s.Ratio = 1
	}
	comp := &Compressor{node: c.newNode(), settings: s}
	comp.attackCoef = timeCoef(s.Attack, c.sampleRate)
	comp.releaseCoef = timeCoef(s.Release, c.sampleRate)
	return comp
}

func timeCoef(seconds, rate float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return math.Exp(-1 / (seconds * rate))
}

// Settings returns the fixed parameters.
func (comp *Compressor) Settings() CompressorSettings { return comp.settings }

// Reduction returns the current gain reduction in dB (zero or negative).
func (comp *Compressor) Reduction() float64 {
	comp.ctx.mu.Lock()
	defer comp.ctx.mu.Unlock()
	return comp.reduction
}

// StaticCurve returns the output level in dB for a steady input level in dB.
func (s CompressorSettings) StaticCurve(inDB float64) float64 {
	over := inDB - s.ThresholdDB
	switch {
	case 2*over < -s.KneeDB:
		return inDB
	case s.KneeDB > 0 && 2*math.Abs(over) <= s.KneeDB:
		k := over + s.KneeDB/2
		return inDB + (1/s.Ratio-1)*k*k/(2*s.KneeDB)
	default:
		return s.ThresholdDB + over/s.Ratio
	}
}

func (comp *Compressor) process(out *Block) {
	comp.ctx.mixInputs(&comp.node, &comp.in)
	out.Channels = comp.in.Channels
	for i := 0; i < Quantum; i++ {
		peak := math.Abs(comp.in.L[i])
		if comp.in.Channels == 2 {
			peak = math.Max(peak, math.Abs(comp.in.R[i]))
		}
		target := 0.0
		if peak > 1e-6 {
			level := 20 * math.Log10(peak)
			target = comp.settings.StaticCurve(level) - level
		}
		coef := comp.releaseCoef
		if target < comp.envDB {
			coef = comp.attackCoef
		}
		comp.envDB = coef*comp.envDB + (1-coef)*target
		gain := math.Pow(10, comp.envDB/20)
		out.L[i] = comp.in.L[i] * gain
		out.R[i] = comp.in.R[i] * gain
	}
	comp.reduction = comp.envDB
}
