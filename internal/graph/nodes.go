package graph

import (
	"math"
)

// Gain scales its summed input by an a-rate gain parameter.
type Gain struct {
	node
	Gain *Param
	in   Block
}

// NewGain creates a gain node with the given initial gain.
func (c *Context) NewGain(initial float64) *Gain {
	g := &Gain{node: c.newNode()}
	g.Gain = newParam(c, initial, -math.MaxFloat32, math.MaxFloat32)
	return g
}

func (g *Gain) process(out *Block) {
	g.ctx.mixInputs(&g.node, &g.in)
	t0 := g.ctx.quantumStart()
	dt := 1 / g.ctx.sampleRate
	out.Channels = g.in.Channels
	for i := 0; i < Quantum; i++ {
		k := g.Gain.valueAt(t0 + float64(i)*dt)
		out.L[i] = g.in.L[i] * k
		out.R[i] = g.in.R[i] * k
	}
}

// scheduled holds the start/stop window shared by source nodes.
type scheduled struct {
	startAt float64
	stopAt  float64
	started bool
}

func (s *scheduled) activeAt(t float64) bool {
	return s.started && t >= s.startAt && (s.stopAt <= 0 || t < s.stopAt)
}

// ended reports whether a stop time was set and has passed.
func (s *scheduled) ended(now float64) bool {
	return s.started && s.stopAt > 0 && now >= s.stopAt
}

// BufferSource loops a shared, read-only sample buffer.
type BufferSource struct {
	node
	scheduled
	samples []float32
	loop    bool
	pos     int
}

// NewBufferSource plays samples; the slice is only read.
func (c *Context) NewBufferSource(samples []float32, loop bool) *BufferSource {
	return &BufferSource{node: c.newNode(), samples: samples, loop: loop}
}

// Start begins playback at time when.
func (s *BufferSource) Start(when float64) {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	s.started, s.startAt = true, when
}

// Stop ends playback at time when.
func (s *BufferSource) Stop(when float64) {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	s.stopAt = when
}

// Ended reports whether playback has finished.
func (s *BufferSource) Ended() bool {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.ended(s.ctx.now())
}

func (s *BufferSource) process(out *Block) {
	out.clear(1)
	n := len(s.samples)
	if n == 0 {
		return
	}
	t0 := s.ctx.quantumStart()
	dt := 1 / s.ctx.sampleRate
	for i := 0; i < Quantum; i++ {
		if !s.activeAt(t0 + float64(i)*dt) {
			continue
		}
		if s.pos >= n {
			if !s.loop {
				continue
			}
			s.pos = 0
		}
		out.L[i] = float64(s.samples[s.pos])
		s.pos++
	}
}

// Oscillator is a sine source.
type Oscillator struct {
	node
	scheduled
	Frequency *Param
	phase     float64
}

// NewOscillator creates a sine oscillator at freq Hz.
func (c *Context) NewOscillator(freq float64) *Oscillator {
	o := &Oscillator{node: c.newNode()}
	nyquist := c.sampleRate / 2
	o.Frequency = newParam(c, freq, -nyquist, nyquist)
	return o
}

// Start begins the oscillator at time when.
func (o *Oscillator) Start(when float64) {
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	o.started, o.startAt = true, when
}

// Stop silences the oscillator at time when.
func (o *Oscillator) Stop(when float64) {
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	o.stopAt = when
}

// Ended reports whether the oscillator has been stopped.
func (o *Oscillator) Ended() bool {
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	return o.ended(o.ctx.now())
}

func (o *Oscillator) process(out *Block) {
	out.clear(1)
	t0 := o.ctx.quantumStart()
	dt := 1 / o.ctx.sampleRate
	for i := 0; i < Quantum; i++ {
		t := t0 + float64(i)*dt
		f := o.Frequency.valueAt(t)
		if !o.activeAt(t) {
			continue
		}
		out.L[i] = math.Sin(o.phase)
		o.phase += 2 * math.Pi * f * dt
		if o.phase > 2*math.Pi {
			o.phase -= 2 * math.Pi
		}
	}
}

// StereoPanner places its input in the stereo field with equal-power panning.
type StereoPanner struct {
	node
	Pan *Param
	in  Block
}

// NewStereoPanner creates a panner at position pan in [-1, 1].
func (c *Context) NewStereoPanner(pan float64) *StereoPanner {
	p := &StereoPanner{node: c.newNode()}
	p.Pan = newParam(c, pan, -1, 1)
	return p
}

func (p *StereoPanner) process(out *Block) {
	p.ctx.mixInputs(&p.node, &p.in)
	t0 := p.ctx.quantumStart()
	dt := 1 / p.ctx.sampleRate
	out.Channels = 2
	for i := 0; i < Quantum; i++ {
		pan := p.Pan.valueAt(t0 + float64(i)*dt)
		if p.in.Channels < 2 {
			x := (pan + 1) / 2 * math.Pi / 2
			out.L[i] = p.in.L[i] * math.Cos(x)
			out.R[i] = p.in.L[i] * math.Sin(x)
			continue
		}
		l, r := p.in.L[i], p.in.R[i]
		if pan <= 0 {
			x := (pan + 1) * math.Pi / 2
			out.L[i] = l + r*math.Cos(x)
			out.R[i] = r * math.Sin(x)
		} else {
			x := pan * math.Pi / 2
			out.L[i] = l * math.Cos(x)
			out.R[i] = r + l*math.Sin(x)
		}
	}
}

// Analyser passes audio through and keeps the last Size mono samples.
type Analyser struct {
	node
	ring  []float64
	index int
}

// NewAnalyser keeps a window of size samples.
func (c *Context) NewAnalyser(size int) *Analyser {
	if size <= 0 {
		size = 256
	}
	return &Analyser{node: c.newNode(), ring: make([]float64, size)}
}

func (a *Analyser) process(out *Block) {
	a.ctx.mixInputs(&a.node, out)
	for i := 0; i < Quantum; i++ {
		v := out.L[i]
		if out.Channels == 2 {
			v = (out.L[i] + out.R[i]) / 2
		}
		a.ring[a.index] = v
		a.index = (a.index + 1) % len(a.ring)
	}
}

// TimeDomain copies the most recent window, oldest sample first.
func (a *Analyser) TimeDomain() []float64 {
	a.ctx.mu.Lock()
	defer a.ctx.mu.Unlock()
	out := make([]float64, len(a.ring))
	copy(out, a.ring[a.index:])
	copy(out[len(a.ring)-a.index:], a.ring[:a.index])
	return out
}
