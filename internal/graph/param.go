package graph

import (
	"math"
	"sort"
)

type eventKind int

const (
	eventSetValue eventKind = iota
	eventLinearRamp
	eventExpRamp
	eventSetTarget
	eventCurve
)

type event struct {
	kind     eventKind
	time     float64
	value    float64
	tau      float64
	curve    []float64
	duration float64
}

func (e event) isRamp() bool {
	return e.kind == eventLinearRamp || e.kind == eventExpRamp
}

// Param is an automatable value. Control goroutines schedule changes on the
// context timeline; the render thread evaluates them sample by sample.
type Param struct {
	ctx      *Context
	value    float64
	min, max float64

	events []event

	// anchor is where the next pending ramp starts. While a setTarget or
	// curve is running it follows the rendered value, so a ramp scheduled
	// on top of it continues without a jump.
	anchorTime  float64
	anchorValue float64

	// active is the running setTarget or value curve, if any.
	active      *event
	activeStart float64
}

func newParam(ctx *Context, value, min, max float64) *Param {
	return &Param{ctx: ctx, value: value, min: min, max: max, anchorValue: value}
}

// Value returns the most recently computed value.
func (p *Param) Value() float64 {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.value
}

// SetValue drops every scheduled change and jumps to v immediately.
func (p *Param) SetValue(v float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.events = p.events[:0]
	p.active = nil
	p.value = p.clamp(v)
	p.anchorTime = p.ctx.now()
	p.anchorValue = p.value
}

// SetValueAtTime jumps to v at time t.
func (p *Param) SetValueAtTime(v, t float64) {
	p.insert(event{kind: eventSetValue, time: t, value: v})
}

// LinearRampToValueAtTime ramps linearly from the previous event to v, reaching it at t.
func (p *Param) LinearRampToValueAtTime(v, t float64) {
	p.insert(event{kind: eventLinearRamp, time: t, value: v})
}

// ExponentialRampToValueAtTime ramps exponentially from the previous event to v, reaching it at t.
func (p *Param) ExponentialRampToValueAtTime(v, t float64) {
	p.insert(event{kind: eventExpRamp, time: t, value: v})
}

// SetTargetAtTime starts an exponential approach to target at start with time constant tau.
func (p *Param) SetTargetAtTime(target, start, tau float64) {
	if tau <= 0 {
		p.SetValueAtTime(target, start)
		return
	}
	p.insert(event{kind: eventSetTarget, time: start, value: target, tau: tau})
}

// SetValueCurveAtTime plays curve linearly interpolated over duration seconds from start.
// The curve is copied.
func (p *Param) SetValueCurveAtTime(curve []float64, start, duration float64) {
	if len(curve) == 0 || duration <= 0 {
		return
	}
	cp := make([]float64, len(curve))
	copy(cp, curve)
	p.insert(event{kind: eventCurve, time: start, value: cp[len(cp)-1], curve: cp, duration: duration})
}

// CancelScheduledValues removes every event scheduled at or after t.
func (p *Param) CancelScheduledValues(t float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	kept := p.events[:0]
	for _, e := range p.events {
		if e.time < t {
			kept = append(kept, e)
		}
	}
	p.events = kept
	if p.active != nil && p.active.time >= t {
		p.active = nil
	}
	if len(p.events) == 0 {
		p.anchorTime = p.ctx.now()
		p.anchorValue = p.value
	}
}

// Pending reports how many events have not started yet.
func (p *Param) Pending() int {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return len(p.events)
}

func (p *Param) insert(e event) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	if len(p.events) == 0 && p.active == nil && e.isRamp() {
		p.anchorTime = p.ctx.now()
		p.anchorValue = p.value
	}
	idx := sort.Search(len(p.events), func(i int) bool { return p.events[i].time > e.time })
	p.events = append(p.events, event{})
	copy(p.events[idx+1:], p.events[idx:])
	p.events[idx] = e
}

func (p *Param) clamp(v float64) float64 {
	if v < p.min {
		return p.min
	}
	if v > p.max {
		return p.max
	}
	return v
}

// valueAt advances the timeline to t. Callers hold ctx.mu and pass
// non-decreasing times.
func (p *Param) valueAt(t float64) float64 {
	for len(p.events) > 0 {
		e := p.events[0]
		if e.isRamp() {
			if t < e.time {
				p.value = p.clamp(p.ramp(e, t))
				return p.value
			}
			p.value = p.clamp(e.value)
			p.anchorTime, p.anchorValue = e.time, e.value
			p.active = nil
			p.events = p.events[1:]
			continue
		}
		if t < e.time {
			break
		}
		p.events = p.events[1:]
		if e.kind == eventSetValue {
			p.value = p.clamp(e.value)
			p.active = nil
		} else {
			ev := e
			p.active = &ev
			p.activeStart = p.value
		}
		p.anchorTime, p.anchorValue = e.time, p.value
	}

	if p.active != nil {
		p.value = p.clamp(p.evalActive(t))
		p.anchorTime, p.anchorValue = t, p.value
	}
	return p.value
}

func (p *Param) ramp(e event, t float64) float64 {
	t0, v0 := p.anchorTime, p.anchorValue
	span := e.time - t0
	if span <= 0 {
		return e.value
	}
	frac := (t - t0) / span
	if frac < 0 {
		frac = 0
	}
	if e.kind == eventLinearRamp {
		return v0 + (e.value-v0)*frac
	}
	if v0 == 0 || e.value == 0 || (v0 < 0) != (e.value < 0) {
		return v0
	}
	return v0 * math.Pow(e.value/v0, frac)
}

func (p *Param) evalActive(t float64) float64 {
	e := p.active
	switch e.kind {
	case eventSetTarget:
		return e.value + (p.activeStart-e.value)*math.Exp(-(t-e.time)/e.tau)
	case eventCurve:
		elapsed := t - e.time
		if elapsed >= e.duration {
			p.active = nil
			return e.value
		}
		pos := elapsed / e.duration * float64(len(e.curve)-1)
		i := int(pos)
		if i >= len(e.curve)-1 {
			return e.curve[len(e.curve)-1]
		}
		frac := pos - float64(i)
		return e.curve[i] + (e.curve[i+1]-e.curve[i])*frac
	}
	return p.value
}
