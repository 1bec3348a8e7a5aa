// Package layers builds the soundscape layers. Each layer wires a small
// sub-graph into the master bus and, when it moves over time, drives it from
// a self-rescheduling task on the session's scheduler group.
package layers

import (
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/guidoenr/neuroflow/internal/events"
	"github.com/guidoenr/neuroflow/internal/graph"
	"github.com/guidoenr/neuroflow/internal/noise"
	"github.com/guidoenr/neuroflow/internal/params"
	"github.com/guidoenr/neuroflow/internal/sched"
)

// VolumeTau is the time constant used when a layer volume is retargeted.
const VolumeTau = 0.1

// Env is everything a layer needs for one play session.
type Env struct {
	Ctx     *graph.Context
	Out     graph.Node
	Params  params.Reader
	Bank    *noise.Bank
	Group   *sched.Group
	Rand    *rand.Rand
	Notify  events.Notifier
	Playing func() bool
	Log     logrus.FieldLogger
}

func (env *Env) playing() bool {
	return env.Playing == nil || env.Playing()
}

func (env *Env) notify(kind events.Kind, value float64) {
	if env.Notify == nil {
		return
	}
	env.Notify.Notify(events.Event{Kind: kind, Time: env.Ctx.CurrentTime(), Value: value})
}

func (env *Env) logger(layer string) logrus.FieldLogger {
	if env.Log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		return l.WithField("layer", layer)
	}
	return env.Log.WithField("layer", layer)
}

// source returns a looping buffer source over the shared noise buffer.
func (env *Env) source(kind noise.Kind) *graph.BufferSource {
	return env.Ctx.NewBufferSource(env.Bank.Get(kind).Samples, true)
}

// Handle is the live part of a layer the engine keeps: its output gain and
// every node it wired, so the whole layer can be released at once.
type Handle struct {
	Name   string
	Gain   *graph.Gain
	nodes  []graph.Node
	params map[string]*graph.Param
}

func newHandle(name string, gain *graph.Gain, nodes ...graph.Node) *Handle {
	return &Handle{Name: name, Gain: gain, nodes: append(nodes, gain)}
}

// expose names an automated parameter so it can be inspected.
func (h *Handle) expose(name string, p *graph.Param) *Handle {
	if h.params == nil {
		h.params = make(map[string]*graph.Param)
	}
	h.params[name] = p
	return h
}

// Param returns an automated parameter of the layer, or nil.
func (h *Handle) Param(name string) *graph.Param {
	return h.params[name]
}

// SetVolume approaches v smoothly starting at now.
func (h *Handle) SetVolume(v, now float64) {
	h.Gain.Gain.SetTargetAtTime(v, now, VolumeTau)
}

// Release disconnects the layer from the master bus and tears down its
// sub-graph.
func (h *Handle) Release() {
	for _, n := range h.nodes {
		graph.Disconnect(n)
	}
}

// Builder begins one layer.
type Builder struct {
	Name  string
	Begin func(env *Env) *Handle
}

// All returns every layer in start order.
func All() []Builder {
	return []Builder{
		{"drone", BeginDrone},
		{"pink", BeginPink},
		{"sea", BeginSea},
		{"wind", BeginWind},
		{"rain", BeginRain},
		{"thunder", BeginThunder},
		{"binaural", BeginBinaural},
		{"synth", BeginSynth},
	}
}

// releaseAfter disconnects a transient sub-graph once its lifetime is over.
func releaseAfter(env *Env, delay float64, nodes ...graph.Node) {
	env.Group.After(delay, func(float64) {
		for _, n := range nodes {
			graph.Disconnect(n)
		}
	})
}
