package layers

import (
	"github.com/guidoenr/neuroflow/internal/graph"
	"github.com/guidoenr/neuroflow/internal/noise"
	"github.com/guidoenr/neuroflow/internal/params"
)

// Static layer constants.
const (
	DroneHz       = 55
	DroneCutoffHz = 130
	RainCutoffHz  = 800
	BinauralBase  = 200
	BinauralBeat  = 14
)

// BeginDrone starts a low sine through a lowpass filter.
func BeginDrone(env *Env) *Handle {
	osc := env.Ctx.NewOscillator(DroneHz)
	lp := env.Ctx.NewBiquad(graph.Lowpass)
	lp.Frequency.SetValue(DroneCutoffHz)
	g := env.Ctx.NewGain(env.Params.Get(params.VolDrone))
	graph.Chain(osc, lp, g, env.Out)
	osc.Start(env.Ctx.CurrentTime())
	return newHandle("drone", g, osc, lp)
}

// BeginPink starts an unfiltered pink noise bed.
func BeginPink(env *Env) *Handle {
	src := env.source(noise.Pink)
	g := env.Ctx.NewGain(env.Params.Get(params.VolPink))
	graph.Chain(src, g, env.Out)
	src.Start(env.Ctx.CurrentTime())
	return newHandle("pink", g, src)
}

// BeginRain starts pink noise through a highpass filter.
func BeginRain(env *Env) *Handle {
	src := env.source(noise.Pink)
	hp := env.Ctx.NewBiquad(graph.Highpass)
	hp.Frequency.SetValue(RainCutoffHz)
	g := env.Ctx.NewGain(env.Params.Get(params.VolRain))
	graph.Chain(src, hp, g, env.Out)
	src.Start(env.Ctx.CurrentTime())
	return newHandle("rain", g, src, hp)
}

// BeginBinaural starts two sines a fixed beat apart, hard panned left and right.
func BeginBinaural(env *Env) *Handle {
	left := env.Ctx.NewOscillator(BinauralBase)
	right := env.Ctx.NewOscillator(BinauralBase + BinauralBeat)
	pl := env.Ctx.NewStereoPanner(-1)
	pr := env.Ctx.NewStereoPanner(1)
	g := env.Ctx.NewGain(env.Params.Get(params.VolBinaural))
	graph.Chain(left, pl, g)
	graph.Chain(right, pr, g)
	graph.Connect(g, env.Out)
	now := env.Ctx.CurrentTime()
	left.Start(now)
	right.Start(now)
	return newHandle("binaural", g, left, right, pl, pr)
}
