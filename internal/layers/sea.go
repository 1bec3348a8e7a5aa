package layers

import (
	"github.com/guidoenr/neuroflow/internal/graph"
	"github.com/guidoenr/neuroflow/internal/noise"
	"github.com/guidoenr/neuroflow/internal/params"
)

// Sea wave shape.
const (
	SeaBaseCycle = 8.0
	SeaQ         = 0.8
	SeaPeakGain  = 0.9
	SeaLowGain   = 0.1
	SeaPeakHz    = 600
	SeaLowHz     = 150
)

// SeaCycle returns the wave period in seconds for a given speed.
func SeaCycle(speed float64) float64 {
	if speed < params.MinSeaSpeed {
		speed = params.MinSeaSpeed
	}
	return SeaBaseCycle / speed
}

// BeginSea starts bandpassed white noise shaped into waves. Every cycle the
// wave swells over its first 30% and breaks down to a low wash by the end,
// while the filter centre follows a similar, slightly earlier arc.
func BeginSea(env *Env) *Handle {
	src := env.source(noise.White)
	bp := env.Ctx.NewBiquad(graph.Bandpass)
	bp.Q.SetValue(SeaQ)
	wave := env.Ctx.NewGain(0)
	pan := env.Ctx.NewStereoPanner(0)
	g := env.Ctx.NewGain(env.Params.Get(params.VolSea))
	graph.Chain(src, bp, wave, pan, g, env.Out)
	src.Start(env.Ctx.CurrentTime())

	log := env.logger("sea")
	var cycle func(float64)
	cycle = func(float64) {
		if !env.playing() {
			return
		}
		now := env.Ctx.CurrentTime()
		c := SeaCycle(env.Params.Get(params.SeaSpeed))

		wave.Gain.CancelScheduledValues(now)
		wave.Gain.SetValueAtTime(wave.Gain.Value(), now)
		wave.Gain.LinearRampToValueAtTime(SeaPeakGain, now+c*0.3)
		wave.Gain.ExponentialRampToValueAtTime(SeaLowGain, now+c)

		bp.Frequency.CancelScheduledValues(now)
		bp.Frequency.SetValueAtTime(bp.Frequency.Value(), now)
		bp.Frequency.LinearRampToValueAtTime(SeaPeakHz, now+c*0.25)
		bp.Frequency.ExponentialRampToValueAtTime(SeaLowHz, now+c)

		if amt := env.Params.Get(params.SeaPanAmt); amt > 0.1 {
			target := (env.Rand.Float64()*0.5 - 0.25) * amt
			pan.Pan.LinearRampToValueAtTime(target, now+c)
		}
		log.Debugf("wave cycle %.2fs", c)
		env.Group.After(c, cycle)
	}
	cycle(0)
	return newHandle("sea", g, src, bp, wave, pan).
		expose("wave", wave.Gain).
		expose("frequency", bp.Frequency).
		expose("pan", pan.Pan)
}
