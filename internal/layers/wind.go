package layers

import (
	"github.com/guidoenr/neuroflow/internal/graph"
	"github.com/guidoenr/neuroflow/internal/noise"
	"github.com/guidoenr/neuroflow/internal/params"
)

// Wind gust shape.
const (
	WindCycle     = 5.0
	WindBaseHz    = 350
	WindPeakGain  = 0.7
	WindLowGain   = 0.15
	WindPeakHz    = 850
	WindLowHz     = 200
	WindPanTau    = 0.5
	windPanMinAmt = 0.1
)

// BeginWind starts lowpassed brown noise blown in gusts.
func BeginWind(env *Env) *Handle {
	src := env.source(noise.Brown)
	lp := env.Ctx.NewBiquad(graph.Lowpass)
	lp.Frequency.SetValue(WindBaseHz)
	gust := env.Ctx.NewGain(0)
	pan := env.Ctx.NewStereoPanner(0)
	g := env.Ctx.NewGain(env.Params.Get(params.VolWind))
	graph.Chain(src, lp, gust, pan, g, env.Out)
	src.Start(env.Ctx.CurrentTime())

	log := env.logger("wind")
	var cycle func(float64)
	cycle = func(float64) {
		if !env.playing() {
			return
		}
		now := env.Ctx.CurrentTime()

		gust.Gain.LinearRampToValueAtTime(WindPeakGain, now+WindCycle*0.4)
		gust.Gain.ExponentialRampToValueAtTime(WindLowGain, now+WindCycle)

		lp.Frequency.LinearRampToValueAtTime(WindPeakHz, now+WindCycle*0.35)
		lp.Frequency.ExponentialRampToValueAtTime(WindLowHz, now+WindCycle)

		if amt := env.Params.Get(params.WindPanAmt); amt > windPanMinAmt {
			side := -1.0
			if env.Rand.Float64() > 0.5 {
				side = 1
			}
			intensity := 0.2 + env.Rand.Float64()*0.6
			target := side * intensity * amt
			pan.Pan.SetTargetAtTime(target, now, WindPanTau)
			log.Debugf("gust pan %.2f", target)
		}
		env.Group.After(WindCycle, cycle)
	}
	cycle(0)
	return newHandle("wind", g, src, lp, gust, pan).
		expose("gust", gust.Gain).
		expose("frequency", lp.Frequency).
		expose("pan", pan.Pan)
}
