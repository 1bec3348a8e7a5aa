package layers

import (
	"math"
	"math/rand"

	"github.com/guidoenr/neuroflow/internal/events"
	"github.com/guidoenr/neuroflow/internal/graph"
	"github.com/guidoenr/neuroflow/internal/noise"
	"github.com/guidoenr/neuroflow/internal/params"
)

// Thunder timing and shape.
const (
	ThunderCurvePoints = 200
	ThunderMinDuration = 7.0
	ThunderMaxDuration = 22.0
	ThunderMinGap      = 20.0
	ThunderMaxGap      = 30.0
	ThunderStartHz     = 400
	ThunderEndHz       = 40
	thunderMinVolume   = 0.01
	thunderBaseLevel   = 0.55
	thunderWobble      = 0.4
	thunderSustain     = 0.7
	thunderTail        = 0.5
)

// ThunderCurve builds the rumble envelope: a sharp attack, a wobbling
// sustain for the first 70% and a linear fade to a clean zero tail.
func ThunderCurve(rng *rand.Rand) []float64 {
	curve := make([]float64, ThunderCurvePoints)
	curve[0] = 0
	curve[1] = 0.9
	for i := 2; i < ThunderCurvePoints; i++ {
		progress := float64(i) / ThunderCurvePoints
		base := thunderBaseLevel
		if progress >= thunderSustain {
			base *= 1 - (progress-thunderSustain)/(1-thunderSustain)
		}
		wobble := (rng.Float64() - 0.5) * thunderWobble
		curve[i] = math.Max(0, base+wobble)
	}
	curve[ThunderCurvePoints-2] = 0.01
	curve[ThunderCurvePoints-1] = 0
	return curve
}

// BeginThunder schedules rolling strikes every 20 to 30 seconds while the
// thunder volume is audible. Each strike owns its own sub-graph and is
// released once its envelope and tail have finished.
func BeginThunder(env *Env) *Handle {
	g := env.Ctx.NewGain(env.Params.Get(params.VolThunder))
	graph.Connect(g, env.Out)

	log := env.logger("thunder")
	var strike func(float64)
	strike = func(float64) {
		if !env.playing() {
			return
		}
		if env.Params.Get(params.VolThunder) > thunderMinVolume {
			position := env.Rand.Float64()*1.6 - 0.8
			env.notify(events.Flash, position)

			src := env.source(noise.Brown)
			lp := env.Ctx.NewBiquad(graph.Lowpass)
			shape := env.Ctx.NewGain(0)
			pan := env.Ctx.NewStereoPanner(position)
			graph.Chain(src, lp, shape, pan, g)

			now := env.Ctx.CurrentTime()
			duration := ThunderMinDuration + env.Rand.Float64()*(ThunderMaxDuration-ThunderMinDuration)
			shape.Gain.SetValueCurveAtTime(ThunderCurve(env.Rand), now, duration)
			lp.Frequency.SetValueAtTime(ThunderStartHz, now)
			lp.Frequency.LinearRampToValueAtTime(ThunderEndHz, now+duration)

			src.Start(now)
			src.Stop(now + duration + thunderTail)
			releaseAfter(env, duration+thunderTail+0.1, pan, shape, lp, src)
			log.Debugf("strike %.1fs at pan %.2f", duration, position)
		}
		env.Group.After(ThunderMinGap+env.Rand.Float64()*(ThunderMaxGap-ThunderMinGap), strike)
	}
	strike(0)
	return newHandle("thunder", g)
}
