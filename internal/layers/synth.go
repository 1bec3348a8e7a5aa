package layers

import (
	"github.com/guidoenr/neuroflow/internal/events"
	"github.com/guidoenr/neuroflow/internal/graph"
	"github.com/guidoenr/neuroflow/internal/params"
)

// Scale is the pentatonic set the synth picks notes from, in Hz.
var Scale = []float64{220, 261.63, 293.66, 329.63, 392.00}

// Note envelope and pacing.
const (
	NotePeak       = 0.4
	NoteAttack     = 1.0
	NoteDecayEnd   = 4.0
	NoteFloor      = 0.001
	NoteStop       = 4.5
	NoteRelease    = 4.6
	NoteMinGap     = 4.0
	NoteMaxGap     = 7.0
	synthMinVolume = 0.001
)

// BeginSynth plays a sparse sine melody: one note every 4 to 7 seconds with
// a slow attack, a long exponential decay and a random static pan.
func BeginSynth(env *Env) *Handle {
	g := env.Ctx.NewGain(env.Params.Get(params.VolSynth))
	graph.Connect(g, env.Out)

	log := env.logger("synth")
	var note func(float64)
	note = func(float64) {
		if !env.playing() {
			return
		}
		if env.Params.Get(params.VolSynth) > synthMinVolume {
			freq := Scale[env.Rand.Intn(len(Scale))]
			osc := env.Ctx.NewOscillator(freq)
			pan := env.Ctx.NewStereoPanner(env.Rand.Float64()*0.8 - 0.4)
			shape := env.Ctx.NewGain(0)

			now := env.Ctx.CurrentTime()
			shape.Gain.SetValueAtTime(0, now)
			shape.Gain.LinearRampToValueAtTime(NotePeak, now+NoteAttack)
			shape.Gain.ExponentialRampToValueAtTime(NoteFloor, now+NoteDecayEnd)
			graph.Chain(osc, pan, shape, g)

			osc.Start(now)
			osc.Stop(now + NoteStop)
			releaseAfter(env, NoteRelease, shape, pan, osc)
			env.notify(events.Pulse, freq)
			log.Debugf("note %.2fHz", freq)
		}
		env.Group.After(NoteMinGap+env.Rand.Float64()*(NoteMaxGap-NoteMinGap), note)
	}
	note(0)
	return newHandle("synth", g)
}
