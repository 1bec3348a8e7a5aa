package layers

import (
	"math"
	"math/rand"
	"testing"

	"github.com/guidoenr/neuroflow/internal/events"
	"github.com/guidoenr/neuroflow/internal/graph"
	"github.com/guidoenr/neuroflow/internal/noise"
	"github.com/guidoenr/neuroflow/internal/params"
	"github.com/guidoenr/neuroflow/internal/sched"
)

const (
	rigRate  = 8000
	rigBlock = 256
)

type rig struct {
	ctx     *graph.Context
	sched   *sched.Scheduler
	state   *params.State
	env     *Env
	playing bool
	events  []events.Event
}

func newRig(t *testing.T, values map[string]float64) *rig {
	t.Helper()
	ctx, err := graph.NewContext(rigRate)
	if err != nil {
		t.Fatal(err)
	}
	bank, err := noise.NewBank(rigRate, 7)
	if err != nil {
		t.Fatal(err)
	}
	bus := ctx.NewGain(1)
	graph.Connect(bus, ctx.Destination())
	r := &rig{ctx: ctx, sched: sched.New(), state: params.NewState(values), playing: true}
	r.env = &Env{
		Ctx:     ctx,
		Out:     bus,
		Params:  r.state,
		Bank:    bank,
		Group:   r.sched.NewGroup(),
		Rand:    rand.New(rand.NewSource(3)),
		Notify:  events.NotifierFunc(func(ev events.Event) { r.events = append(r.events, ev) }),
		Playing: func() bool { return r.playing },
	}
	return r
}

// run renders seconds of audio in small blocks, firing due tasks after each
// block, and calls probe after every block when it is not nil.
func (r *rig) run(seconds float64, probe func(now float64)) []float32 {
	frames := int(seconds * rigRate)
	out := make([]float32, 0, frames*2)
	buf := make([]float32, rigBlock*2)
	for done := 0; done < frames; done += rigBlock {
		r.ctx.Render(buf)
		out = append(out, buf...)
		now := r.ctx.CurrentTime()
		r.sched.Advance(now)
		if probe != nil {
			probe(now)
		}
	}
	return out
}

func energy(out []float32) float64 {
	sum := 0.0
	for _, v := range out {
		sum += float64(v) * float64(v)
	}
	return sum
}

func TestThunderCurveShape(t *testing.T) {
	var early, late float64
	for seed := int64(0); seed < 50; seed++ {
		curve := ThunderCurve(rand.New(rand.NewSource(seed)))
		if len(curve) != ThunderCurvePoints {
			t.Fatalf("curve has %d points", len(curve))
		}
		if curve[0] != 0 || curve[1] != 0.9 {
			t.Fatalf("attack points %f %f", curve[0], curve[1])
		}
		if curve[198] != 0.01 || curve[199] != 0 {
			t.Fatalf("tail points %f %f", curve[198], curve[199])
		}
		for i, v := range curve {
			if v < 0 {
				t.Fatalf("negative value %f at %d", v, i)
			}
		}
		for i := 140; i < 160; i++ {
			early += curve[i]
		}
		for i := 178; i < 198; i++ {
			late += curve[i]
		}
	}
	if late >= early {
		t.Fatalf("fade does not trend down: early=%f late=%f", early, late)
	}
}

func TestSilentAtZeroVolume(t *testing.T) {
	for _, b := range All() {
		t.Run(b.Name, func(t *testing.T) {
			values := map[string]float64{
				params.SeaSpeed:   1,
				params.SeaPanAmt:  1,
				params.WindPanAmt: 1,
			}
			for _, key := range params.Keys() {
				if params.IsVolume(key) {
					values[key] = 0
				}
			}
			r := newRig(t, values)
			h := b.Begin(r.env)
			if h.Name != b.Name {
				t.Fatalf("handle name %q", h.Name)
			}
			if e := energy(r.run(3, nil)); e > 1e-9 {
				t.Fatalf("energy %g at zero volume", e)
			}
		})
	}
}

func TestAudibleAtFullVolume(t *testing.T) {
	for _, b := range All() {
		t.Run(b.Name, func(t *testing.T) {
			values := map[string]float64{params.SeaSpeed: 1}
			for _, key := range params.Keys() {
				if params.IsVolume(key) {
					values[key] = 1
				}
			}
			r := newRig(t, values)
			b.Begin(r.env)
			if e := energy(r.run(3, nil)); e < 1e-3 {
				t.Fatalf("layer is silent: energy %g", e)
			}
		})
	}
}

func TestSeaWaveCycle(t *testing.T) {
	r := newRig(t, map[string]float64{params.VolSea: 0.75, params.SeaSpeed: 1.1})
	h := BeginSea(r.env)
	wave := h.Param("wave")
	cycle := SeaCycle(1.1)
	if math.Abs(cycle-7.2727) > 1e-3 {
		t.Fatalf("cycle=%f", cycle)
	}

	peak, peakAt := 0.0, 0.0
	trough := math.Inf(1)
	r.run(cycle+0.2, func(now float64) {
		v := wave.Value()
		if v > peak {
			peak, peakAt = v, now
		}
		if peakAt > 0 && now > peakAt && v < trough {
			trough = v
		}
	})
	if math.Abs(peak-SeaPeakGain) > 0.02 {
		t.Fatalf("peak=%f want %f", peak, SeaPeakGain)
	}
	if math.Abs(peakAt-cycle*0.3) > 0.1 {
		t.Fatalf("peak at %f want %f", peakAt, cycle*0.3)
	}
	if math.Abs(trough-SeaLowGain) > 0.02 {
		t.Fatalf("trough=%f want %f", trough, SeaLowGain)
	}
}

func TestSeaPanStaysWithinAmount(t *testing.T) {
	r := newRig(t, map[string]float64{params.VolSea: 1, params.SeaSpeed: 4, params.SeaPanAmt: 0.6})
	pan := BeginSea(r.env).Param("pan")
	moved := false
	r.run(10, func(float64) {
		v := pan.Value()
		if math.Abs(v) > 0.25*0.6+1e-9 {
			t.Fatalf("pan %f outside range", v)
		}
		if v != 0 {
			moved = true
		}
	})
	if !moved {
		t.Fatalf("pan never moved")
	}
}

func TestWindPanGate(t *testing.T) {
	still := newRig(t, map[string]float64{params.VolWind: 1, params.WindPanAmt: 0.1})
	pan := BeginWind(still.env).Param("pan")
	still.run(11, nil)
	if pan.Value() != 0 {
		t.Fatalf("pan moved with amount at the gate: %f", pan.Value())
	}

	moving := newRig(t, map[string]float64{params.VolWind: 1, params.WindPanAmt: 1})
	pan = BeginWind(moving.env).Param("pan")
	moving.run(3, nil)
	if v := math.Abs(pan.Value()); v < 0.1 || v > 0.8 {
		t.Fatalf("pan %f outside the gust range", v)
	}
}

func TestThunderStrikeLifecycle(t *testing.T) {
	r := newRig(t, map[string]float64{params.VolThunder: 1})
	h := BeginThunder(r.env)
	if len(r.events) != 1 || r.events[0].Kind != events.Flash {
		t.Fatalf("expected one flash, got %+v", r.events)
	}
	if p := r.events[0].Value; p < -0.8 || p > 0.8 {
		t.Fatalf("strike pan %f", p)
	}
	if graph.Inputs(h.Gain) != 1 {
		t.Fatalf("strike not wired")
	}
	r.run(23, nil)
	if n := graph.Inputs(h.Gain); n > 1 {
		t.Fatalf("first strike not released: %d inputs", n)
	}
	if len(r.events) < 1 || len(r.events) > 2 {
		t.Fatalf("flashes=%d", len(r.events))
	}
}

func TestThunderGatedByVolume(t *testing.T) {
	r := newRig(t, map[string]float64{params.VolThunder: 0.01})
	BeginThunder(r.env)
	r.run(31, nil)
	if len(r.events) != 0 {
		t.Fatalf("strikes fired below the gate: %d", len(r.events))
	}
}

func TestSynthNotes(t *testing.T) {
	r := newRig(t, map[string]float64{params.VolSynth: 1})
	h := BeginSynth(r.env)
	r.run(20, func(float64) {
		if n := graph.Inputs(h.Gain); n > 2 {
			t.Fatalf("%d notes alive, released notes leak", n)
		}
	})
	if len(r.events) < 3 || len(r.events) > 6 {
		t.Fatalf("notes=%d", len(r.events))
	}
	for _, ev := range r.events {
		found := false
		for _, f := range Scale {
			if ev.Value == f {
				found = true
			}
		}
		if ev.Kind != events.Pulse || !found {
			t.Fatalf("unexpected event %+v", ev)
		}
	}
}

func TestLoopsStopWhenNotPlaying(t *testing.T) {
	values := map[string]float64{params.SeaSpeed: 1, params.VolThunder: 1, params.VolSynth: 1}
	r := newRig(t, values)
	for _, b := range All() {
		b.Begin(r.env)
	}
	r.run(1, nil)
	r.playing = false
	fired := len(r.events)
	r.run(40, nil)
	if r.env.Group.Outstanding() != 0 {
		t.Fatalf("%d tasks still scheduled", r.env.Group.Outstanding())
	}
	if len(r.events) != fired {
		t.Fatalf("events fired after playback stopped")
	}
}

func TestReleaseDisconnectsLayer(t *testing.T) {
	r := newRig(t, map[string]float64{params.VolPink: 1})
	h := BeginPink(r.env)
	r.run(0.5, nil)
	h.Release()
	r.run(0.1, nil)
	if e := energy(r.run(0.5, nil)); e != 0 {
		t.Fatalf("released layer still audible: %g", e)
	}
}
