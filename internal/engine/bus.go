package engine

import "github.com/guidoenr/neuroflow/internal/graph"

// Master bus timing.
const (
	MasterTau   = 0.1
	FadeOutTau  = 0.5
	ProbeWindow = 2048
)

// LimiterSettings are the fixed master dynamics.
var LimiterSettings = graph.CompressorSettings{
	ThresholdDB: -12,
	KneeDB:      30,
	Ratio:       4,
	Attack:      0.01,
	Release:     0.25,
}

// MasterBus sums every layer through one gain stage and a limiter. The
// probe taps the limited output for loudness and spectrum readings.
type MasterBus struct {
	Master  *graph.Gain
	Limiter *graph.Compressor
	Probe   *graph.Analyser
}

// NewMasterBus wires master gain, limiter and probe into the destination.
func NewMasterBus(ctx *graph.Context, volume float64) *MasterBus {
	b := &MasterBus{
		Master:  ctx.NewGain(volume),
		Limiter: ctx.NewCompressor(LimiterSettings),
		Probe:   ctx.NewAnalyser(ProbeWindow),
	}
	graph.Chain(b.Master, b.Limiter, b.Probe, ctx.Destination())
	return b
}

// Input is where layers connect.
func (b *MasterBus) Input() graph.Node { return b.Master }

// FadeTo approaches v smoothly from now.
func (b *MasterBus) FadeTo(v, now float64) {
	b.Master.Gain.SetTargetAtTime(v, now, MasterTau)
}

// FadeOut approaches silence from now.
func (b *MasterBus) FadeOut(now float64) {
	b.Master.Gain.SetTargetAtTime(0, now, FadeOutTau)
}

// Reset jumps to v and drops pending fades.
func (b *MasterBus) Reset(v float64) {
	b.Master.Gain.SetValue(v)
}

// Window returns the last n probe samples, oldest first.
func (b *MasterBus) Window(n int) []float64 {
	w := b.Probe.TimeDomain()
	if n <= 0 || n >= len(w) {
		return w
	}
	return w[len(w)-n:]
}
