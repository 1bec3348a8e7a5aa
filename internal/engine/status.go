package engine

import (
	"github.com/guidoenr/neuroflow/internal/analyzer"
)

// Status is a snapshot of the engine for UIs. Order lists the keys of
// Params in display order.
type Status struct {
	Playing         bool               `json:"playing"`
	Profile         string             `json:"profile"`
	MasterVolume    float64            `json:"masterVolume"`
	Device          string             `json:"device,omitempty"`
	Params          map[string]float64 `json:"params"`
	Order           []string           `json:"order"`
	LoudnessWarning bool               `json:"loudnessWarning"`
	ReductionDB     float64            `json:"reductionDb"`
	Bands           analyzer.Bands     `json:"bands"`
	Time            float64            `json:"time"`
}

// Status returns the current engine state. Band levels are measured on the
// limited master output.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	var bands analyzer.Bands
	if e.playing.Load() {
		bands = e.meter.Analyze(e.bus.Window(0))
	}
	return Status{
		Playing:         e.playing.Load(),
		Profile:         e.profileID,
		MasterVolume:    e.masterVolume,
		Device:          e.device,
		Params:          e.state.Snapshot(),
		Order:           e.state.SortedKeys(),
		LoudnessWarning: e.loud.Warning(),
		ReductionDB:     e.bus.Limiter.Reduction(),
		Bands:           bands,
		Time:            e.ctx.CurrentTime(),
	}
}
