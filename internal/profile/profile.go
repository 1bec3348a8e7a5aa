// Package profile holds the named mixer presets.
package profile

import "github.com/guidoenr/neuroflow/internal/params"

// Default is the profile selected at startup.
const Default = "deep_focus"

// Profile is an immutable preset. Values returns a copy.
type Profile struct {
	ID     string
	Label  string
	values map[string]float64
}

// Values returns a copy of the preset's parameter values.
func (p Profile) Values() map[string]float64 {
	out := make(map[string]float64, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Get returns a single value of the preset.
func (p Profile) Get(key string) float64 { return p.values[key] }

// Store is the fixed set of presets.
type Store struct {
	order    []string
	profiles map[string]Profile
}

type preset struct {
	id, label                                         string
	drone, pink, sea, wind, synth, binaural, rain, th float64
	seaSpeed, seaPan, windPan                         float64
}

var presets = []preset{
	{"deep_focus", "Deep Focus", 0.6, 0.15, 0, 0, 0.25, 0.05, 0, 0, 1, 0, 0},
	{"ocean_flow", "Ocean Flow", 0, 0, 0.75, 0.15, 0, 0, 0, 0, 1.1, 0.6, 0.2},
	{"stormy_cabin", "Stormy Cabin", 0, 0, 0, 0.1, 0.05, 0, 0.1, 1.0, 2.2, 0.3, 0.8},
	{"zen_garden", "Zen Garden", 0.3, 0.05, 0.3, 0.2, 0.45, 0, 0.1, 0, 0.8, 0.2, 0.4},
	{"beta_boost", "Beta Boost", 0.5, 0.2, 0, 0, 0, 0.4, 0, 0, 1, 0, 0},
}

// NewStore returns the built-in presets.
func NewStore() *Store {
	s := &Store{profiles: make(map[string]Profile, len(presets))}
	for _, p := range presets {
		s.order = append(s.order, p.id)
		s.profiles[p.id] = Profile{
			ID:    p.id,
			Label: p.label,
			values: map[string]float64{
				params.VolDrone:    p.drone,
				params.VolPink:     p.pink,
				params.VolSea:      p.sea,
				params.VolWind:     p.wind,
				params.VolSynth:    p.synth,
				params.VolBinaural: p.binaural,
				params.VolRain:     p.rain,
				params.VolThunder:  p.th,
				params.SeaSpeed:    p.seaSpeed,
				params.SeaPanAmt:   p.seaPan,
				params.WindPanAmt:  p.windPan,
			},
		}
	}
	return s
}

// Get looks up a preset by id.
func (s *Store) Get(id string) (Profile, bool) {
	p, ok := s.profiles[id]
	return p, ok
}

// IDs returns the preset ids in menu order.
func (s *Store) IDs() []string {
	return append([]string(nil), s.order...)
}
