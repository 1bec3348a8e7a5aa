package params

import (
	"math"
	"sort"
	"strings"
	"sync"
)

// Mixer parameter keys.
const (
	VolDrone    = "volDrone"
	VolPink     = "volPink"
	VolSea      = "volSea"
	VolWind     = "volWind"
	VolSynth    = "volSynth"
	VolBinaural = "volBinaural"
	VolRain     = "volRain"
	VolThunder  = "volThunder"
	SeaSpeed    = "seaSpeed"
	SeaPanAmt   = "seaPanAmt"
	WindPanAmt  = "windPanAmt"
)

// Keys lists the known keys in display order.
func Keys() []string {
	return []string{
		VolDrone, VolPink, VolSea, VolWind, VolSynth, VolBinaural, VolRain, VolThunder,
		SeaSpeed, SeaPanAmt, WindPanAmt,
	}
}

// SeaSpeed bounds. The lower bound keeps the wave cycle finite.
const (
	MinSeaSpeed = 0.05
	MaxSeaSpeed = 10
)

// Domain returns the accepted range of a known key.
func Domain(key string) (lo, hi float64, ok bool) {
	switch {
	case key == SeaSpeed:
		return MinSeaSpeed, MaxSeaSpeed, true
	case key == SeaPanAmt, key == WindPanAmt, IsVolume(key):
		return 0, 1, true
	}
	return 0, 0, false
}

// IsVolume reports whether key is a known layer volume.
func IsVolume(key string) bool {
	switch key {
	case VolDrone, VolPink, VolSea, VolWind, VolSynth, VolBinaural, VolRain, VolThunder:
		return true
	}
	return false
}

// Layer maps a volume key such as "volSea" to its layer name "sea".
func Layer(key string) (string, bool) {
	if !IsVolume(key) {
		return "", false
	}
	return strings.ToLower(strings.TrimPrefix(key, "vol")), true
}

// Clamp limits v to the domain of key. Unknown keys pass through.
func Clamp(key string, v float64) float64 {
	lo, hi, ok := Domain(key)
	if !ok {
		return v
	}
	return clamp(v, lo, hi)
}

// Reader is the read-only view layers get of the live parameters.
type Reader interface {
	Get(key string) float64
}

// State is the live parameter table. The engine is its only writer.
type State struct {
	mu     sync.RWMutex
	values map[string]float64
}

// NewState returns a table seeded with a copy of initial.
func NewState(initial map[string]float64) *State {
	s := &State{values: make(map[string]float64, len(initial))}
	for k, v := range initial {
		s.values[k] = v
	}
	return s
}

// Get returns the value of key, or zero when unset.
func (s *State) Get(key string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

// Set stores v under key, clamped to the key's domain, and returns the
// stored value. NaN is rejected and reported with ok=false.
func (s *State) Set(key string, v float64) (stored float64, ok bool) {
	if math.IsNaN(v) {
		return s.Get(key), false
	}
	v = Clamp(key, v)
	s.mu.Lock()
	s.values[key] = v
	s.mu.Unlock()
	return v, true
}

// Apply stores every entry of values.
func (s *State) Apply(values map[string]float64) {
	for k, v := range values {
		s.Set(k, v)
	}
}

// Snapshot returns a copy of the table.
func (s *State) Snapshot() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// SortedKeys returns the keys of the table, known keys first in display
// order, then any extra keys alphabetically.
func (s *State) SortedKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool, len(s.values))
	var out []string
	for _, k := range Keys() {
		if _, ok := s.values[k]; ok {
			out = append(out, k)
			seen[k] = true
		}
	}
	var extra []string
	for k := range s.values {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

func clamp(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
