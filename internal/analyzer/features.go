package analyzer

// Bands describes the spectral energy distribution of the mix.
type Bands struct {
	Low     float64 `json:"low"`
	Mid     float64 `json:"mid"`
	High    float64 `json:"high"`
	Overall float64 `json:"overall"`
}

// GateBands applies a simple noise floor so weak signals read as silence.
func GateBands(b Bands, floor float64) Bands {
	if floor <= 0 {
		return b
	}
	gate := func(v float64) float64 {
		if v <= floor {
			return 0
		}
		return clamp((v-floor)/(1.0-floor), 0, 1)
	}

	b.Low = gate(b.Low)
	b.Mid = gate(b.Mid)
	b.High = gate(b.High)
	b.Overall = gate(b.Overall)
	return b
}
