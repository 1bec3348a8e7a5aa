package analyzer

import "math"

// MonitorConfig sets the loudness warning hysteresis. Counts are in
// observations: the counter rises by one for every loud window and falls by
// one for every quiet window.
type MonitorConfig struct {
	Threshold float64
	Raise     int
	Clear     int
	Cap       int
}

// DefaultMonitorConfig warns after sustained RMS above 0.6.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{Threshold: 0.6, Raise: 40, Clear: 10, Cap: 60}
}

// Monitor raises a warning when the output stays too loud and clears it once
// it has been quiet for a while.
type Monitor struct {
	cfg     MonitorConfig
	count   int
	warning bool
}

// NewMonitor creates a monitor. Zero fields take their defaults and the
// cap is never below the raise bound.
func NewMonitor(cfg MonitorConfig) *Monitor {
	def := DefaultMonitorConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.Raise <= 0 {
		cfg.Raise = def.Raise
	}
	if cfg.Clear <= 0 {
		cfg.Clear = def.Clear
	}
	if cfg.Cap <= cfg.Raise {
		cfg.Cap = cfg.Raise + cfg.Raise/2
	}
	return &Monitor{cfg: cfg}
}

// Observe feeds one window of samples and reports whether the warning
// changed state.
func (m *Monitor) Observe(window []float64) (changed bool) {
	if RMS(window) > m.cfg.Threshold {
		if m.count < m.cfg.Cap {
			m.count++
		}
	} else if m.count > 0 {
		m.count--
	}

	switch {
	case !m.warning && m.count > m.cfg.Raise:
		m.warning = true
		return true
	case m.warning && m.count < m.cfg.Clear:
		m.warning = false
		return true
	}
	return false
}

// Warning reports whether the loudness warning is raised.
func (m *Monitor) Warning() bool { return m.warning }

// Count returns the current value of the saturating counter.
func (m *Monitor) Count() int { return m.count }

// Reset zeroes the counter and clears the warning. It reports whether the
// warning was raised.
func (m *Monitor) Reset() bool {
	was := m.warning
	m.count, m.warning = 0, false
	return was
}

// RMS returns the root mean square of window with samples limited to the
// [-1, 1] range of an 8-bit probe.
func RMS(window []float64) float64 {
	if len(window) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range window {
		v = clamp(v, -1, 1)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(window)))
}
