package analyzer

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// Analyzer performs FFT-based spectral analysis of the master output and
// reports smoothed band levels for the status display.
type Analyzer struct {
	sampleRate float64

	lowPeak  float64
	midPeak  float64
	highPeak float64

	buffer []complex128
	window []float64
}

// Config controls Analyzer behavior.
type Config struct {
	SampleRate float64
}

// New creates an Analyzer.
func New(cfg Config) *Analyzer {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44_100
	}
	return &Analyzer{sampleRate: cfg.SampleRate}
}

// Analyze returns band levels for the provided mono samples.
func (a *Analyzer) Analyze(samples []float64) Bands {
	if len(samples) == 0 {
		return Bands{}
	}

	size := nextPow2(min(len(samples), 4096))
	if size < 256 {
		size = 256
	}

	a.ensureWorkspace(size)

	buffer := a.buffer[:size]
	window := a.window[:size]

	// most recent samples, zero padded at the end
	offset := 0
	if len(samples) > size {
		offset = len(samples) - size
	}
	sampleCount := len(samples) - offset
	for i := 0; i < size; i++ {
		if i < sampleCount {
			buffer[i] = complex(samples[offset+i]*window[i], 0)
			continue
		}
		buffer[i] = 0
	}

	fftRes := fft.FFT(buffer)
	scale := 2 / float64(size)

	freqResolution := a.sampleRate / float64(size)
	low := a.bandEnergy(fftRes, freqResolution, 20, 250) * scale
	mid := a.bandEnergy(fftRes, freqResolution, 250, 2000) * scale
	high := a.bandEnergy(fftRes, freqResolution, 2000, 8000) * scale

	a.lowPeak = envelope(a.lowPeak, low, 0.94, 0.75)
	a.midPeak = envelope(a.midPeak, mid, 0.94, 0.78)
	a.highPeak = envelope(a.highPeak, high, 0.94, 0.8)

	b := Bands{
		Low:  dynamics(low, a.lowPeak),
		Mid:  dynamics(mid, a.midPeak),
		High: dynamics(high, a.highPeak),
	}
	b.Overall = average([]float64{b.Low, b.Mid, b.High})
	return b
}

func (a *Analyzer) bandEnergy(buffer []complex128, resolution float64, minHz, maxHz float64) float64 {
	if minHz >= maxHz {
		return 0
	}
	lo := int(math.Floor(minHz / resolution))
	hi := int(math.Ceil(maxHz/resolution)) + 1
	if hi > len(buffer)/2 {
		hi = len(buffer) / 2
	}
	if lo >= hi {
		return 0
	}
	sum := 0.0
	for _, val := range buffer[lo:hi] {
		sum += cmag(val)
	}
	return sum / float64(hi-lo)
}

func hann(i, size float64) float64 {
	return 0.5 * (1.0 - math.Cos(2.0*math.Pi*i/size))
}

func (a *Analyzer) ensureWorkspace(size int) {
	if len(a.buffer) != size {
		a.buffer = make([]complex128, size)
	}
	if len(a.window) != size {
		a.window = make([]float64, size)
		sizeF := float64(size)
		for i := range a.window {
			a.window[i] = hann(float64(i), sizeF)
		}
	}
}

func cmag(c complex128) float64 {
	return math.Sqrt(real(c)*real(c) + imag(c)*imag(c))
}

func envelope(current, input, attack, release float64) float64 {
	if input > current {
		return current*attack + input*(1-attack)
	}
	return current * release
}

func dynamics(value, peak float64) float64 {
	if peak < 0.01 {
		return math.Min(1.0, value)
	}
	ratio := value / peak
	if ratio < 0 {
		ratio = 0
	}
	expanded := math.Pow(ratio, 0.7) * peak
	if ratio > 0.85 {
		expanded *= 1.0 + (ratio-0.85)*2.0
	}
	if expanded > 1.0 {
		return 1.0
	}
	return expanded
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
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
