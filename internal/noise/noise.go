package noise

import (
	"fmt"
	"math/rand"
)

// Kind selects the spectral colour of a noise buffer.
type Kind string

const (
	White Kind = "white"
	Brown Kind = "brown"
	Pink  Kind = "pink"
)

// BufferSeconds is the length of every precomputed buffer.
const BufferSeconds = 2

// Buffer is a mono sample array. It is never written after Generate returns.
type Buffer struct {
	Kind       Kind
	SampleRate float64
	Samples    []float32
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / b.SampleRate
}

// Bank holds one buffer of each kind, shared by every layer and every session.
type Bank struct {
	White *Buffer
	Brown *Buffer
	Pink  *Buffer
}

// Get returns the buffer for kind, or nil for an unknown kind.
func (b *Bank) Get(kind Kind) *Buffer {
	switch kind {
	case White:
		return b.White
	case Brown:
		return b.Brown
	case Pink:
		return b.Pink
	}
	return nil
}

// NewBank generates the three buffers from independent sequences derived from seed.
func NewBank(sampleRate float64, seed int64) (*Bank, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("noise: invalid sample rate %.0f", sampleRate)
	}
	root := rand.New(rand.NewSource(seed))
	bank := &Bank{}
	for _, kind := range []Kind{White, Brown, Pink} {
		rng := rand.New(rand.NewSource(root.Int63()))
		buf, err := Generate(kind, sampleRate, rng)
		if err != nil {
			return nil, err
		}
		switch kind {
		case White:
			bank.White = buf
		case Brown:
			bank.Brown = buf
		case Pink:
			bank.Pink = buf
		}
	}
	return bank, nil
}

// Generate fills a BufferSeconds long buffer of the requested kind.
func Generate(kind Kind, sampleRate float64, rng *rand.Rand) (*Buffer, error) {
	size := int(BufferSeconds * sampleRate)
	if size <= 0 {
		return nil, fmt.Errorf("noise: invalid sample rate %.0f", sampleRate)
	}
	data := make([]float32, size)
	switch kind {
	case White:
		fillWhite(data, rng)
	case Brown:
		fillBrown(data, rng)
	case Pink:
		fillPink(data, rng)
	default:
		return nil, fmt.Errorf("noise: unknown kind %q", kind)
	}
	return &Buffer{Kind: kind, SampleRate: sampleRate, Samples: data}, nil
}

func uniform(rng *rand.Rand) float64 {
	return rng.Float64()*2 - 1
}

func fillWhite(data []float32, rng *rand.Rand) {
	for i := range data {
		data[i] = float32(uniform(rng))
	}
}

// fillBrown integrates white noise with a leak of 0.02/1.02; the running
// value is carried unscaled and only the stored sample is boosted.
func fillBrown(data []float32, rng *rand.Rand) {
	last := 0.0
	for i := range data {
		w := uniform(rng)
		last = (last + 0.02*w) / 1.02
		data[i] = float32(last * 3.5)
	}
}

// fillPink is Paul Kellet's refined pink filter: six leaky integrators plus
// a one-sample delayed term, summed and scaled by 0.11.
func fillPink(data []float32, rng *rand.Rand) {
	var b0, b1, b2, b3, b4, b5, b6 float64
	for i := range data {
		w := uniform(rng)
		b0 = 0.99886*b0 + w*0.0555179
		b1 = 0.99332*b1 + w*0.0753030
		b2 = 0.96900*b2 + w*0.1538520
		b3 = 0.86650*b3 + w*0.3104856
		b4 = 0.55000*b4 + w*0.5329522
		b5 = -0.7616*b5 - w*0.0168980
		data[i] = float32((b0 + b1 + b2 + b3 + b4 + b5 + b6 + w*0.5362) * 0.11)
		b6 = w * 0.115926
	}
}
