package audio

import (
	"errors"
	"fmt"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendPortAudio = "portaudio"
	BackendOto       = "oto"
	BackendHeadless  = "headless"
)

var (
	// ErrNoOutputDevice is returned when no usable playback device exists.
	ErrNoOutputDevice = errors.New("audio: no output device")
	// ErrUnknownBackend is returned by Open for an unrecognised backend name.
	ErrUnknownBackend = errors.New("audio: unknown backend")
)

// RenderFunc fills out with interleaved stereo frames.
type RenderFunc func(out []float32)

// Sink pulls audio from a RenderFunc and plays it. Stop suspends the device
// without releasing it; Start resumes.
type Sink interface {
	Start() error
	Stop() error
	Close() error
	SampleRate() float64
}

// Config controls how an output is opened.
type Config struct {
	Backend         string
	DeviceName      string
	SampleRate      float64
	FramesPerBuffer int
}

const (
	defaultSampleRate      = 44_100
	defaultFramesPerBuffer = 1024
)

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = defaultSampleRate
	}
	if c.FramesPerBuffer <= 0 {
		c.FramesPerBuffer = defaultFramesPerBuffer
	}
	if c.Backend == "" {
		c.Backend = BackendPortAudio
	}
	return c
}

// Open creates the sink selected by cfg.Backend. The sink is created stopped.
func Open(cfg Config, render RenderFunc) (Sink, error) {
	cfg = cfg.withDefaults()
	switch strings.ToLower(cfg.Backend) {
	case BackendPortAudio:
		out, err := NewOutput(cfg, render)
		if err != nil {
			return nil, err
		}
		return out, nil
	case BackendOto:
		out, err := NewOtoOutput(cfg, render)
		if err != nil {
			return nil, err
		}
		return out, nil
	case BackendHeadless:
		return NewHeadless(cfg, render), nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownBackend, cfg.Backend)
}
