// Package config holds the runtime settings of neuroflow, loaded from an
// optional YAML file and overridden by command line flags.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/guidoenr/neuroflow/internal/audio"
	"github.com/guidoenr/neuroflow/internal/profile"
)

// Config is the full set of runtime settings.
type Config struct {
	SampleRate      float64       `yaml:"sample_rate"`
	FramesPerBuffer int           `yaml:"frames_per_buffer"`
	Backend         string        `yaml:"backend"`
	Device          string        `yaml:"device"`
	Profile         string        `yaml:"profile"`
	MasterVolume    float64       `yaml:"master_volume"`
	WebAddr         string        `yaml:"web_addr"`
	LogLevel        string        `yaml:"log_level"`
	ProfilerCSV     string        `yaml:"profiler_csv"`
	Autostart       bool          `yaml:"autostart"`
	TickInterval    time.Duration `yaml:"tick_interval"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		SampleRate:      44_100,
		FramesPerBuffer: 1024,
		Backend:         audio.BackendPortAudio,
		Profile:         profile.Default,
		MasterVolume:    0.8,
		WebAddr:         ":8080",
		LogLevel:        "info",
		TickInterval:    10 * time.Millisecond,
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validation errors.
var (
	ErrSampleRate   = errors.New("sample rate must be positive")
	ErrFrames       = errors.New("frames per buffer must be positive")
	ErrMasterVolume = errors.New("master volume must be within [0, 1]")
	ErrLogLevel     = errors.New("unknown log level")
)

// Validate checks the settings that would otherwise fail deep inside the
// audio stack.
func (c Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("%w (got %g)", ErrSampleRate, c.SampleRate))
	}
	if c.FramesPerBuffer <= 0 {
		errs = append(errs, fmt.Errorf("%w (got %d)", ErrFrames, c.FramesPerBuffer))
	}
	if math.IsNaN(c.MasterVolume) || c.MasterVolume < 0 || c.MasterVolume > 1 {
		errs = append(errs, fmt.Errorf("%w (got %g)", ErrMasterVolume, c.MasterVolume))
	}
	switch strings.ToLower(c.Backend) {
	case audio.BackendPortAudio, audio.BackendOto, audio.BackendHeadless:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", audio.ErrUnknownBackend, c.Backend))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("%w: %q", ErrLogLevel, c.LogLevel))
	}
	return errors.Join(errs...)
}

// Level returns the parsed log level, falling back to info.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// Output returns the audio settings.
func (c Config) Output() audio.Config {
	return audio.Config{
		Backend:         strings.ToLower(c.Backend),
		DeviceName:      c.Device,
		SampleRate:      c.SampleRate,
		FramesPerBuffer: c.FramesPerBuffer,
	}
}
