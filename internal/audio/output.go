package audio

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	initOnce sync.Once
	termOnce sync.Once
	initErr  error
)

// Initialize wraps portaudio.Initialize with sync.Once so multiple callers are safe.
func Initialize() error {
	initOnce.Do(func() {
		initErr = portaudio.Initialize()
	})
	return initErr
}

// Terminate wraps portaudio.Terminate with sync.Once to balance Initialize.
func Terminate() {
	if initErr != nil {
		return
	}
	termOnce.Do(func() {
		_ = portaudio.Terminate()
	})
}

// Output wraps a PortAudio stereo output stream fed by a RenderFunc.
type Output struct {
	stream     *portaudio.Stream
	sampleRate float64
	device     *portaudio.DeviceInfo
	render     RenderFunc

	mu      sync.Mutex
	running bool
}

// NewOutput opens a PortAudio output stream. The stream is opened but not
// started, so a missing or broken device fails here.
func NewOutput(cfg Config, render RenderFunc) (*Output, error) {
	cfg = cfg.withDefaults()
	if err := Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initialize portaudio: %v", ErrNoOutputDevice, err)
	}

	device, err := findOutputDevice(cfg.DeviceName)
	if err != nil {
		return nil, err
	}

	outParams := portaudio.StreamDeviceParameters{
		Device:   device,
		Channels: 2,
		Latency:  device.DefaultHighOutputLatency,
	}

	o := &Output{
		sampleRate: cfg.SampleRate,
		device:     device,
		render:     render,
	}

	framesPerBuffer := cfg.FramesPerBuffer
	if framesPerBuffer < 64 {
		framesPerBuffer = portaudio.FramesPerBufferUnspecified
	}

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input:           portaudio.StreamDeviceParameters{},
		Output:          outParams,
		SampleRate:      cfg.SampleRate,
		FramesPerBuffer: framesPerBuffer,
	}, o.process)
	if err != nil {
		return nil, fmt.Errorf("%w: open stream on %q: %v", ErrNoOutputDevice, device.Name, err)
	}
	o.stream = stream
	return o, nil
}

// Start starts or resumes the stream.
func (o *Output) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return nil
	}
	if err := o.stream.Start(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}
	o.running = true
	return nil
}

// Stop suspends the stream. Stopping a stopped stream is not an error.
func (o *Output) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return nil
	}
	o.running = false
	if err := o.stream.Stop(); err != nil && !errorsIsInvalidStreamState(err) {
		return fmt.Errorf("stop stream: %w", err)
	}
	return nil
}

// Close stops and closes the underlying PortAudio stream.
func (o *Output) Close() error {
	if o.stream == nil {
		return nil
	}
	if err := o.Stop(); err != nil {
		return err
	}
	return o.stream.Close()
}

// SampleRate returns the stream sample rate.
func (o *Output) SampleRate() float64 {
	return o.sampleRate
}

// DeviceName returns the name of the device the stream plays on.
func (o *Output) DeviceName() string {
	return o.device.Name
}

func (o *Output) process(out []float32) {
	o.render(out)
}

func findOutputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name != "" {
		return findOutputDeviceByName(name)
	}

	if dev, err := portaudio.DefaultOutputDevice(); err == nil && dev != nil && dev.MaxOutputChannels > 0 {
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: list audio devices: %v", ErrNoOutputDevice, err)
	}

	if candidate := pickBestOutput(devices); candidate != nil {
		return candidate, nil
	}

	return nil, ErrNoOutputDevice
}

func findOutputDeviceByName(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: list audio devices: %v", ErrNoOutputDevice, err)
	}

	lower := strings.ToLower(name)
	for _, device := range devices {
		if device.MaxOutputChannels == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(device.Name), lower) {
			return device, nil
		}
	}

	return nil, fmt.Errorf("%w: device %q not found", ErrNoOutputDevice, name)
}

// pickBestOutput prefers stereo devices on the default host, then anything
// that looks like speakers or headphones.
func pickBestOutput(devices []*portaudio.DeviceInfo) *portaudio.DeviceInfo {
	type scored struct {
		dev   *portaudio.DeviceInfo
		score int
	}

	var (
		results  []scored
		keywords = []string{"speaker", "headphone", "output", "pulse", "pipewire"}
	)

	var defaultHostIndex = -1
	if host, err := portaudio.DefaultHostApi(); err == nil && host != nil && host.DefaultOutputDevice != nil {
		defaultHostIndex = host.DefaultOutputDevice.Index
	}

	for _, d := range devices {
		if d == nil || d.MaxOutputChannels <= 0 {
			continue
		}

		score := 0
		if d.MaxOutputChannels >= 2 {
			score += 30
		}
		if d.Index == defaultHostIndex {
			score += 40
		}

		lower := strings.ToLower(d.Name)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				score += 20
				break
			}
		}
		if strings.Contains(lower, "default") {
			score += 10
		}

		results = append(results, scored{dev: d, score: score})
	}

	if len(results) == 0 {
		return nil
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score == results[j].score {
			return strings.ToLower(results[i].dev.Name) < strings.ToLower(results[j].dev.Name)
		}
		return results[i].score > results[j].score
	})

	return results[0].dev
}

// errorsIsInvalidStreamState checks if the provided error stems from stopping an already stopped stream.
func errorsIsInvalidStreamState(err error) bool {
	if err == nil {
		return false
	}
	const invalidStateMsg = "PaErrorCode -9986"
	return strings.Contains(err.Error(), invalidStateMsg)
}
