package audio

import (
	"sync"
	"sync/atomic"
	"time"
)

// Headless renders in real time without a device. It keeps the clock
// moving on machines with no sound card and in tests.
type Headless struct {
	render     RenderFunc
	sampleRate float64
	frames     int

	mu       sync.Mutex
	stop     chan struct{}
	done     chan struct{}
	rendered atomic.Int64
}

// NewHeadless creates a stopped headless sink.
func NewHeadless(cfg Config, render RenderFunc) *Headless {
	cfg = cfg.withDefaults()
	return &Headless{render: render, sampleRate: cfg.SampleRate, frames: cfg.FramesPerBuffer}
}

// Start begins pulling one buffer per buffer period.
func (h *Headless) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		return nil
	}
	h.stop = make(chan struct{})
	h.done = make(chan struct{})
	go h.loop(h.stop, h.done)
	return nil
}

func (h *Headless) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	period := time.Duration(float64(h.frames) / h.sampleRate * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	buf := make([]float32, h.frames*2)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.render(buf)
			h.rendered.Add(int64(h.frames))
		}
	}
}

// Stop pauses rendering and waits for the render goroutine to exit.
func (h *Headless) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop == nil {
		return nil
	}
	close(h.stop)
	<-h.done
	h.stop, h.done = nil, nil
	return nil
}

// Close stops rendering.
func (h *Headless) Close() error { return h.Stop() }

// SampleRate returns the nominal rate.
func (h *Headless) SampleRate() float64 { return h.sampleRate }

// Rendered returns the number of frames pulled so far.
func (h *Headless) Rendered() int64 { return h.rendered.Load() }
