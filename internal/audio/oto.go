package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// OtoOutput plays through the platform mixer via oto.
type OtoOutput struct {
	ctx        *oto.Context
	player     *oto.Player
	render     RenderFunc
	sampleRate float64
	sampleBuf  []float32

	mu      sync.Mutex
	playing bool
}

// NewOtoOutput creates an oto context streaming float32 stereo.
func NewOtoOutput(cfg Config, render RenderFunc) (*OtoOutput, error) {
	cfg = cfg.withDefaults()
	bufferTime := time.Duration(float64(cfg.FramesPerBuffer) / cfg.SampleRate * float64(time.Second))
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(cfg.SampleRate),
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   bufferTime,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: oto: %v", ErrNoOutputDevice, err)
	}
	<-ready

	o := &OtoOutput{
		ctx:        ctx,
		render:     render,
		sampleRate: cfg.SampleRate,
		sampleBuf:  make([]float32, cfg.FramesPerBuffer*2),
	}
	o.player = ctx.NewPlayer(o)
	return o, nil
}

// Read implements io.Reader for the oto player. Only whole frames are
// produced.
func (o *OtoOutput) Read(p []byte) (int, error) {
	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	if len(o.sampleBuf) < frames*2 {
		o.sampleBuf = make([]float32, frames*2)
	}
	samples := o.sampleBuf[:frames*2]
	o.render(samples)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return frames * 8, nil
}

// Start starts or resumes playback.
func (o *OtoOutput) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.playing {
		o.player.Play()
		o.playing = true
	}
	return nil
}

// Stop pauses playback.
func (o *OtoOutput) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.playing {
		o.player.Pause()
		o.playing = false
	}
	return nil
}

// Close releases the player.
func (o *OtoOutput) Close() error {
	if err := o.Stop(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player == nil {
		return nil
	}
	err := o.player.Close()
	o.player = nil
	return err
}

// SampleRate returns the playback rate.
func (o *OtoOutput) SampleRate() float64 { return o.sampleRate }
