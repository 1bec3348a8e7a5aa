// Package engine owns playback: it builds the layers for each play session,
// routes mixer updates to them and drives every control-rate task from the
// audio clock.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/guidoenr/neuroflow/internal/analyzer"
	"github.com/guidoenr/neuroflow/internal/audio"
	"github.com/guidoenr/neuroflow/internal/events"
	"github.com/guidoenr/neuroflow/internal/graph"
	"github.com/guidoenr/neuroflow/internal/layers"
	"github.com/guidoenr/neuroflow/internal/noise"
	"github.com/guidoenr/neuroflow/internal/params"
	"github.com/guidoenr/neuroflow/internal/profile"
	"github.com/guidoenr/neuroflow/internal/sched"
)

// Timing of stop, restart and the loudness poll.
const (
	SettleDelay     = 0.6
	MonitorInterval = 1.0 / 60
	MonitorWindow   = 128

	DefaultMasterVolume = 0.8
	DefaultRestartDelay = 1500 * time.Millisecond
	DefaultTickInterval = 10 * time.Millisecond
)

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("engine: closed")

// Config configures an Engine.
type Config struct {
	// Output selects and configures the playback device.
	Output audio.Config
	// OpenSink overrides how the output is opened. Nil uses audio.Open.
	OpenSink func(render audio.RenderFunc) (audio.Sink, error)

	Profiles     *profile.Store
	Profile      string
	MasterVolume float64
	// Seed seeds noise and layer randomness. Zero uses the current time.
	Seed         int64
	Monitor      analyzer.MonitorConfig
	RestartDelay time.Duration
	Notifier     events.Notifier
	Log          logrus.FieldLogger
}

// DefaultConfig returns the startup configuration.
func DefaultConfig() Config {
	return Config{
		Output:       audio.Config{Backend: audio.BackendPortAudio, SampleRate: 44_100, FramesPerBuffer: 1024},
		Profile:      profile.Default,
		MasterVolume: DefaultMasterVolume,
		Monitor:      analyzer.DefaultMonitorConfig(),
		RestartDelay: DefaultRestartDelay,
	}
}

// namedSink is implemented by outputs bound to a physical device.
type namedSink interface {
	DeviceName() string
}

// Engine is the mixer. Control calls never block on audio; their effects
// are realised by scheduled automation.
type Engine struct {
	cfg      Config
	log      logrus.FieldLogger
	ctx      *graph.Context
	sched    *sched.Scheduler
	sink     audio.Sink
	device   string
	bus      *MasterBus
	state    *params.State
	profiles *profile.Store
	notify   events.Notifier
	playing  atomic.Bool

	mu           sync.Mutex
	profileID    string
	masterVolume float64
	sinkRunning  bool
	rng          *rand.Rand
	bank         *noise.Bank
	session      *sched.Group
	layers       map[string]*layers.Handle
	settle       *sched.Handle
	restart      *time.Timer
	closed       bool
	loud         *analyzer.Monitor
	meter        *analyzer.Analyzer
}

// New builds the engine and opens the output device. A missing device is
// reported here.
func New(cfg Config) (*Engine, error) {
	if cfg.Output.SampleRate <= 0 {
		cfg.Output.SampleRate = 44_100
	}
	if cfg.Log == nil {
		l := logrus.New()
		cfg.Log = l
	}
	if cfg.Profiles == nil {
		cfg.Profiles = profile.NewStore()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = events.Discard
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = DefaultRestartDelay
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.OpenSink == nil {
		out := cfg.Output
		cfg.OpenSink = func(render audio.RenderFunc) (audio.Sink, error) {
			return audio.Open(out, render)
		}
	}

	ctx, err := graph.NewContext(cfg.Output.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	p, ok := cfg.Profiles.Get(cfg.Profile)
	if !ok {
		cfg.Log.WithField("profile", cfg.Profile).Warn("unknown profile, using default")
		p, _ = cfg.Profiles.Get(profile.Default)
	}

	master := clampUnit(cfg.MasterVolume)
	e := &Engine{
		cfg:          cfg,
		log:          cfg.Log.WithField("component", "engine"),
		ctx:          ctx,
		sched:        sched.New(),
		bus:          NewMasterBus(ctx, master),
		state:        params.NewState(p.Values()),
		profiles:     cfg.Profiles,
		notify:       cfg.Notifier,
		profileID:    p.ID,
		masterVolume: master,
		rng:          rand.New(rand.NewSource(cfg.Seed)),
		layers:       make(map[string]*layers.Handle),
		loud:         analyzer.NewMonitor(cfg.Monitor),
		meter:        analyzer.New(analyzer.Config{SampleRate: cfg.Output.SampleRate}),
	}

	sink, err := cfg.OpenSink(e.Render)
	if err != nil {
		return nil, fmt.Errorf("engine: open output: %w", err)
	}
	e.sink = sink
	if named, ok := sink.(namedSink); ok {
		e.device = named.DeviceName()
	}
	e.log.WithFields(logrus.Fields{
		"device":  e.device,
		"rate":    cfg.Output.SampleRate,
		"backend": cfg.Output.Backend,
		"profile": e.profileID,
	}).Info("engine ready")
	return e, nil
}

// Render fills out with the next interleaved stereo frames. Output sinks
// call it from their audio thread.
func (e *Engine) Render(out []float32) {
	e.ctx.Render(out)
}

// CurrentTime returns the audio clock in seconds.
func (e *Engine) CurrentTime() float64 { return e.ctx.CurrentTime() }

// Playing reports whether a play session is active.
func (e *Engine) Playing() bool { return e.playing.Load() }

// Tick runs every control task due at the current audio time and returns
// how many ran.
func (e *Engine) Tick() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.Advance(e.ctx.CurrentTime())
}

// Run ticks the scheduler every interval until ctx is done.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.Tick()
		}
	}
}

// syncClock brings the scheduler up to the audio clock so new tasks are
// timed from now. Callers hold e.mu.
func (e *Engine) syncClock() float64 {
	now := e.ctx.CurrentTime()
	e.sched.Advance(now)
	return now
}

// Start begins a play session. Starting while playing does nothing.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelRestart()
	return e.startLocked()
}

func (e *Engine) startLocked() error {
	if e.closed {
		return ErrClosed
	}
	if e.playing.Load() {
		return nil
	}
	now := e.syncClock()
	if e.settle != nil {
		e.settle.Cancel()
		e.settle = nil
		e.releaseLayers()
	}
	if e.bank == nil {
		bank, err := noise.NewBank(e.ctx.SampleRate(), e.rng.Int63())
		if err != nil {
			return fmt.Errorf("engine: build noise buffers: %w", err)
		}
		e.bank = bank
		e.log.Debug("noise buffers ready")
	}
	if !e.sinkRunning {
		if err := e.sink.Start(); err != nil {
			return fmt.Errorf("engine: resume output: %w", err)
		}
		e.sinkRunning = true
	}

	e.bus.FadeTo(e.masterVolume, now)
	e.playing.Store(true)
	e.session = e.sched.NewGroup()
	env := &layers.Env{
		Ctx:     e.ctx,
		Out:     e.bus.Input(),
		Params:  e.state,
		Bank:    e.bank,
		Group:   e.session,
		Rand:    e.rng,
		Notify:  e.notify,
		Playing: e.playing.Load,
		Log:     e.log,
	}
	for _, b := range layers.All() {
		e.layers[b.Name] = b.Begin(env)
	}
	e.beginMonitor(e.session)

	e.notify.Notify(events.Event{Kind: events.State, Time: now, Value: 1})
	e.log.WithField("profile", e.profileID).Info("playback started")
	return nil
}

// Stop ends the play session. Every pending task of the session is
// cancelled at once, the master fades out and, after the settle delay, the
// device is suspended and the layers are released.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelRestart()
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	if !e.playing.Load() {
		return
	}
	now := e.syncClock()
	e.playing.Store(false)
	e.session.CancelAll()
	if e.loud.Reset() {
		e.notify.Notify(events.Event{Kind: events.Loudness, Time: now, Value: 0})
	}
	e.bus.FadeOut(now)
	e.settle = e.sched.After(SettleDelay, func(float64) { e.settleLocked() })

	e.notify.Notify(events.Event{Kind: events.State, Time: now, Value: 0})
	e.log.Info("playback stopped")
}

// settleLocked runs from Tick, so e.mu is already held.
func (e *Engine) settleLocked() {
	e.settle = nil
	if err := e.sink.Stop(); err != nil {
		e.log.WithError(err).Warn("suspend output")
	} else {
		e.sinkRunning = false
	}
	e.releaseLayers()
	e.bus.Reset(e.masterVolume)
	e.log.Debug("output suspended")
}

func (e *Engine) releaseLayers() {
	for name, h := range e.layers {
		h.Release()
		delete(e.layers, name)
	}
}

// Restart stops playback and starts again after the restart delay.
func (e *Engine) Restart() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelRestart()
	if e.closed {
		return
	}
	e.stopLocked()
	var t *time.Timer
	t = time.AfterFunc(e.cfg.RestartDelay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		// a Stop, Start or Close that ran while this callback waited for
		// the lock has already withdrawn the restart
		if e.restart != t || e.closed {
			return
		}
		e.restart = nil
		if err := e.startLocked(); err != nil {
			e.log.WithError(err).Error("restart")
		}
	})
	e.restart = t
}

func (e *Engine) cancelRestart() {
	if e.restart != nil {
		e.restart.Stop()
		e.restart = nil
	}
}

// UpdateParameter stores value under key, clamped to the key's domain, and
// retargets the matching layer volume. It returns the stored value; NaN is
// ignored and reported with ok=false.
func (e *Engine) UpdateParameter(key string, value float64) (stored float64, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	stored, ok = e.state.Set(key, value)
	if !ok {
		return stored, false
	}
	e.retarget(key, stored, e.ctx.CurrentTime())
	e.log.WithFields(logrus.Fields{"key": key, "value": stored}).Debug("parameter updated")
	return stored, true
}

func (e *Engine) retarget(key string, v, now float64) {
	name, ok := params.Layer(key)
	if !ok {
		return
	}
	if h := e.layers[name]; h != nil {
		h.SetVolume(v, now)
	}
}

// SelectProfile copies every value of the named profile into the live
// parameters and retargets the layer volumes while playing. Unknown ids are
// ignored.
func (e *Engine) SelectProfile(id string) bool {
	p, ok := e.profiles.Get(id)
	if !ok {
		e.log.WithField("profile", id).Debug("unknown profile ignored")
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profileID = p.ID
	now := e.ctx.CurrentTime()
	values := p.Values()
	e.state.Apply(values)
	if e.playing.Load() {
		for key := range values {
			e.retarget(key, e.state.Get(key), now)
		}
	}
	e.log.WithField("profile", p.ID).Info("profile selected")
	return true
}

// SetMasterVolume smoothly retargets the master gain. While a stop is
// settling the value is only stored and applied once the settle is done.
func (e *Engine) SetMasterVolume(v float64) {
	if math.IsNaN(v) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.masterVolume = clampUnit(v)
	if e.settle != nil {
		return
	}
	e.bus.FadeTo(e.masterVolume, e.ctx.CurrentTime())
}

// MasterVolume returns the configured master volume.
func (e *Engine) MasterVolume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.masterVolume
}

// Profile returns the id of the last selected profile.
func (e *Engine) Profile() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profileID
}

// Profiles lists the selectable profile ids.
func (e *Engine) Profiles() []string { return e.profiles.IDs() }

// Layer returns the live handle of a layer, or nil when not playing.
func (e *Engine) Layer(name string) *layers.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.layers[name]
}

// Bus returns the master bus.
func (e *Engine) Bus() *MasterBus { return e.bus }

// Close stops any pending restart and releases the output device.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelRestart()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.session != nil {
		e.session.CancelAll()
	}
	e.playing.Store(false)
	if err := e.sink.Close(); err != nil {
		return fmt.Errorf("engine: close output: %w", err)
	}
	return nil
}

func (e *Engine) beginMonitor(g *sched.Group) {
	var poll sched.Func
	poll = func(now float64) {
		if !e.playing.Load() {
			return
		}
		if e.loud.Observe(e.bus.Window(MonitorWindow)) {
			value := 0.0
			entry := e.log.WithField("rms", analyzer.RMS(e.bus.Window(MonitorWindow)))
			if e.loud.Warning() {
				value = 1
				entry.Warn("output too loud")
			} else {
				entry.Info("output level back to normal")
			}
			e.notify.Notify(events.Event{Kind: events.Loudness, Time: now, Value: value})
		}
		g.After(MonitorInterval, poll)
	}
	g.After(MonitorInterval, poll)
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
