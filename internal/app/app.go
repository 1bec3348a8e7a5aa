package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/eiannone/keyboard"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/guidoenr/neuroflow/internal/analyzer"
	"github.com/guidoenr/neuroflow/internal/engine"
	"github.com/guidoenr/neuroflow/internal/params"
)

// Engine is what the terminal controller drives.
type Engine interface {
	Start() error
	Stop()
	Restart()
	Playing() bool
	SelectProfile(id string) bool
	SetMasterVolume(v float64)
	MasterVolume() float64
	Profiles() []string
	Status() engine.Status
	Tick() int
}

// Config configures the terminal controller.
type Config struct {
	Engine        Engine
	TickInterval  time.Duration
	TargetFPS     float64
	ShowStatusBar bool
	UseANSI       bool
	ProfilerPath  string
	Out           io.Writer
	Log           logrus.FieldLogger
}

// MasterStep is how much +/- move the master volume.
const MasterStep = 0.05

type inputKind int

const (
	inputToggle inputKind = iota
	inputProfile
	inputMasterUp
	inputMasterDown
	inputRestart
	inputQuit
)

type inputEvent struct {
	kind  inputKind
	index int
}

// App ticks the engine and draws a small status panel in the terminal.
type App struct {
	cfg         Config
	eng         Engine
	log         logrus.FieldLogger
	out         io.Writer
	prof        *profiler
	width       int
	inputEvents chan inputEvent
	message     string
	styles      styles
}

// New constructs the controller.
func New(cfg Config) (*App, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("app: engine is required")
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = engine.DefaultTickInterval
	}
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = 10
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Log == nil {
		cfg.Log = logrus.New()
	}
	a := &App{
		cfg:    cfg,
		eng:    cfg.Engine,
		log:    cfg.Log.WithField("component", "app"),
		out:    cfg.Out,
		width:  80,
		styles: newStyles(cfg.UseANSI),
	}
	a.prof = newProfiler(cfg.ProfilerPath, a.log)
	return a, nil
}

// Run ticks the engine and redraws until ctx is cancelled or q is pressed.
func (a *App) Run(ctx context.Context) error {
	tick := time.NewTicker(a.cfg.TickInterval)
	defer tick.Stop()
	frame := time.NewTicker(time.Duration(float64(time.Second) / a.cfg.TargetFPS))
	defer frame.Stop()

	a.enterAltScreen()
	a.clearScreen()
	a.hideCursor()
	defer func() {
		a.showCursor()
		a.exitAltScreen()
	}()

	inputCtx, cancelInput := context.WithCancel(ctx)
	defer cancelInput()
	a.startInputListener(inputCtx)
	a.ensureWidth()

	for {
		select {
		case <-ctx.Done():
			a.moveCursorHome()
			return ctx.Err()
		case evt, ok := <-a.inputEvents:
			if !ok {
				a.inputEvents = nil
				continue
			}
			if !a.handleInput(evt) {
				a.moveCursorHome()
				return nil
			}
		case <-tick.C:
			a.prof.begin()
			n := a.eng.Tick()
			a.prof.mark("tick", n)
		case <-frame.C:
			a.prof.begin()
			a.draw()
			a.prof.mark("draw", 0)
		}
	}
}

// Close releases the profiler file.
func (a *App) Close() error {
	return a.prof.Close()
}

// handleInput applies one hotkey and reports whether the app keeps running.
func (a *App) handleInput(evt inputEvent) bool {
	switch evt.kind {
	case inputQuit:
		return false
	case inputToggle:
		if a.eng.Playing() {
			a.eng.Stop()
			a.message = "stopped"
			return true
		}
		if err := a.eng.Start(); err != nil {
			a.log.WithError(err).Error("start playback")
			a.message = "start failed: " + err.Error()
			return true
		}
		a.message = "playing"
	case inputProfile:
		ids := a.eng.Profiles()
		if evt.index < 0 || evt.index >= len(ids) {
			return true
		}
		a.eng.SelectProfile(ids[evt.index])
		a.message = "profile " + ids[evt.index]
	case inputMasterUp:
		a.eng.SetMasterVolume(a.eng.MasterVolume() + MasterStep)
		a.message = fmt.Sprintf("master %.2f", a.eng.MasterVolume())
	case inputMasterDown:
		a.eng.SetMasterVolume(a.eng.MasterVolume() - MasterStep)
		a.message = fmt.Sprintf("master %.2f", a.eng.MasterVolume())
	case inputRestart:
		a.eng.Restart()
		a.message = "restarting"
	}
	return true
}

func (a *App) draw() {
	a.ensureWidth()
	st := a.eng.Status()
	a.moveCursorHome()
	for _, line := range a.panel(st) {
		fmt.Fprint(a.out, line, "\x1b[K\n")
	}
	if a.cfg.ShowStatusBar {
		fmt.Fprint(a.out, statusBar(a.statusText(st), a.width), "\x1b[K")
	}
}

func (a *App) panel(st engine.Status) []string {
	lines := []string{a.styles.title.Render("neuroflow"), ""}
	for i, id := range a.eng.Profiles() {
		label := fmt.Sprintf("[%d] %s", i+1, id)
		if id == st.Profile {
			label = a.styles.active.Render(label)
		}
		lines = append(lines, "  "+label)
	}
	lines = append(lines, "")
	order := st.Order
	if len(order) == 0 {
		order = params.Keys()
	}
	for _, key := range order {
		v, ok := st.Params[key]
		if !ok {
			continue
		}
		lo, hi, known := params.Domain(key)
		if !known {
			continue
		}
		lines = append(lines, fmt.Sprintf("  %-12s %s %5.2f", key, meter((v-lo)/(hi-lo), 20), v))
	}
	bands := analyzer.GateBands(st.Bands, 0.001)
	lines = append(lines, "",
		fmt.Sprintf("  low  %s", meter(bands.Low, 20)),
		fmt.Sprintf("  mid  %s", meter(bands.Mid, 20)),
		fmt.Sprintf("  high %s", meter(bands.High, 20)),
		"",
		"  space play/stop  1-5 profile  +/- master  r restart  q quit",
	)
	return lines
}

func (a *App) statusText(st engine.Status) string {
	state := "stopped"
	if st.Playing {
		state = "playing"
	}
	parts := []string{
		state,
		"profile=" + st.Profile,
		fmt.Sprintf("master=%.2f", st.MasterVolume),
		fmt.Sprintf("gr=%.1fdB", st.ReductionDB),
		fmt.Sprintf("t=%.1fs", st.Time),
	}
	if st.LoudnessWarning {
		parts = append(parts, a.styles.warning.Render("TOO LOUD"))
	}
	if a.message != "" {
		parts = append(parts, a.message)
	}
	return strings.Join(parts, " | ")
}

func (a *App) ensureWidth() {
	fd := int(os.Stdout.Fd())
	if fd < 0 || !term.IsTerminal(fd) {
		return
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return
	}
	a.width = w
}

func (a *App) startInputListener(ctx context.Context) {
	if err := keyboard.Open(); err != nil {
		a.log.WithError(err).Warn("keyboard input disabled")
		a.inputEvents = nil
		return
	}

	events := make(chan inputEvent, 16)
	a.inputEvents = events

	closeOnce := &sync.Once{}
	go func() {
		<-ctx.Done()
		closeOnce.Do(func() {
			_ = keyboard.Close()
		})
	}()

	go func() {
		defer close(events)
		defer closeOnce.Do(func() {
			_ = keyboard.Close()
		})
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			evt, ok := mapKey(char, key)
			if !ok {
				continue
			}
			if evt.kind == inputQuit {
				events <- evt
				return
			}
			select {
			case events <- evt:
			default:
			}
		}
	}()
}

func mapKey(char rune, key keyboard.Key) (inputEvent, bool) {
	switch {
	case key == keyboard.KeyEsc || key == keyboard.KeyCtrlC:
		return inputEvent{kind: inputQuit}, true
	case key == keyboard.KeySpace || char == ' ':
		return inputEvent{kind: inputToggle}, true
	case char == 'q' || char == 'Q':
		return inputEvent{kind: inputQuit}, true
	case char == 'r' || char == 'R':
		return inputEvent{kind: inputRestart}, true
	case char == '+' || char == '=':
		return inputEvent{kind: inputMasterUp}, true
	case char == '-' || char == '_':
		return inputEvent{kind: inputMasterDown}, true
	case char >= '1' && char <= '9':
		return inputEvent{kind: inputProfile, index: int(char - '1')}, true
	}
	return inputEvent{}, false
}

type styles struct {
	title, active, warning lipgloss.Style
}

func newStyles(ansi bool) styles {
	if !ansi {
		return styles{title: lipgloss.NewStyle(), active: lipgloss.NewStyle(), warning: lipgloss.NewStyle()}
	}
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7FB4CA")),
		active:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00AA00")),
		warning: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#A40000")),
	}
}

func meter(v float64, width int) string {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	filled := int(v*float64(width) + 0.5)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func statusBar(text string, width int) string {
	if width <= 0 {
		return text
	}
	visible := lipgloss.Width(text)
	if visible >= width {
		return truncate(text, width)
	}
	return text + strings.Repeat(" ", width-visible)
}

func truncate(text string, width int) string {
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}
	return string(runes[:width])
}

func (a *App) clearScreen() {
	fmt.Fprint(a.out, "\x1b[2J")
	a.moveCursorHome()
}

func (a *App) moveCursorHome() {
	fmt.Fprint(a.out, "\x1b[H")
}

func (a *App) hideCursor() {
	fmt.Fprint(a.out, "\x1b[?25l")
}

func (a *App) showCursor() {
	fmt.Fprint(a.out, "\x1b[?25h")
}

func (a *App) enterAltScreen() {
	fmt.Fprint(a.out, "\x1b[?1049h")
}

func (a *App) exitAltScreen() {
	fmt.Fprint(a.out, "\x1b[?1049l\x1b[0m")
}
