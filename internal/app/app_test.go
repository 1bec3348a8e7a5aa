package app

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eiannone/keyboard"
	"github.com/sirupsen/logrus"

	"github.com/guidoenr/neuroflow/internal/engine"
	"github.com/guidoenr/neuroflow/internal/params"
)

type fakeEngine struct {
	playing  bool
	startErr error
	profile  string
	master   float64
	restarts int
	ticks    int
	order    []string
}

func (f *fakeEngine) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.playing = true
	return nil
}
func (f *fakeEngine) Stop()         { f.playing = false }
func (f *fakeEngine) Restart()      { f.restarts++ }
func (f *fakeEngine) Playing() bool { return f.playing }
func (f *fakeEngine) SelectProfile(id string) bool {
	f.profile = id
	return true
}
func (f *fakeEngine) SetMasterVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	f.master = v
}
func (f *fakeEngine) MasterVolume() float64 { return f.master }
func (f *fakeEngine) Profiles() []string {
	return []string{"deep_focus", "ocean_flow", "stormy_cabin", "zen_garden", "beta_boost"}
}
func (f *fakeEngine) Status() engine.Status {
	return engine.Status{
		Playing:      f.playing,
		Profile:      f.profile,
		MasterVolume: f.master,
		Params:       map[string]float64{params.VolSea: 0.5, params.SeaSpeed: 10},
		Order:        f.order,
	}
}
func (f *fakeEngine) Tick() int {
	f.ticks++
	return 1
}

func newTestApp(t *testing.T, eng *fakeEngine, profilerPath string) (*App, *bytes.Buffer) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	var out bytes.Buffer
	a, err := New(Config{Engine: eng, Out: &out, Log: log, ShowStatusBar: true, ProfilerPath: profilerPath})
	if err != nil {
		t.Fatal(err)
	}
	return a, &out
}

func TestNewRequiresEngine(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMapKey(t *testing.T) {
	tests := []struct {
		char rune
		key  keyboard.Key
		want inputEvent
	}{
		{0, keyboard.KeySpace, inputEvent{kind: inputToggle}},
		{'q', 0, inputEvent{kind: inputQuit}},
		{0, keyboard.KeyEsc, inputEvent{kind: inputQuit}},
		{'+', 0, inputEvent{kind: inputMasterUp}},
		{'-', 0, inputEvent{kind: inputMasterDown}},
		{'r', 0, inputEvent{kind: inputRestart}},
		{'3', 0, inputEvent{kind: inputProfile, index: 2}},
	}
	for _, tt := range tests {
		got, ok := mapKey(tt.char, tt.key)
		if !ok || got != tt.want {
			t.Fatalf("mapKey(%q, %v) = %+v, %v", tt.char, tt.key, got, ok)
		}
	}
	if _, ok := mapKey('x', 0); ok {
		t.Fatalf("unmapped key accepted")
	}
}

func TestHandleInput(t *testing.T) {
	eng := &fakeEngine{profile: "deep_focus", master: 0.8}
	a, _ := newTestApp(t, eng, "")

	if !a.handleInput(inputEvent{kind: inputToggle}) || !eng.playing {
		t.Fatalf("toggle did not start")
	}
	a.handleInput(inputEvent{kind: inputToggle})
	if eng.playing {
		t.Fatalf("toggle did not stop")
	}

	a.handleInput(inputEvent{kind: inputProfile, index: 1})
	if eng.profile != "ocean_flow" {
		t.Fatalf("profile %s", eng.profile)
	}
	a.handleInput(inputEvent{kind: inputProfile, index: 8})
	if eng.profile != "ocean_flow" {
		t.Fatalf("out of range profile changed selection to %s", eng.profile)
	}

	for i := 0; i < 10; i++ {
		a.handleInput(inputEvent{kind: inputMasterUp})
	}
	if eng.master != 1 {
		t.Fatalf("master %f", eng.master)
	}
	a.handleInput(inputEvent{kind: inputMasterDown})
	if eng.master < 0.94 || eng.master > 0.96 {
		t.Fatalf("master %f", eng.master)
	}

	a.handleInput(inputEvent{kind: inputRestart})
	if eng.restarts != 1 {
		t.Fatalf("restarts %d", eng.restarts)
	}
	if a.handleInput(inputEvent{kind: inputQuit}) {
		t.Fatalf("quit should end the app")
	}
}

func TestHandleInputStartError(t *testing.T) {
	eng := &fakeEngine{startErr: errors.New("device gone")}
	a, _ := newTestApp(t, eng, "")
	if !a.handleInput(inputEvent{kind: inputToggle}) {
		t.Fatalf("start failure should not quit")
	}
	if !strings.Contains(a.message, "device gone") {
		t.Fatalf("message %q", a.message)
	}
}

func TestDrawPanel(t *testing.T) {
	eng := &fakeEngine{profile: "ocean_flow", master: 0.8, playing: true}
	a, out := newTestApp(t, eng, "")
	a.draw()
	text := out.String()
	for _, want := range []string{"[2] ocean_flow", "volSea", "seaSpeed", "profile=ocean_flow", "playing"} {
		if !strings.Contains(text, want) {
			t.Fatalf("panel missing %q:\n%s", want, text)
		}
	}
	if !strings.Contains(text, "["+strings.Repeat("#", 20)+"]") {
		t.Fatalf("seaSpeed at its maximum should show a full meter:\n%s", text)
	}
}

func TestDrawPanelFollowsStatusOrder(t *testing.T) {
	eng := &fakeEngine{profile: "ocean_flow", order: []string{params.SeaSpeed, params.VolSea}}
	a, out := newTestApp(t, eng, "")
	a.draw()
	text := out.String()
	speed, sea := strings.Index(text, "seaSpeed"), strings.Index(text, "volSea")
	if speed < 0 || sea < 0 || speed > sea {
		t.Fatalf("panel ignores status order:\n%s", text)
	}
}

func TestStatusBar(t *testing.T) {
	if got := statusBar("abc", 6); got != "abc   " {
		t.Fatalf("got %q", got)
	}
	if got := statusBar("abcdef", 3); got != "abc" {
		t.Fatalf("got %q", got)
	}
	if got := statusBar("abc", 0); got != "abc" {
		t.Fatalf("got %q", got)
	}
}

func TestMeter(t *testing.T) {
	if got := meter(0.5, 4); got != "[##..]" {
		t.Fatalf("got %q", got)
	}
	if got := meter(-1, 2); got != "[..]" {
		t.Fatalf("got %q", got)
	}
	if got := meter(3, 2); got != "[##]" {
		t.Fatalf("got %q", got)
	}
}

func TestProfilerWritesRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.csv")
	a, _ := newTestApp(t, &fakeEngine{}, path)
	a.prof.begin()
	a.prof.mark("tick", 3)
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 || lines[0] != "timestamp,section,tasks,delta_ms" {
		t.Fatalf("csv %q", data)
	}
	if !strings.Contains(lines[1], ",tick,3,") {
		t.Fatalf("row %q", lines[1])
	}
}

func TestProfilerDisabled(t *testing.T) {
	var p *profiler
	p.begin()
	p.mark("tick", 1)
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
}
