package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/guidoenr/neuroflow/internal/engine"
	"github.com/guidoenr/neuroflow/internal/events"
	"github.com/guidoenr/neuroflow/internal/params"
)

type fakeController struct {
	mu       sync.Mutex
	playing  bool
	restarts int
	profile  string
	master   float64
	values   map[string]float64
}

func newFakeController() *fakeController {
	return &fakeController{profile: "deep_focus", master: 0.8, values: map[string]float64{}}
}

func (f *fakeController) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = true
	return nil
}

func (f *fakeController) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = false
}

func (f *fakeController) Restart() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restarts++
}

func (f *fakeController) UpdateParameter(key string, v float64) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v = params.Clamp(key, v)
	f.values[key] = v
	return v, true
}

func (f *fakeController) SelectProfile(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != "ocean_flow" && id != "deep_focus" {
		return false
	}
	f.profile = id
	return true
}

func (f *fakeController) SetMasterVolume(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.master = v
}

func (f *fakeController) MasterVolume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.master
}

func (f *fakeController) Profiles() []string { return []string{"deep_focus", "ocean_flow"} }

func (f *fakeController) Status() engine.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := make(map[string]float64, len(f.values))
	for k, v := range f.values {
		values[k] = v
	}
	return engine.Status{Playing: f.playing, Profile: f.profile, MasterVolume: f.master, Params: values}
}

func newTestServer(t *testing.T, bus *events.Broadcaster) (*Server, *fakeController) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	ctrl := newFakeController()
	return NewServer(ctrl, bus, Config{StatusInterval: 20 * time.Millisecond, Log: log}), ctrl
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStartStop(t *testing.T) {
	s, ctrl := newTestServer(t, nil)
	rec := post(t, s.Handler(), "/api/start", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("start status %d", rec.Code)
	}
	var st engine.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if !st.Playing || !ctrl.playing {
		t.Fatalf("expected playing")
	}
	post(t, s.Handler(), "/api/stop", "")
	if ctrl.playing {
		t.Fatalf("expected stopped")
	}
	if rec := post(t, s.Handler(), "/api/restart", ""); rec.Code != http.StatusAccepted || ctrl.restarts != 1 {
		t.Fatalf("restart code=%d restarts=%d", rec.Code, ctrl.restarts)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, nil)
	for _, path := range []string{"/api/start", "/api/stop", "/api/param", "/api/profile", "/api/master"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: status %d", path, rec.Code)
		}
	}
}

func TestParamReturnsStoredValue(t *testing.T) {
	s, ctrl := newTestServer(t, nil)
	rec := post(t, s.Handler(), "/api/param", `{"key":"volSea","value":1.7}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp ParamResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Key != params.VolSea || resp.Value != 1 || ctrl.values[params.VolSea] != 1 {
		t.Fatalf("response %+v", resp)
	}
}

func TestParamValidation(t *testing.T) {
	s, _ := newTestServer(t, nil)
	for _, body := range []string{`{"key":"volSea"}`, `{"value":0.3}`, `not json`} {
		if rec := post(t, s.Handler(), "/api/param", body); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status %d", body, rec.Code)
		}
	}
}

func TestProfileSelection(t *testing.T) {
	s, ctrl := newTestServer(t, nil)
	if rec := post(t, s.Handler(), "/api/profile", `{"id":"ocean_flow"}`); rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if ctrl.profile != "ocean_flow" {
		t.Fatalf("profile %s", ctrl.profile)
	}
	if rec := post(t, s.Handler(), "/api/profile", `{"id":"nope"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown profile status %d", rec.Code)
	}
	if ctrl.profile != "ocean_flow" {
		t.Fatalf("unknown profile changed selection to %s", ctrl.profile)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/profiles", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	var ids []string
	if err := json.Unmarshal(rec.Body.Bytes(), &ids); err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("profiles %v", ids)
	}
}

func TestMasterVolume(t *testing.T) {
	s, ctrl := newTestServer(t, nil)
	if rec := post(t, s.Handler(), "/api/master", `{"volume":0.25}`); rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if ctrl.master != 0.25 {
		t.Fatalf("master %f", ctrl.master)
	}
	if rec := post(t, s.Handler(), "/api/master", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing volume status %d", rec.Code)
	}
}

func TestIndexServed(t *testing.T) {
	s, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "neuroflow") {
		t.Fatalf("index status %d", rec.Code)
	}
}

func TestWebSocketForwardsEventsAndStatus(t *testing.T) {
	bus := events.NewBroadcaster()
	s, _ := newTestServer(t, bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.startLoops(ctx)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// The event loop subscribes asynchronously, so keep sending until a
	// flash arrives.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				bus.Notify(events.Event{Kind: events.Flash, Time: 1, Value: 0.5})
			}
		}
	}()

	var sawStatus, sawFlash bool
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for !(sawStatus && sawFlash) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v (status=%v flash=%v)", err, sawStatus, sawFlash)
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("bad frame %q: %v", data, err)
		}
		switch msg["type"] {
		case "status":
			sawStatus = true
			if _, ok := msg["playing"]; !ok {
				t.Fatalf("status frame missing playing: %s", data)
			}
		case "event":
			if msg["kind"] == string(events.Flash) {
				sawFlash = true
			}
		}
	}
}
