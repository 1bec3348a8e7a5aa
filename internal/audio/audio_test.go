package audio

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(Config{Backend: "alsa-direct"}, func([]float32) {})
	if !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestHeadlessPullsWhileStarted(t *testing.T) {
	var calls atomic.Int64
	sink, err := Open(Config{Backend: BackendHeadless, SampleRate: 8000, FramesPerBuffer: 80}, func(out []float32) {
		if len(out) != 160 {
			t.Errorf("buffer length %d", len(out))
		}
		calls.Add(1)
	})
	if err != nil {
		t.Fatal(err)
	}
	h := sink.(*Headless)
	if h.SampleRate() != 8000 {
		t.Fatalf("sample rate %f", h.SampleRate())
	}
	if err := h.Start(); err != nil {
		t.Fatal(err)
	}
	if err := h.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := h.Stop(); err != nil {
		t.Fatal(err)
	}
	n := calls.Load()
	if n == 0 {
		t.Fatalf("render never called")
	}
	if h.Rendered() != n*80 {
		t.Fatalf("rendered=%d calls=%d", h.Rendered(), n)
	}
	time.Sleep(50 * time.Millisecond)
	if calls.Load() != n {
		t.Fatalf("render called after Stop")
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSortDevices(t *testing.T) {
	devices := []Device{
		{Name: "b", HostAPI: "ALSA"},
		{Name: "a", HostAPI: "JACK"},
		{Name: "a", HostAPI: "ALSA"},
	}
	sortDevices(devices)
	if devices[0].Name != "a" || devices[0].HostAPI != "ALSA" || devices[2].HostAPI != "JACK" {
		t.Fatalf("unexpected order %+v", devices)
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}.withDefaults()
	if c.SampleRate != defaultSampleRate || c.FramesPerBuffer != defaultFramesPerBuffer || c.Backend != BackendPortAudio {
		t.Fatalf("defaults %+v", c)
	}
}
