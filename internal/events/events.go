// Package events carries one-shot engine signals (loudness warnings, thunder
// flashes, synth pulses, play state) to whatever UI is listening.
package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
)

// Kind identifies an event.
type Kind string

const (
	// Loudness carries Value 1 when the warning is raised and 0 when cleared.
	Loudness Kind = "loudness"
	// Flash fires on every thunder strike; Value is the strike pan.
	Flash Kind = "flash"
	// Pulse fires on every synth note; Value is the note frequency in Hz.
	Pulse Kind = "pulse"
	// State fires on play state changes; Value is 1 when playing.
	State Kind = "state"
)

// Event is a single notification. Time is the audio clock in seconds.
type Event struct {
	Kind  Kind    `json:"kind"`
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// Notifier receives engine events. Implementations must not block.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

// Notify calls f(ev).
func (f NotifierFunc) Notify(ev Event) { f(ev) }

// Discard drops every event.
var Discard Notifier = NotifierFunc(func(Event) {})

// Broadcaster fans events out to subscribers. Slow subscribers lose events
// instead of stalling the sender.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[chan Event]struct{}
	dropped atomic.Uint64
}

// NewBroadcaster returns a broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a channel receiving future events and a function that
// unsubscribes and closes it.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 32
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Notify implements Notifier.
func (b *Broadcaster) Notify(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many deliveries were skipped on full buffers.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Marshal encodes ev the way it is pushed to websocket clients.
func Marshal(ev Event) ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Event
	}{Type: "event", Event: ev})
}
