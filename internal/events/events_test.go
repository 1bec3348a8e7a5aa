package events

import (
	"encoding/json"
	"testing"
)

func TestBroadcasterFansOut(t *testing.T) {
	b := NewBroadcaster()
	a, cancelA := b.Subscribe(4)
	c, cancelC := b.Subscribe(4)
	defer cancelA()
	defer cancelC()

	b.Notify(Event{Kind: Flash, Time: 1, Value: 0.3})
	for _, ch := range []<-chan Event{a, c} {
		select {
		case ev := <-ch:
			if ev.Kind != Flash || ev.Value != 0.3 {
				t.Fatalf("unexpected event %+v", ev)
			}
		default:
			t.Fatalf("subscriber did not receive event")
		}
	}
}

func TestBroadcasterDropsOnFullBuffer(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe(1)
	defer cancel()
	b.Notify(Event{Kind: Pulse, Value: 220})
	b.Notify(Event{Kind: Pulse, Value: 261.63})
	if b.Dropped() != 1 {
		t.Fatalf("dropped=%d want 1", b.Dropped())
	}
	if ev := <-ch; ev.Value != 220 {
		t.Fatalf("kept the wrong event: %+v", ev)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe(1)
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed")
	}
	b.Notify(Event{Kind: State, Value: 1})
}

func TestMarshalIncludesType(t *testing.T) {
	data, err := Marshal(Event{Kind: Loudness, Time: 2.5, Value: 1})
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["type"] != "event" || got["kind"] != "loudness" || got["value"] != 1.0 {
		t.Fatalf("unexpected payload %s", data)
	}
}
