package events

import (
	"testing"
	"time"

	"smc-signal-engine/internal/signal"
)

func waitFor(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for event delivery")
		return Event{}
	}
}

func TestBusDeliversToTypedSubscriber(t *testing.T) {
	bus := NewBus()
	got := make(chan Event, 1)

	bus.Subscribe(EventSignalEmitted, func(ev Event) { got <- ev })
	bus.Publish(Event{Type: EventSignalEmitted})

	ev := waitFor(t, got)
	if ev.Type != EventSignalEmitted {
		t.Errorf("Expected %s, got %s", EventSignalEmitted, ev.Type)
	}
	if ev.Timestamp.IsZero() {
		t.Error("Publish must stamp events")
	}
}

func TestBusTypedSubscriberFiltersOtherTypes(t *testing.T) {
	bus := NewBus()
	got := make(chan Event, 1)

	bus.Subscribe(EventSignalEmitted, func(ev Event) { got <- ev })
	bus.Publish(Event{Type: EventNoTrade})

	select {
	case ev := <-got:
		t.Errorf("Subscriber received a foreign event type: %s", ev.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBusAllSubscriberSeesEverything(t *testing.T) {
	bus := NewBus()
	got := make(chan Event, 2)

	bus.SubscribeAll(func(ev Event) { got <- ev })
	bus.Publish(Event{Type: EventEngineStarted})
	bus.Publish(Event{Type: EventNoTrade})

	seen := map[EventType]bool{}
	seen[waitFor(t, got).Type] = true
	seen[waitFor(t, got).Type] = true

	if !seen[EventEngineStarted] || !seen[EventNoTrade] {
		t.Errorf("Expected both event types, got %v", seen)
	}
}

func TestPublishDecisionPicksEventType(t *testing.T) {
	bus := NewBus()
	got := make(chan Event, 1)
	bus.SubscribeAll(func(ev Event) { got <- ev })

	bus.PublishDecision(signal.Decision{Signal: &signal.Signal{Symbol: "BTCUSDT"}})
	if ev := waitFor(t, got); ev.Type != EventSignalEmitted {
		t.Errorf("An emitted decision must publish %s, got %s", EventSignalEmitted, ev.Type)
	}

	bus.PublishDecision(signal.Decision{NoTrade: &signal.NoTrade{Symbol: "BTCUSDT"}})
	if ev := waitFor(t, got); ev.Type != EventNoTrade {
		t.Errorf("A no-trade decision must publish %s, got %s", EventNoTrade, ev.Type)
	}
}
