package events

import (
	"sync"
	"time"

	"smc-signal-engine/internal/signal"
)

// EventType represents the engine's event kinds
type EventType string

const (
	EventSignalEmitted EventType = "SIGNAL_EMITTED"
	EventNoTrade       EventType = "NO_TRADE"
	EventEngineStarted EventType = "ENGINE_STARTED"
	EventEngineStopped EventType = "ENGINE_STOPPED"
)

// Event carries one evaluation outcome or lifecycle change
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Decision  signal.Decision `json:"decision,omitempty"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// Bus manages event publishing and subscriptions
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[EventType][]Subscriber),
	}
}

// Subscribe registers a subscriber for a specific event type
func (b *Bus) Subscribe(eventType EventType, subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (b *Bus) SubscribeAll(subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.allSubs = append(b.allSubs, subscriber)
}

// Publish sends an event to all matching subscribers. Delivery is
// asynchronous so a slow consumer never stalls the pipeline.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, sub := range b.subscribers[event.Type] {
		go sub(event)
	}
	for _, sub := range b.allSubs {
		go sub(event)
	}
}

// PublishDecision publishes an evaluation outcome with the matching type
func (b *Bus) PublishDecision(dec signal.Decision) {
	eventType := EventNoTrade
	if dec.Emitted() {
		eventType = EventSignalEmitted
	}
	b.Publish(Event{Type: eventType, Decision: dec})
}
