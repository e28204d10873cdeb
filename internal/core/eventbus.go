package core

import "sync"

// EventType names a class of system event.
type EventType string

const (
	StateChangedEvent    EventType = "StateChanged"
	FronterChangedEvent  EventType = "FronterChanged"
	LayerChangedEvent    EventType = "LayerChanged"
	DeviceConnectedEvent EventType = "DeviceConnected"
	ActivityPingEvent    EventType = "ActivityPing"
	PatternChangedEvent  EventType = "PatternChanged"
	NoticeEvent          EventType = "Notice"
)

// Event is one published occurrence. The payload type is fixed per event
// type; receivers type-assert it.
type Event struct {
	Type    EventType
	Payload interface{}
}

// Notice is the payload of NoticeEvent: a short user-facing message.
type Notice struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Subscriber receives the events it registered for.
type Subscriber chan Event

const subscriberBuffer = 100

// EventBus fans events out from the agent to the control surfaces. Publish
// never blocks: a subscriber that stops draining loses events, it cannot
// stall the poll loop.
type EventBus struct {
	mu   sync.RWMutex
	subs map[EventType]map[Subscriber]struct{}
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[EventType]map[Subscriber]struct{})}
}

// Subscribe registers a new subscriber for the given event types and
// returns its channel.
func (b *EventBus) Subscribe(types ...EventType) Subscriber {
	ch := make(Subscriber, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range types {
		set, ok := b.subs[t]
		if !ok {
			set = make(map[Subscriber]struct{})
			b.subs[t] = set
		}
		set[ch] = struct{}{}
	}
	return ch
}

// Unsubscribe drops the channel's registration for the given event types.
// The channel itself is left open; events already buffered stay readable.
func (b *EventBus) Unsubscribe(ch Subscriber, types ...EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range types {
		delete(b.subs[t], ch)
	}
}

// Publish delivers the event to every subscriber of its type. Full
// subscribers are skipped; the event is dropped for them.
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[event.Type] {
		select {
		case ch <- event:
		default:
		}
	}
}
