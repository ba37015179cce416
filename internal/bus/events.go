package bus

import (
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// EventTicketDispatch carries a serialized ticket to the ticketing sink.
const EventTicketDispatch = "ticket.dispatch"

// Event is an in-process notification published on the EventBus.
type Event struct {
	Type      string
	Payload   any
	Timestamp time.Time
}

// EventHandler is a callback for events.
type EventHandler func(Event)

type subscription struct {
	id      string
	handler EventHandler
}

// EventBus fans side effects out to topic subscribers. EmitAsync is
// fire-and-forget; Wait lets an entry point drain in-flight handlers before
// the process exits or is frozen.
type EventBus struct {
	mu       sync.RWMutex
	topics   map[string][]subscription
	nextID   atomic.Uint64
	inflight sync.WaitGroup
	logger   *slog.Logger
}

func NewEventBus(logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{topics: make(map[string][]subscription), logger: logger}
}

// On subscribes handler to eventType; "*" receives every event. The returned
// id is unique for the bus lifetime and is what Off expects.
func (eb *EventBus) On(eventType string, handler EventHandler) string {
	id := eventType + "#" + strconv.FormatUint(eb.nextID.Add(1), 10)
	eb.mu.Lock()
	eb.topics[eventType] = append(eb.topics[eventType], subscription{id: id, handler: handler})
	eb.mu.Unlock()
	return id
}

// Off removes a subscription. Unknown ids are ignored.
func (eb *EventBus) Off(eventType, id string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	subs := eb.topics[eventType]
	for i, s := range subs {
		if s.id == id {
			eb.topics[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Emit runs the topic's handlers, then the wildcard ones, on the calling
// goroutine. A panicking handler is logged and skipped.
func (eb *EventBus) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.RLock()
	subs := make([]subscription, 0, len(eb.topics[event.Type])+len(eb.topics["*"]))
	subs = append(subs, eb.topics[event.Type]...)
	subs = append(subs, eb.topics["*"]...)
	eb.mu.RUnlock()

	for _, s := range subs {
		eb.invoke(s, event)
	}
}

func (eb *EventBus) invoke(s subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			eb.logger.Error("event handler panic", "event", event.Type, "handler", s.id, "panic", r)
		}
	}()
	s.handler(event)
}

// EmitAsync delivers the event on a new goroutine and returns immediately.
func (eb *EventBus) EmitAsync(event Event) {
	eb.inflight.Add(1)
	go func() {
		defer eb.inflight.Done()
		eb.Emit(event)
	}()
}

// Wait blocks until every EmitAsync call issued so far has been handled.
func (eb *EventBus) Wait() {
	eb.inflight.Wait()
}
