package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType indicates which part of the game lifecycle an event reports.
type EventType string

const (
	// Connection events
	EventClientAdd EventType = "client_add"
	EventClientDel EventType = "client_del"

	// Server events
	EventInit      EventType = "init"
	EventRestart   EventType = "restart"
	EventMapChange EventType = "map_change"
	EventPeriodic  EventType = "periodic"

	// Game/Round events
	EventGameStart         EventType = "game_start"
	EventGameEnd           EventType = "game_end"
	EventRoundStart        EventType = "round_start"
	EventRoundEnd          EventType = "round_end"
	EventObjectiveCaptured EventType = "objective_captured"

	// Counterattack events
	EventCounterAttackStart EventType = "counterattack_start"
	EventCounterAttackStop  EventType = "counterattack_stop"
)

// EventTypes lists every known lifecycle event in dispatch-table order.
var EventTypes = []EventType{
	EventClientAdd,
	EventClientDel,
	EventInit,
	EventRestart,
	EventMapChange,
	EventGameStart,
	EventGameEnd,
	EventRoundStart,
	EventRoundEnd,
	EventObjectiveCaptured,
	EventCounterAttackStart,
	EventCounterAttackStop,
	EventPeriodic,
}

// ParseEventType resolves a textual event name. Dashes are accepted in place of underscores.
func ParseEventType(name string) (EventType, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for _, t := range EventTypes {
		if string(t) == normalized {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown lifecycle event %q", name)
}

// Event is a single lifecycle notification.
type Event struct {
	ID        string    // Unique event identifier
	Type      EventType // Which lifecycle step occurred
	Payload   string    // Opaque text carried with the event (player name, map, etc.)
	Timestamp time.Time // When the event was observed
}

// NewEvent creates a new event with an ID and timestamp populated.
func NewEvent(eventType EventType, payload string) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Handler reacts to a published event.
type Handler func(ctx context.Context, event Event)

type typedHandler struct {
	handle    int
	eventType EventType
	callback  Handler
}

// Bus provides a synchronous publish/subscribe implementation with type filtering.
type Bus struct {
	mu         sync.RWMutex
	handlers   []handlerEntry
	typed      map[EventType][]typedHandler
	nextHandle int
}

type handlerEntry struct {
	handle   int
	callback Handler
}

// NewBus constructs a fresh bus.
func NewBus() *Bus {
	return &Bus{
		typed: make(map[EventType][]typedHandler),
	}
}

// Subscribe registers a handler for all events and returns a handle.
func (bus *Bus) Subscribe(handler Handler) int {
	if handler == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.handlers = append(bus.handlers, handlerEntry{handle: handle, callback: handler})
	return handle
}

// SubscribeTyped registers a handler for a specific event type.
func (bus *Bus) SubscribeTyped(eventType EventType, handler Handler) int {
	if handler == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typed[eventType] = append(bus.typed[eventType], typedHandler{
		handle:    handle,
		eventType: eventType,
		callback:  handler,
	})
	return handle
}

// Unsubscribe removes the handler identified by the provided handle.
func (bus *Bus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for i, entry := range bus.handlers {
		if entry.handle == handle {
			bus.handlers = append(bus.handlers[:i], bus.handlers[i+1:]...)
			return
		}
	}
	for eventType, handlers := range bus.typed {
		for i := len(handlers) - 1; i >= 0; i-- {
			if handlers[i].handle == handle {
				bus.typed[eventType] = append(handlers[:i], handlers[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event to all registered handlers synchronously.
// All-event handlers run first in subscription order, then typed handlers.
func (bus *Bus) Publish(ctx context.Context, event Event) {
	bus.mu.RLock()
	handlers := make([]Handler, 0, len(bus.handlers)+len(bus.typed[event.Type]))
	for _, entry := range bus.handlers {
		handlers = append(handlers, entry.callback)
	}
	for _, entry := range bus.typed[event.Type] {
		handlers = append(handlers, entry.callback)
	}
	bus.mu.RUnlock()

	ctx = ContextWithEvent(ctx, event)
	for _, handler := range handlers {
		handler(ctx, event)
	}
}

type eventKey struct{}

// ContextWithEvent returns a copy of ctx carrying the event being dispatched.
func ContextWithEvent(ctx context.Context, event Event) context.Context {
	return context.WithValue(ctx, eventKey{}, event)
}

// EventFromContext returns the event being dispatched, if any.
func EventFromContext(ctx context.Context) (Event, bool) {
	event, ok := ctx.Value(eventKey{}).(Event)
	return event, ok
}
