package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
// A nil *Bus is valid and drops every event.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(ChildSpawnedEvent{...})
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case TaskStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case ChildSpawnedEvent:
		event.Publish(b.dispatcher, e)
	case ChildSpawnFailedEvent:
		event.Publish(b.dispatcher, e)
	case ChildExitedEvent:
		event.Publish(b.dispatcher, e)
	case ChildKilledEvent:
		event.Publish(b.dispatcher, e)
	case TaskRestartedEvent:
		event.Publish(b.dispatcher, e)
	case ConfigReloadedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e ChildExitedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	if b == nil {
		return func() {}
	}
	switch h := handler.(type) {
	case func(TaskStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ChildSpawnedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ChildSpawnFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ChildExitedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ChildKilledEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TaskRestartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ConfigReloadedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// SubscribeToChannel bridges a typed subscription to a channel.
// Events are dropped when the channel is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- T) func() {
	if bus == nil {
		return func() {}
	}
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}

// Forward is SubscribeToChannel for a channel shared by several event types.
func Forward[T Event](bus *Bus, ch chan<- any) func() {
	if bus == nil {
		return func() {}
	}
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
