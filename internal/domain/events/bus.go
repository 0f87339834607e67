package events

import (
	evbus "github.com/asaskevich/EventBus"
)

// Bus is a thin wrapper over the process-wide event bus, keeping the
// auth domain and the websocket transport decoupled.
type Bus struct {
	bus evbus.Bus
}

// NewBus creates an isolated bus instance.
func NewBus() *Bus {
	return &Bus{bus: evbus.New()}
}

func (b *Bus) Publish(topic string, args ...any) {
	b.bus.Publish(topic, args...)
}

func (b *Bus) Subscribe(topic string, fn any) error {
	return b.bus.Subscribe(topic, fn)
}

// SubscribeAsync registers a handler run on its own goroutine; transactional
// ordering is preserved per topic.
func (b *Bus) SubscribeAsync(topic string, fn any) error {
	return b.bus.SubscribeAsync(topic, fn, true)
}

func (b *Bus) Unsubscribe(topic string, fn any) error {
	return b.bus.Unsubscribe(topic, fn)
}

// WaitAsync blocks until all async handlers have drained.
func (b *Bus) WaitAsync() {
	b.bus.WaitAsync()
}
