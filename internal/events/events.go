// Package events is a small named-channel publish/subscribe bus. A client owns
// one bus and every voice session owns its own.
package events

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Event is a single notification. Data depends on the event name.
type Event struct {
	Name string
	Data any
}

type Handler func(Event)

type subscription struct {
	id   uint64
	fn   Handler
	once bool
}

// Bus delivers events to subscribers in registration order.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string][]subscription
	logger *slog.Logger
}

func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[string][]subscription),
		logger: logger,
	}
}

// On registers fn for name and returns a function that removes it again.
func (b *Bus) On(name string, fn Handler) func() {
	return b.subscribe(name, fn, false)
}

// Once registers fn for the next event on name only.
func (b *Bus) Once(name string, fn Handler) func() {
	return b.subscribe(name, fn, true)
}

func (b *Bus) subscribe(name string, fn Handler, once bool) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], subscription{id: id, fn: fn, once: once})

	var removed sync.Once
	return func() {
		removed.Do(func() { b.remove(name, id) })
	}
}

func (b *Bus) remove(name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[name] = slices.DeleteFunc(b.subs[name], func(s subscription) bool {
		return s.id == id
	})
	if len(b.subs[name]) == 0 {
		delete(b.subs, name)
	}
}

// Emit calls every subscriber of name synchronously. Subscribers registered
// while an emit is running only see later events. A panicking subscriber is
// logged and does not stop delivery to the rest.
func (b *Bus) Emit(name string, data any) {
	b.mu.Lock()
	subs := slices.Clone(b.subs[name])
	if slices.ContainsFunc(subs, func(s subscription) bool { return s.once }) {
		b.subs[name] = slices.DeleteFunc(b.subs[name], func(s subscription) bool { return s.once })
		if len(b.subs[name]) == 0 {
			delete(b.subs, name)
		}
	}
	b.mu.Unlock()

	evt := Event{Name: name, Data: data}
	for _, s := range subs {
		b.deliver(s, evt)
	}
}

func (b *Bus) deliver(s subscription, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "event", evt.Name, "panic", fmt.Sprint(r))
		}
	}()
	s.fn(evt)
}

// Count returns the number of subscribers for name.
func (b *Bus) Count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[name])
}

// Clear removes every subscriber.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.subs)
}
