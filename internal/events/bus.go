// Package events publishes and persists download and memory activity.
package events

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// Bus fans events out to subscribers and appends them to an optional log.
type Bus struct {
	mu     sync.RWMutex
	byType map[string][]chan Event
	all    []chan Event
	log    *EventLog // may be nil
	logger *slog.Logger
	closed bool
}

// NewBus creates a new event bus. Pass a nil EventLog to disable persistence.
func NewBus(log *EventLog, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		byType: make(map[string][]chan Event),
		log:    log,
		logger: logger,
	}
}

// Publish persists e and delivers it without blocking. Subscribers whose
// buffers are full miss the event.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil
	}
	subs := slices.Concat(b.byType[e.EventType()], b.all)
	b.mu.RUnlock()

	if b.log != nil {
		if _, err := b.log.Append(ctx, e); err != nil {
			b.logger.Error("failed to persist event", "type", e.EventType(), "error", err)
		}
	}

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
			b.logger.Warn("subscriber channel full, dropping event",
				"type", e.EventType(),
				"entity_type", e.EntityType(),
				"entity_id", e.EntityID())
		}
	}
	return nil
}

// Subscribe returns a channel for events of a specific type.
func (b *Bus) Subscribe(eventType string, bufferSize int) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, bufferSize)
	b.byType[eventType] = append(b.byType[eventType], ch)
	return ch
}

// SubscribeAll returns a channel for all events.
func (b *Bus) SubscribeAll(bufferSize int) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, bufferSize)
	b.all = append(b.all, ch)
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	match := func(sub chan Event) bool { return sub == ch }
	for eventType, subs := range b.byType {
		if i := slices.IndexFunc(subs, match); i >= 0 {
			close(subs[i])
			b.byType[eventType] = slices.Delete(subs, i, i+1)
			return
		}
	}
	if i := slices.IndexFunc(b.all, match); i >= 0 {
		close(b.all[i])
		b.all = slices.Delete(b.all, i, i+1)
	}
}

// Close shuts down the bus and closes all subscriber channels.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.byType {
		for _, ch := range subs {
			close(ch)
		}
	}
	for _, ch := range b.all {
		close(ch)
	}
	b.byType = nil
	b.all = nil
	return nil
}
