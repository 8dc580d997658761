package events

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Bus. Tests assert on published events; the
// websocket hub can also subscribe to it when kafka is not configured.
type MemoryBus struct {
	mu   sync.Mutex
	subs []chan Event
	log  []Event
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (m *MemoryBus) Publish(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, event)
	for _, ch := range m.subs {
		select {
		case ch <- event:
		default: // slow subscriber drops; invalidations are recomputed anyway
		}
	}
	return nil
}

// Subscribe returns a channel receiving every event published after the call.
func (m *MemoryBus) Subscribe() <-chan Event {
	ch := make(chan Event, 64)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// Events returns a copy of everything published so far.
func (m *MemoryBus) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.log))
	copy(out, m.log)
	return out
}

// Consume mirrors KafkaBus.Consume so the hub can run on either bus.
func (m *MemoryBus) Consume(ctx context.Context, handler func(Event) error) error {
	ch := m.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-ch:
			if err := handler(event); err != nil {
				return err
			}
		}
	}
}
