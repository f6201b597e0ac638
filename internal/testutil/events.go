package testutil

import (
	"context"
	"sync"

	"github.com/YelzhanWeb/canteen/internal/domain"
)

// Emitted is one event as seen by a Broadcaster.
type Emitted struct {
	Event    domain.Event
	Payload  any
	Channels []string
}

// EventLog is a Broadcaster that remembers what it was asked to send.
type EventLog struct {
	mu     sync.Mutex
	events []Emitted
}

func (l *EventLog) Emit(_ context.Context, event domain.Event, payload any, channels ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, Emitted{Event: event, Payload: payload, Channels: append([]string(nil), channels...)})
}

func (l *EventLog) All() []Emitted {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Emitted(nil), l.events...)
}

// Find returns the first emitted event with the given name.
func (l *EventLog) Find(event domain.Event) (Emitted, bool) {
	for _, e := range l.All() {
		if e.Event == event {
			return e, true
		}
	}
	return Emitted{}, false
}

// Count returns how many times event was emitted.
func (l *EventLog) Count(event domain.Event) int {
	n := 0
	for _, e := range l.All() {
		if e.Event == event {
			n++
		}
	}
	return n
}

func (l *EventLog) Reset() {
	l.mu.Lock()
	l.events = nil
	l.mu.Unlock()
}
