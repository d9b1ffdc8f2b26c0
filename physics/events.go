package physics

import "github.com/milk9111/shipweld/weld"

// EventKind identifies body lifecycle events.
type EventKind string

const (
	EventBodyLoaded  EventKind = "loaded"
	EventBodyRemoved EventKind = "removed"
)

// Event is a queued body lifecycle change.
type Event struct {
	Kind EventKind
	Body weld.BodyID
	ref  *Body
}

// EventQueue holds body load and remove events raised inside solver calls
// until the space flushes them to subscribers.
type EventQueue struct {
	items []Event
}

// Push records a body event for the next flush.
func (q *EventQueue) Push(evt Event) {
	if q == nil {
		return
	}
	q.items = append(q.items, evt)
}

// Drain hands over the queued body events in the order they were raised.
// Events pushed by subscribers during a flush land in the next drain.
func (q *EventQueue) Drain() []Event {
	if q == nil || len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}

// Len returns the number of body events waiting for a flush.
func (q *EventQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.items)
}

// subscribers keeps callbacks in subscription order.
type subscribers[T any] struct {
	next    int
	entries []subscriber[T]
}

type subscriber[T any] struct {
	key int
	fn  func(T)
}

func (s *subscribers[T]) add(fn func(T)) func() {
	s.next++
	key := s.next
	s.entries = append(s.entries, subscriber[T]{key: key, fn: fn})
	return func() { s.remove(key) }
}

func (s *subscribers[T]) remove(key int) {
	for i, e := range s.entries {
		if e.key == key {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			return
		}
	}
}

func (s *subscribers[T]) emit(v T) {
	entries := append([]subscriber[T](nil), s.entries...)
	for _, e := range entries {
		e.fn(v)
	}
}

func (s *subscribers[T]) len() int {
	return len(s.entries)
}
