package reactive

import "reflect"

// signalBase provides subscriber management shared by Signal and Memo.
type signalBase struct {
	id    uint64
	graph *Graph

	// subs are the listeners subscribed to this node, in subscription order.
	subs []Listener
}

// subscribe adds a listener, deduplicating by listener ID.
func (s *signalBase) subscribe(l Listener) {
	if l == nil {
		return
	}
	lid := l.ID()
	for _, existing := range s.subs {
		if existing.ID() == lid {
			return
		}
	}
	s.subs = append(s.subs, l)
}

// unsubscribe removes a listener, preserving the order of the rest.
func (s *signalBase) unsubscribe(l Listener) {
	if l == nil {
		return
	}
	lid := l.ID()
	for i, existing := range s.subs {
		if existing.ID() == lid {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// notifySubscribers marks every subscriber dirty.
// The slice is copied first so listeners may unsubscribe while notified.
func (s *signalBase) notifySubscribers() {
	if len(s.subs) == 0 {
		return
	}
	subs := make([]Listener, len(s.subs))
	copy(subs, s.subs)
	s.graph.notify(subs)
}

// Signal is a settable reactive value.
type Signal[T any] struct {
	base  signalBase
	value T

	// equal decides whether a Set changes the value. Nil means defaultEquals.
	equal func(T, T) bool
}

// NewSignal creates a signal in g with the given initial value.
func NewSignal[T any](g *Graph, initial T) *Signal[T] {
	return &Signal[T]{
		base:  signalBase{id: g.nextID(), graph: g},
		value: initial,
	}
}

// Get returns the current value.
func (s *Signal[T]) Get() T {
	return s.value
}

// Set updates the value and notifies subscribers if it changed.
// It reports whether the value changed.
func (s *Signal[T]) Set(value T) bool {
	if s.equals(s.value, value) {
		return false
	}
	s.value = value
	s.base.notifySubscribers()
	return true
}

// Update replaces the value with fn(current).
func (s *Signal[T]) Update(fn func(T) T) bool {
	return s.Set(fn(s.value))
}

// WithEquals configures a custom equality function.
func (s *Signal[T]) WithEquals(fn func(T, T) bool) *Signal[T] {
	s.equal = fn
	return s
}

// ID returns the unique identifier of the signal within its graph.
func (s *Signal[T]) ID() uint64 {
	return s.base.id
}

func (s *Signal[T]) subscribe(l Listener)   { s.base.subscribe(l) }
func (s *Signal[T]) unsubscribe(l Listener) { s.base.unsubscribe(l) }

func (s *Signal[T]) equals(a, b T) bool {
	if s.equal != nil {
		return s.equal(a, b)
	}
	return defaultEquals(a, b)
}

// defaultEquals uses == for common comparable types and reflect.DeepEqual
// for everything else.
func defaultEquals[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		return av == any(b).(int)
	case int64:
		return av == any(b).(int64)
	case uint8:
		return av == any(b).(uint8)
	case uint64:
		return av == any(b).(uint64)
	case float64:
		return av == any(b).(float64)
	case string:
		return av == any(b).(string)
	case bool:
		return av == any(b).(bool)
	default:
		return reflect.DeepEqual(a, b)
	}
}
