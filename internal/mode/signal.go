// Package mode holds the document-wide editable/locked flag that every
// exercise widget observes.
package mode

import "sync"

// Listener receives the new value after a change.
type Listener func(editable bool)

// Signal is an observable boolean: true while the document is editable
// (author mode), false while it is locked (learner mode). Listeners run on
// the goroutine that called Set, in subscription order, after the new value
// is visible to Editable.
type Signal struct {
	mu        sync.RWMutex
	editable  bool
	nextID    uint64
	listeners []entry
}

type entry struct {
	id uint64
	fn Listener
}

// NewSignal creates a signal with an initial value.
func NewSignal(editable bool) *Signal {
	return &Signal{editable: editable}
}

// Editable returns the current value.
func (s *Signal) Editable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editable
}

// Set stores v and notifies listeners. Setting the current value notifies
// nobody and returns false.
func (s *Signal) Set(v bool) bool {
	s.mu.Lock()
	if s.editable == v {
		s.mu.Unlock()
		return false
	}
	s.editable = v
	listeners := make([]Listener, len(s.listeners))
	for i, e := range s.listeners {
		listeners[i] = e.fn
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(v)
	}
	return true
}

// Subscribe registers fn. The returned subscription must be released with
// Unsubscribe when the observer goes away.
func (s *Signal) Subscribe(fn Listener) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, entry{id: id, fn: fn})

	return &Subscription{release: func() { s.remove(id) }}
}

// Subscribers returns the number of live subscriptions.
func (s *Signal) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

func (s *Signal) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.listeners {
		if e.id == id {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// Subscription is a handle on one registered listener. It does not own the
// signal; releasing it only detaches the listener.
type Subscription struct {
	once    sync.Once
	release func()
}

// Unsubscribe detaches the listener. Calling it more than once is safe.
func (sub *Subscription) Unsubscribe() {
	if sub == nil {
		return
	}
	sub.once.Do(sub.release)
}
