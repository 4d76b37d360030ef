// Package state provides the observable container the session, data and
// navigation stores are built on.
package state

import "sync"

// Store holds a value of type S behind its own lock. Every change is one
// transition produced by Update; listeners run after the lock is released
// and never see versions out of order.
type Store[S any] struct {
	mu      sync.RWMutex
	state   S
	version uint64

	notifyMu  sync.Mutex
	listeners map[uint64]*listener[S]
	nextID    uint64
}

type listener[S any] struct {
	fn        func(S)
	delivered uint64
}

func New[S any](initial S) *Store[S] {
	return &Store[S]{
		state:     initial,
		listeners: make(map[uint64]*listener[S]),
	}
}

func (s *Store[S]) Get() S {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns the current state together with its version.
func (s *Store[S]) Snapshot() (S, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.version
}

// Update derives the next state from the state current at commit time.
// fn runs under the store's lock and must not call back into the store.
func (s *Store[S]) Update(fn func(S) S) S {
	s.mu.Lock()
	next := fn(s.state)
	s.state = next
	s.version++
	version := s.version
	s.mu.Unlock()

	s.notify(next, version)
	return next
}

func (s *Store[S]) notify(value S, version uint64) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	for _, l := range s.listeners {
		if l.delivered >= version {
			continue
		}
		l.delivered = version
		l.fn(value)
	}
}

// Subscribe registers fn for every committed transition. The returned
// function removes the subscription. fn may read any store but must not
// update or subscribe to this one.
func (s *Store[S]) Subscribe(fn func(S)) func() {
	_, version := s.Snapshot()

	s.notifyMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = &listener[S]{fn: fn, delivered: version}
	s.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.notifyMu.Lock()
			delete(s.listeners, id)
			s.notifyMu.Unlock()
		})
	}
}

// Listeners reports the number of active subscriptions.
func (s *Store[S]) Listeners() int {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	return len(s.listeners)
}

// Select subscribes to a projection of the state. fn is invoked only when
// the projected value differs from the last one seen according to equal.
func Select[S, T any](s *Store[S], project func(S) T, equal func(a, b T) bool, fn func(T)) func() {
	var mu sync.Mutex
	last := project(s.Get())
	return s.Subscribe(func(value S) {
		next := project(value)
		mu.Lock()
		changed := !equal(last, next)
		if changed {
			last = next
		}
		mu.Unlock()
		if changed {
			fn(next)
		}
	})
}

// Equal is a convenience equality for comparable projections.
func Equal[T comparable](a, b T) bool {
	return a == b
}
