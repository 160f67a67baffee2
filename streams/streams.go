// Package streams implements the multicast event streams the state container
// is built on: hot subjects for the action and state buses, cold composable
// views with the usual operators, and disposable subscriptions.
//
// Delivery is synchronous: Next returns only after every subscriber ran. That
// property is load-bearing for the container — a dispatch call must observe
// the reduced state before it returns — so this package trades scheduling
// flexibility for in-order, same-goroutine delivery. Handlers may subscribe,
// dispose, and emit re-entrantly from inside a delivery.
//
// Error semantics: an error reaching a derived stream terminates that one
// subscription permanently; the upstream subject and its other subscribers
// are unaffected. A subject that receives Error or Complete is terminal for
// all subscribers, and late subscribers get the terminal event immediately.
package streams

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Observer receives the events of one subscription. Any field may be nil.
type Observer[T any] struct {
	Next     func(T)
	Error    func(error)
	Complete func()
}

// Subscription is one observer's attachment to a stream.
type Subscription struct {
	disposed atomic.Bool
	dispose  func()
}

func newSubscription(dispose func()) *Subscription {
	return &Subscription{dispose: dispose}
}

func terminalSubscription() *Subscription {
	s := newSubscription(nil)
	s.disposed.Store(true)
	return s
}

// Dispose detaches the observer. Idempotent, safe to call from inside a
// delivery, and nil-safe.
func (s *Subscription) Dispose() {
	if s == nil || !s.disposed.CompareAndSwap(false, true) {
		return
	}
	if s.dispose != nil {
		s.dispose()
	}
}

// Disposed reports whether Dispose has been called.
func (s *Subscription) Disposed() bool { return s != nil && s.disposed.Load() }

// Stream is a composable source of T values. Operators derive new Streams;
// subjects expose their multicast side through Stream().
type Stream[T any] struct {
	subscribe func(Observer[T]) *Subscription
}

// Subscribe attaches obs and returns its subscription.
func (s *Stream[T]) Subscribe(obs Observer[T]) *Subscription {
	if s == nil || s.subscribe == nil {
		return terminalSubscription()
	}
	return s.subscribe(obs)
}

// Subject is a hot multicast stream. Values pushed with Next are delivered
// synchronously, in subscription order, to every active subscriber.
type Subject[T any] struct {
	mu   sync.Mutex
	subs []*subjectSub[T]
	done bool
	err  error
}

type subjectSub[T any] struct {
	obs  Observer[T]
	dead atomic.Bool
}

// NewSubject returns an empty, live subject.
func NewSubject[T any]() *Subject[T] { return &Subject[T]{} }

// Subscribe attaches obs. On an already-terminal subject, obs immediately
// receives the terminal event and the returned subscription is disposed.
func (s *Subject[T]) Subscribe(obs Observer[T]) *Subscription {
	s.mu.Lock()
	if s.done {
		err := s.err
		s.mu.Unlock()
		if err != nil {
			if obs.Error != nil {
				obs.Error(err)
			}
		} else if obs.Complete != nil {
			obs.Complete()
		}
		return terminalSubscription()
	}
	entry := &subjectSub[T]{obs: obs}
	s.subs = append(s.subs, entry)
	s.mu.Unlock()

	return newSubscription(func() {
		entry.dead.Store(true)
		s.remove(entry)
	})
}

// Stream returns the composable view of the subject.
func (s *Subject[T]) Stream() *Stream[T] {
	return &Stream[T]{subscribe: s.Subscribe}
}

// Next delivers v to every active subscriber. Dropped once terminal.
func (s *Subject[T]) Next(v T) {
	for _, entry := range s.snapshot() {
		if entry.dead.Load() || entry.obs.Next == nil {
			continue
		}
		entry.obs.Next(v)
	}
}

// Error terminates the subject, delivering err to every active subscriber.
func (s *Subject[T]) Error(err error) {
	for _, entry := range s.terminate(err) {
		if entry.dead.Swap(true) {
			continue
		}
		if entry.obs.Error != nil {
			entry.obs.Error(err)
		}
	}
}

// Complete terminates the subject, completing every active subscriber.
func (s *Subject[T]) Complete() {
	for _, entry := range s.terminate(nil) {
		if entry.dead.Swap(true) {
			continue
		}
		if entry.obs.Complete != nil {
			entry.obs.Complete()
		}
	}
}

// snapshot copies the live subscriber list so delivery happens without the
// lock: handlers may re-enter the subject freely.
func (s *Subject[T]) snapshot() []*subjectSub[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	out := make([]*subjectSub[T], len(s.subs))
	copy(out, s.subs)
	return out
}

func (s *Subject[T]) terminate(err error) []*subjectSub[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = true
	s.err = err
	out := s.subs
	s.subs = nil
	return out
}

func (s *Subject[T]) remove(entry *subjectSub[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.subs {
		if e == entry {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// CallbackPanicError wraps a panic recovered from a user callback inside an
// operator; it is delivered on the subscription's error path.
type CallbackPanicError struct {
	Value any
}

func (e *CallbackPanicError) Error() string {
	return fmt.Sprintf("stream callback panicked: %v", e.Value)
}

func capturePanic(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CallbackPanicError{Value: r}
		}
	}()
	fn()
	return nil
}
