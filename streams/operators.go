package streams

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/storexkit/storex-go/scheduler"
)

// link is the downstream half of a derived subscription: it forwards values
// until the subscription dies, and on error or completion detaches from the
// upstream permanently.
type link[T any] struct {
	obs      Observer[T]
	dead     atomic.Bool
	mu       sync.Mutex
	upstream *Subscription
}

func newLink[T any](obs Observer[T]) *link[T] {
	return &link[T]{obs: obs}
}

func (l *link[T]) emit(v T) {
	if l.dead.Load() {
		return
	}
	if l.obs.Next != nil {
		l.obs.Next(v)
	}
}

func (l *link[T]) fail(err error) {
	if l.dead.Swap(true) {
		return
	}
	l.detach()
	if l.obs.Error != nil {
		l.obs.Error(err)
	}
}

func (l *link[T]) complete() {
	if l.dead.Swap(true) {
		return
	}
	l.detach()
	if l.obs.Complete != nil {
		l.obs.Complete()
	}
}

func (l *link[T]) attach(up *Subscription) {
	l.mu.Lock()
	l.upstream = up
	dead := l.dead.Load()
	l.mu.Unlock()
	if dead {
		up.Dispose()
	}
}

func (l *link[T]) detach() {
	l.mu.Lock()
	up := l.upstream
	l.mu.Unlock()
	up.Dispose()
}

func (l *link[T]) subscription() *Subscription {
	return newSubscription(func() {
		l.dead.Store(true)
		l.detach()
	})
}

// Map derives a stream of fn applied to every element of src. A panic inside
// fn fails the subscription with *CallbackPanicError.
func Map[T, U any](src *Stream[T], fn func(T) U) *Stream[U] {
	return &Stream[U]{subscribe: func(obs Observer[U]) *Subscription {
		l := newLink(obs)
		up := src.Subscribe(Observer[T]{
			Next: func(v T) {
				if l.dead.Load() {
					return
				}
				var out U
				if err := capturePanic(func() { out = fn(v) }); err != nil {
					l.fail(err)
					return
				}
				l.emit(out)
			},
			Error:    l.fail,
			Complete: l.complete,
		})
		l.attach(up)
		return l.subscription()
	}}
}

// Filter derives a stream of the elements of src for which pred holds.
func Filter[T any](src *Stream[T], pred func(T) bool) *Stream[T] {
	return &Stream[T]{subscribe: func(obs Observer[T]) *Subscription {
		l := newLink(obs)
		up := src.Subscribe(Observer[T]{
			Next: func(v T) {
				if l.dead.Load() {
					return
				}
				var keep bool
				if err := capturePanic(func() { keep = pred(v) }); err != nil {
					l.fail(err)
					return
				}
				if keep {
					l.emit(v)
				}
			},
			Error:    l.fail,
			Complete: l.complete,
		})
		l.attach(up)
		return l.subscription()
	}}
}

// DistinctUntilChanged suppresses an element when eq holds between it and the
// previously forwarded element. The first element always passes.
func DistinctUntilChanged[T any](src *Stream[T], eq func(prev, next T) bool) *Stream[T] {
	return &Stream[T]{subscribe: func(obs Observer[T]) *Subscription {
		l := newLink(obs)
		var mu sync.Mutex
		var has bool
		var last T
		up := src.Subscribe(Observer[T]{
			Next: func(v T) {
				if l.dead.Load() {
					return
				}
				mu.Lock()
				same := false
				if has {
					if err := capturePanic(func() { same = eq(last, v) }); err != nil {
						mu.Unlock()
						l.fail(err)
						return
					}
				}
				if !same {
					has = true
					last = v
				}
				mu.Unlock()
				if !same {
					l.emit(v)
				}
			},
			Error:    l.fail,
			Complete: l.complete,
		})
		l.attach(up)
		return l.subscription()
	}}
}

// Delay forwards every element after d on the given scheduler. A terminal
// event passes through immediately and cancels elements still in flight.
func Delay[T any](src *Stream[T], d time.Duration, sched scheduler.Scheduler) *Stream[T] {
	return &Stream[T]{subscribe: func(obs Observer[T]) *Subscription {
		l := newLink(obs)
		var mu sync.Mutex
		var pending []*delaySlot
		cancelPending := func() {
			mu.Lock()
			slots := pending
			pending = nil
			mu.Unlock()
			for _, slot := range slots {
				if slot.cancel != nil {
					slot.cancel.Cancel()
				}
			}
		}
		up := src.Subscribe(Observer[T]{
			Next: func(v T) {
				if l.dead.Load() {
					return
				}
				slot := &delaySlot{}
				mu.Lock()
				pending = append(pending, slot)
				slot.cancel = sched.AfterFunc(d, func() {
					mu.Lock()
					for i, p := range pending {
						if p == slot {
							pending = append(pending[:i], pending[i+1:]...)
							break
						}
					}
					mu.Unlock()
					l.emit(v)
				})
				mu.Unlock()
			},
			Error: func(err error) {
				cancelPending()
				l.fail(err)
			},
			Complete: func() {
				cancelPending()
				l.complete()
			},
		})
		l.attach(up)
		return newSubscription(func() {
			l.dead.Store(true)
			l.detach()
			cancelPending()
		})
	}}
}

type delaySlot struct {
	cancel scheduler.Cancel
}

// FlatMap subscribes fn's inner stream for every element of src and merges
// their emissions. Completion follows the source; inner completions are
// absorbed. An error on the source, an inner stream, or inside fn terminates
// the subscription and disposes every inner subscription.
func FlatMap[T, U any](src *Stream[T], fn func(T) *Stream[U]) *Stream[U] {
	return &Stream[U]{subscribe: func(obs Observer[U]) *Subscription {
		l := newLink(obs)
		var mu sync.Mutex
		var inners []*Subscription
		disposeInners := func() {
			mu.Lock()
			subs := inners
			inners = nil
			mu.Unlock()
			for _, sub := range subs {
				sub.Dispose()
			}
		}
		up := src.Subscribe(Observer[T]{
			Next: func(v T) {
				if l.dead.Load() {
					return
				}
				var inner *Stream[U]
				if err := capturePanic(func() { inner = fn(v) }); err != nil {
					l.fail(err)
					disposeInners()
					return
				}
				if inner == nil {
					return
				}
				innerSub := inner.Subscribe(Observer[U]{
					Next: l.emit,
					Error: func(err error) {
						l.fail(err)
						disposeInners()
					},
				})
				mu.Lock()
				inners = append(inners, innerSub)
				mu.Unlock()
			},
			Error: func(err error) {
				l.fail(err)
				disposeInners()
			},
			Complete: func() {
				l.complete()
				disposeInners()
			},
		})
		l.attach(up)
		return newSubscription(func() {
			l.dead.Store(true)
			l.detach()
			disposeInners()
		})
	}}
}

// IgnoreElements forwards only the terminal event of src.
func IgnoreElements[T any](src *Stream[T]) *Stream[T] {
	return &Stream[T]{subscribe: func(obs Observer[T]) *Subscription {
		l := newLink(obs)
		up := src.Subscribe(Observer[T]{
			Error:    l.fail,
			Complete: l.complete,
		})
		l.attach(up)
		return l.subscription()
	}}
}

// Of returns a cold stream that synchronously emits values then completes for
// every subscriber. Test and example helper.
func Of[T any](values ...T) *Stream[T] {
	return &Stream[T]{subscribe: func(obs Observer[T]) *Subscription {
		for _, v := range values {
			if obs.Next != nil {
				obs.Next(v)
			}
		}
		if obs.Complete != nil {
			obs.Complete()
		}
		return terminalSubscription()
	}}
}
