package storex

import (
	"context"
	"sync"

	"github.com/storexkit/storex-go/statemap"
)

// DispatchFunc is one stage of the dispatch pipeline.
type DispatchFunc func(ctx context.Context, action Action) (Action, error)

// Middleware wraps the next pipeline stage and returns the stage callers
// invoke. WrapDispatch runs once per pipeline rebuild; the returned
// DispatchFunc runs once per dispatch.
type Middleware interface {
	WrapDispatch(store *Store, next DispatchFunc) DispatchFunc
}

// MiddlewareFunc adapts a bare wrapping function to the Middleware
// interface.
type MiddlewareFunc func(store *Store, next DispatchFunc) DispatchFunc

func (f MiddlewareFunc) WrapDispatch(store *Store, next DispatchFunc) DispatchFunc {
	return f(store, next)
}

// Observer is the hook-shaped middleware form. OnNext runs before the action
// moves inward, OnComplete after the inner stages succeed, and OnError when
// a dispatch this observer already entered fails.
type Observer interface {
	OnNext(action Action, prev statemap.Root)
	OnComplete(next statemap.Root, action Action)
	OnError(err error, action Action)
}

// Teardowner is implemented by middleware holding resources (timers,
// buffers, sinks) that must be released when the store tears down.
type Teardowner interface {
	Teardown()
}

// observerMiddleware adapts an Observer into functional shape: pre-hook,
// invoke next exactly once, post-hook with the resulting state. Error hooks
// are not run here; the dispatch entry point invokes every already-entered
// observer's hook outer-to-inner before the error propagates to the caller.
type observerMiddleware struct {
	obs Observer
}

func (m observerMiddleware) WrapDispatch(store *Store, next DispatchFunc) DispatchFunc {
	return func(ctx context.Context, action Action) (Action, error) {
		if hooks := enteredHooksFrom(ctx); hooks != nil {
			hooks.push(m.obs.OnError)
		}

		m.obs.OnNext(action, store.Snapshot())

		out, err := next(ctx, action)
		if err != nil {
			return out, err
		}

		m.obs.OnComplete(store.Snapshot(), action)

		return out, nil
	}
}

func (m observerMiddleware) Teardown() {
	if td, ok := m.obs.(Teardowner); ok {
		td.Teardown()
	}
}

// enteredHooks collects the error hooks of the observer middleware one
// dispatch has entered, in entry (outer-to-inner) order.
type enteredHooks struct {
	mu    sync.Mutex
	hooks []func(err error, action Action)
}

func (h *enteredHooks) push(hook func(err error, action Action)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

// invoke runs the collected hooks outer-to-inner. A panicking hook is
// contained and logged so the remaining hooks still run and the original
// dispatch error stays primary.
func (h *enteredHooks) invoke(s *Store, err error, action Action) {
	h.mu.Lock()
	hooks := make([]func(error, Action), len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	for _, hook := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logError(logMsgErrorHookPanicked, &PanicError{Value: r}, logAttrActionType, action.Type)
				}
			}()
			hook(err, action)
		}()
	}
}

type enteredHooksKey struct{}

func withEnteredHooks(ctx context.Context, hooks *enteredHooks) context.Context {
	return context.WithValue(ctx, enteredHooksKey{}, hooks)
}

func enteredHooksFrom(ctx context.Context) *enteredHooks {
	hooks, _ := ctx.Value(enteredHooksKey{}).(*enteredHooks)
	return hooks
}
