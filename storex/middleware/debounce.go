package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/storexkit/storex-go/scheduler"
	"github.com/storexkit/storex-go/storex"
)

const stageNameDebounce = "debounce"

// Debounce is a deferred pipeline stage that collapses bursts of same-typed
// actions. The first occurrence of a type arms a timer for the interval; every
// further occurrence within the interval cancels and rearms it. When the
// interval passes without a new occurrence, the stage forwards exactly one
// dispatch carrying the last action seen.
//
// Store lifecycle actions and exempted types pass through untouched. Timers
// run on the store's scheduler, so tests drive the stage with a virtual clock.
type Debounce struct {
	interval time.Duration
	exempt   map[string]struct{}

	mu      sync.Mutex
	pending map[string]*debounceTimer
	torn    bool
}

type debounceTimer struct {
	action storex.Action
	cancel scheduler.Cancel
}

// DebounceOption configures a Debounce stage.
type DebounceOption func(*Debounce)

// WithDebounceExempt lets actions of the given types bypass the stage.
func WithDebounceExempt(actionTypes ...string) DebounceOption {
	return func(d *Debounce) {
		for _, actionType := range actionTypes {
			d.exempt[actionType] = struct{}{}
		}
	}
}

// NewDebounce builds a debounce stage with the given interval.
func NewDebounce(interval time.Duration, opts ...DebounceOption) *Debounce {
	d := &Debounce{
		interval: interval,
		exempt:   make(map[string]struct{}),
		pending:  make(map[string]*debounceTimer),
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *Debounce) WrapDispatch(store *storex.Store, next storex.DispatchFunc) storex.DispatchFunc {
	return func(ctx context.Context, action storex.Action) (storex.Action, error) {
		if d.bypasses(action.Type) {
			return next(ctx, action)
		}

		d.mu.Lock()
		if d.torn {
			d.mu.Unlock()
			return next(ctx, action)
		}
		if previous, armed := d.pending[action.Type]; armed {
			previous.cancel.Cancel()
		}
		timer := &debounceTimer{action: action}
		timer.cancel = store.Scheduler().AfterFunc(d.interval, func() {
			d.fire(store, action.Type, timer, next)
		})
		d.pending[action.Type] = timer
		d.mu.Unlock()

		return action, nil
	}
}

func (d *Debounce) bypasses(actionType string) bool {
	if storex.IsLifecycleType(actionType) {
		return true
	}
	_, exempted := d.exempt[actionType]

	return exempted
}

// fire forwards the pending action for actionType unless a later occurrence
// replaced the timer between its expiry and this callback.
func (d *Debounce) fire(store *storex.Store, actionType string, timer *debounceTimer, next storex.DispatchFunc) {
	d.mu.Lock()
	current := d.pending[actionType]
	if current == timer {
		delete(d.pending, actionType)
	}
	d.mu.Unlock()

	if current != timer {
		return
	}

	store.RunDeferred(stageNameDebounce, timer.action, next)
}

// Teardown cancels every armed timer; nothing pending is forwarded.
func (d *Debounce) Teardown() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.torn = true
	for _, timer := range d.pending {
		timer.cancel.Cancel()
	}
	d.pending = make(map[string]*debounceTimer)
}

var _ storex.Middleware = (*Debounce)(nil)
var _ storex.Teardowner = (*Debounce)(nil)
