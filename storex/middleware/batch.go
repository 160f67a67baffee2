package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/storexkit/storex-go/scheduler"
	"github.com/storexkit/storex-go/storex"
)

const stageNameBatch = "batch"

// BatchedActionsType tags the aggregate action a Batch stage flushes. Its
// payload is the ordered []storex.Action buffered during the window.
const BatchedActionsType = "[Batch] Batched Actions"

// BatchedActions builds the aggregate action carrying the buffered originals.
func BatchedActions(actions []storex.Action) storex.Action {
	return storex.Action{Type: BatchedActionsType, Payload: actions}
}

// BatchedPayload extracts the buffered actions from an aggregate action.
func BatchedPayload(action storex.Action) ([]storex.Action, bool) {
	if action.Type != BatchedActionsType {
		return nil, false
	}
	actions, ok := action.Payload.([]storex.Action)

	return actions, ok
}

// Batch is a deferred pipeline stage that buffers actions into windows. The
// first buffered action arms one timer for the window; every action arriving
// before it fires is appended. On fire the stage forwards one aggregate action
// carrying the ordered buffer and clears it.
//
// Store lifecycle actions and the aggregate type itself pass through
// unbuffered; the latter keeps a flushed aggregate from re-entering a window.
type Batch struct {
	window time.Duration

	mu     sync.Mutex
	buffer []storex.Action
	cancel scheduler.Cancel
	torn   bool
}

// NewBatch builds a batch stage with the given window.
func NewBatch(window time.Duration) *Batch {
	return &Batch{window: window}
}

func (b *Batch) WrapDispatch(store *storex.Store, next storex.DispatchFunc) storex.DispatchFunc {
	return func(ctx context.Context, action storex.Action) (storex.Action, error) {
		if storex.IsLifecycleType(action.Type) || action.Type == BatchedActionsType {
			return next(ctx, action)
		}

		b.mu.Lock()
		if b.torn {
			b.mu.Unlock()
			return next(ctx, action)
		}
		b.buffer = append(b.buffer, action)
		if len(b.buffer) == 1 {
			b.cancel = store.Scheduler().AfterFunc(b.window, func() {
				b.flush(store, next)
			})
		}
		b.mu.Unlock()

		return action, nil
	}
}

// flush forwards the aggregate action for the closed window.
func (b *Batch) flush(store *storex.Store, next storex.DispatchFunc) {
	b.mu.Lock()
	buffered := b.buffer
	b.buffer = nil
	b.cancel = nil
	b.mu.Unlock()

	if len(buffered) == 0 {
		return
	}

	store.RunDeferred(stageNameBatch, BatchedActions(buffered), next)
}

// Teardown cancels the window timer and drops anything still buffered.
func (b *Batch) Teardown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.torn = true
	if b.cancel != nil {
		b.cancel.Cancel()
		b.cancel = nil
	}
	b.buffer = nil
}

var _ storex.Middleware = (*Batch)(nil)
var _ storex.Teardowner = (*Batch)(nil)
