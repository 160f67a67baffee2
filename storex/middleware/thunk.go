package middleware

import (
	"context"

	"github.com/storexkit/storex-go/statemap"
	"github.com/storexkit/storex-go/storex"
)

// ThunkActionType tags actions built by RunThunk.
const ThunkActionType = "[Thunk] Run"

// ThunkFunc is a deferred computation carried as an action payload. It
// receives the store's dispatch and snapshot entry points and may dispatch
// zero or more actions; those re-enter the full pipeline.
type ThunkFunc func(
	dispatch func(storex.Action) (storex.Action, error),
	snapshot func() statemap.Root,
)

// RunThunk wraps fn into an action the Thunk stage intercepts.
func RunThunk(fn ThunkFunc) storex.Action {
	return storex.Action{Type: ThunkActionType, Payload: fn}
}

// Thunk returns the stage that intercepts any action whose payload is a
// ThunkFunc and runs it instead of forwarding: the thunk action itself never
// reaches the reducers. All other actions pass through.
func Thunk() storex.Middleware {
	return storex.MiddlewareFunc(func(store *storex.Store, next storex.DispatchFunc) storex.DispatchFunc {
		return func(ctx context.Context, action storex.Action) (storex.Action, error) {
			fn, isThunk := action.Payload.(ThunkFunc)
			if !isThunk {
				return next(ctx, action)
			}

			fn(store.Dispatch, store.Snapshot)

			return action, nil
		}
	})
}
