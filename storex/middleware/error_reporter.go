package middleware

import (
	"context"
	"sync/atomic"

	"github.com/storexkit/storex-go/storex"
)

// GlobalErrorType tags the error action an ErrorReporter dispatches when an
// inner stage or the reducer fails.
const GlobalErrorType = "[Error] Global Error"

// GlobalErrorReport is the payload of a global error action.
type GlobalErrorReport struct {
	FailedType string
	Reason     string
}

// GlobalError builds the error action reporting a failed dispatch.
func GlobalError(failedType string, err error) storex.Action {
	return storex.Action{
		Type:    GlobalErrorType,
		Payload: GlobalErrorReport{FailedType: failedType, Reason: err.Error()},
	}
}

// ErrorReporter converts a failing inner dispatch into a dispatched global
// error action so error-handling reducers and effects can react to it. The
// side channel is best effort: the original failure still propagates to the
// dispatch caller, and a reentrancy guard keeps a failing error action from
// reporting itself.
type ErrorReporter struct {
	reporting atomic.Bool
}

// NewErrorReporter builds the reporting stage.
func NewErrorReporter() *ErrorReporter {
	return &ErrorReporter{}
}

func (r *ErrorReporter) WrapDispatch(store *storex.Store, next storex.DispatchFunc) storex.DispatchFunc {
	return func(ctx context.Context, action storex.Action) (storex.Action, error) {
		// A panicking reducer or inner stage unwinds straight through the
		// functional chain; report it here, then let it keep propagating.
		defer func() {
			if rec := recover(); rec != nil {
				r.report(ctx, store, action, &storex.PanicError{Value: rec})
				panic(rec)
			}
		}()

		out, err := next(ctx, action)
		if err != nil {
			r.report(ctx, store, action, err)
		}

		return out, err
	}
}

func (r *ErrorReporter) report(ctx context.Context, store *storex.Store, action storex.Action, err error) {
	if action.Type == GlobalErrorType {
		return
	}
	if !r.reporting.CompareAndSwap(false, true) {
		return
	}
	defer r.reporting.Store(false)

	_, _ = store.DispatchContext(ctx, GlobalError(action.Type, err))
}

var _ storex.Middleware = (*ErrorReporter)(nil)
