package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/storexkit/storex-go/statemap"
	"github.com/storexkit/storex-go/storex"
)

// AnalyticsEvent is one settled dispatch as the analytics stage reports it.
type AnalyticsEvent struct {
	EventID string
	Action  storex.Action
	Prev    statemap.Root
	Next    statemap.Root
	At      time.Time
}

// Analytics invokes a callback with a uuid-tagged event record after every
// successful dispatch. Failed dispatches are not reported; pair the stage
// with an ErrorReporter when failures matter to the sink.
type Analytics struct {
	callback func(AnalyticsEvent)
}

// NewAnalytics builds the analytics stage around callback.
func NewAnalytics(callback func(AnalyticsEvent)) *Analytics {
	return &Analytics{callback: callback}
}

func (a *Analytics) WrapDispatch(store *storex.Store, next storex.DispatchFunc) storex.DispatchFunc {
	return func(ctx context.Context, action storex.Action) (storex.Action, error) {
		prev := store.Snapshot()

		out, err := next(ctx, action)
		if err != nil || a.callback == nil {
			return out, err
		}

		a.callback(AnalyticsEvent{
			EventID: uuid.NewString(),
			Action:  out,
			Prev:    prev,
			Next:    store.Snapshot(),
			At:      store.Scheduler().Now(),
		})

		return out, nil
	}
}

var _ storex.Middleware = (*Analytics)(nil)
