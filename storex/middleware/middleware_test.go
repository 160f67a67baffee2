package middleware_test

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/immutable"
	"github.com/stretchr/testify/require"

	"github.com/storexkit/storex-go/scheduler"
	"github.com/storexkit/storex-go/statemap"
	"github.com/storexkit/storex-go/storex"
	"github.com/storexkit/storex-go/streams"
)

// pingReducer stores the payload of the last "ping" it handled and counts
// occurrences; "explode" panics, which is how reducer failures surface.
func pingReducer() storex.Reducer {
	return storex.CreateReducer(map[string]any{"last": nil, "handled": 0},
		storex.On("ping", func(state any, action storex.Action) any {
			m := state.(*immutable.Map[string, any])
			handled, _ := m.Get("handled")
			return m.Set("last", action.Payload).Set("handled", handled.(int)+1)
		}),
		storex.On("explode", func(any, storex.Action) any {
			panic("reducer blew up")
		}),
	)
}

func newPingStore(t *testing.T, sched scheduler.Scheduler, stages ...any) *storex.Store {
	t.Helper()

	opts := []storex.Option{}
	if sched != nil {
		opts = append(opts, storex.WithScheduler(sched))
	}

	store, err := storex.New(opts...)
	require.NoError(t, err)
	require.NoError(t, store.RegisterRoot(map[string]storex.Reducer{"ping": pingReducer()}))
	if len(stages) > 0 {
		require.NoError(t, store.ApplyMiddleware(stages...))
	}
	t.Cleanup(store.Teardown)

	return store
}

func pingState(t *testing.T, store *storex.Store) (last any, handled int) {
	t.Helper()

	substate, ok := statemap.Get(store.Snapshot(), "ping")
	require.True(t, ok)
	m := substate.(*immutable.Map[string, any])
	last, _ = m.Get("last")
	count, _ := m.Get("handled")

	return last, count.(int)
}

// actionRecorder captures every action that reached the reduce step.
type actionRecorder struct {
	mu      sync.Mutex
	actions []storex.Action
}

func recordActions(t *testing.T, store *storex.Store) *actionRecorder {
	t.Helper()

	rec := &actionRecorder{}
	sub := store.Actions().Subscribe(streams.Observer[storex.Action]{
		Next: func(action storex.Action) {
			rec.mu.Lock()
			rec.actions = append(rec.actions, action)
			rec.mu.Unlock()
		},
	})
	t.Cleanup(sub.Dispose)

	return rec
}

func (r *actionRecorder) ofType(actionType string) []storex.Action {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []storex.Action
	for _, action := range r.actions {
		if action.Type == actionType {
			out = append(out, action)
		}
	}

	return out
}

func ping(payload any) storex.Action {
	return storex.Action{Type: "ping", Payload: payload}
}

func virtualClock() *scheduler.Virtual {
	return scheduler.NewVirtual(time.Unix(1700000000, 0))
}
