// Command counter is a small end-to-end wiring of the container: two
// features, a debounced increment, an action logger, one effect answering
// save requests, and a memoized selector over the count.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/benbjohnson/immutable"

	"github.com/storexkit/storex-go/statemap"
	"github.com/storexkit/storex-go/storex"
	"github.com/storexkit/storex-go/storex/middleware"
	"github.com/storexkit/storex-go/storex/selector"
	"github.com/storexkit/storex-go/streams"
)

const (
	incrementType = "[Counter] Increment"
	saveType      = "[Counter] Save"
	savedType     = "[Counter] Saved"
)

var (
	increment = storex.Creator(incrementType)
	save      = storex.CreatorOf[int](saveType)
	saved     = storex.CreatorOf[int](savedType)
)

func counterReducer() storex.Reducer {
	return storex.CreateReducer(0,
		storex.OnTyped(incrementType, func(count int, _ storex.Action) any {
			return count + 1
		}),
	)
}

func historyReducer() storex.Reducer {
	return storex.CreateReducer(
		map[string]any{"savedValues": []any{}},
		storex.OnTyped(savedType, func(state *immutable.Map[string, any], action storex.Action) any {
			raw, _ := state.Get("savedValues")
			values := raw.(*immutable.List[any])

			return state.Set("savedValues", values.Append(action.Payload))
		}),
	)
}

// saveEffect acknowledges every save request, standing in for a persistence
// gateway.
func saveEffect(actions *streams.Stream[storex.Action]) *streams.Stream[any] {
	saves := streams.Filter(actions, func(a storex.Action) bool {
		return a.Type == saveType
	})

	return streams.Map(saves, func(a storex.Action) any {
		return saved(a.Payload.(int))
	})
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	store, err := storex.New(storex.WithLogger(logger))
	if err != nil {
		logger.Error("building store failed", "error", err)
		os.Exit(1)
	}
	defer store.Teardown()

	if err = store.RegisterRoot(map[string]storex.Reducer{
		"counter": counterReducer(),
		"history": historyReducer(),
	}); err != nil {
		logger.Error("registering features failed", "error", err)
		os.Exit(1)
	}

	debounce := middleware.NewDebounce(100*time.Millisecond,
		middleware.WithDebounceExempt(saveType, savedType))
	if err = store.ApplyMiddleware(debounce, middleware.NewActionLogger(logger)); err != nil {
		logger.Error("applying middleware failed", "error", err)
		os.Exit(1)
	}

	if err = store.AddEffects(storex.NewEffectModule("persistence",
		storex.CreateEffect("save", saveEffect))); err != nil {
		logger.Error("adding effects failed", "error", err)
		os.Exit(1)
	}

	countSelector := selector.Create(
		[]selector.Selector{selector.Feature("counter")},
		func(values ...any) any { return values[0] },
	)

	sub := store.Select(countSelector).Subscribe(streams.Observer[storex.Change]{
		Next: func(c storex.Change) {
			fmt.Printf("count changed: %v -> %v\n", c.Prev, c.Next)
		},
	})
	defer sub.Dispose()

	// A burst of increments collapses into a single dispatch once the
	// debounce window closes.
	for range 5 {
		if _, err = store.Dispatch(increment()); err != nil {
			logger.Error("dispatch failed", "error", err)
		}
	}
	time.Sleep(150 * time.Millisecond)

	count, _ := statemap.Get(store.Snapshot(), "counter")
	if _, err = store.Dispatch(save(count.(int))); err != nil {
		logger.Error("dispatch failed", "error", err)
	}

	history, _ := statemap.Get(store.Snapshot(), "history")
	fmt.Printf("final state: count=%v history=%v\n", count, statemap.ToNative(history))
}
