package middleware_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storexkit/storex-go/statemap"
	"github.com/storexkit/storex-go/storex"
	"github.com/storexkit/storex-go/storex/middleware"
	"github.com/storexkit/storex-go/testutil/observability/testdoubles"
)

func Test_ActionLogger_LogsDispatchAndFailure(t *testing.T) {
	spy := testdoubles.NewLoggerSpy()
	store := newPingStore(t, nil, middleware.NewActionLogger(spy))

	_, err := store.Dispatch(ping(1))
	require.NoError(t, err)

	assert.True(t, spy.HasLog("debug", "action entering pipeline"))
	assert.True(t, spy.HasLog("debug", "root state replaced"))

	_, err = store.Dispatch(storex.Action{Type: "explode"})
	require.Error(t, err)

	assert.True(t, spy.HasLog("error", "action dispatch failed"))
}

func Test_ErrorReporter_DispatchesGlobalErrorWithoutSuppressingTheFailure(t *testing.T) {
	store := newPingStore(t, nil, middleware.NewErrorReporter())
	recorded := recordActions(t, store)

	_, err := store.Dispatch(storex.Action{Type: "explode"})

	require.Error(t, err, "the original failure still propagates")
	var dispatchErr *storex.DispatchError
	require.ErrorAs(t, err, &dispatchErr)

	reports := recorded.ofType(middleware.GlobalErrorType)
	require.Len(t, reports, 1)
	report, ok := reports[0].Payload.(middleware.GlobalErrorReport)
	require.True(t, ok)
	assert.Equal(t, "explode", report.FailedType)
	assert.Contains(t, report.Reason, "reducer blew up")
}

func Test_ErrorReporter_NeverReportsItsOwnErrorAction(t *testing.T) {
	store := newPingStore(t, nil, middleware.NewErrorReporter())
	recorded := recordActions(t, store)

	// A global error action that itself fails must not cascade.
	_, err := store.Dispatch(middleware.GlobalError("explode", errors.New("boom")))
	require.NoError(t, err)

	assert.Len(t, recorded.ofType(middleware.GlobalErrorType), 1)
}

func Test_Analytics_ReportsSettledDispatches(t *testing.T) {
	clock := virtualClock()

	var events []middleware.AnalyticsEvent
	stage := middleware.NewAnalytics(func(event middleware.AnalyticsEvent) {
		events = append(events, event)
	})
	store := newPingStore(t, clock, stage)

	_, err := store.Dispatch(ping(7))
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].EventID)
	assert.Equal(t, "ping", events[0].Action.Type)
	assert.Equal(t, clock.Now(), events[0].At)
	assert.False(t, statemap.DeepEqual(events[0].Prev, events[0].Next))

	_, err = store.Dispatch(storex.Action{Type: "explode"})
	require.Error(t, err)
	assert.Len(t, events, 1, "failed dispatches are not reported")
}

func Test_History_RetainsBoundedTransitions(t *testing.T) {
	history := middleware.NewHistory(2)
	store := newPingStore(t, nil, history)

	for i := 1; i <= 4; i++ {
		_, err := store.Dispatch(ping(i))
		require.NoError(t, err)
	}

	entries := history.Entries()
	require.Len(t, entries, 2, "the ring keeps the most recent limit entries")
	assert.Equal(t, 3, entries[0].Action.Payload)
	assert.Equal(t, 4, entries[1].Action.Payload)

	prevLast, _ := statemap.Get(entries[1].Prev, "ping")
	nextLast, _ := statemap.Get(entries[1].Next, "ping")
	assert.False(t, statemap.Identical(prevLast, nextLast))

	history.Clear()
	assert.Zero(t, history.Len())
}

func Test_History_ExportsNativeJSON(t *testing.T) {
	history := middleware.NewHistory(0)
	store := newPingStore(t, nil, history)

	_, err := store.Dispatch(ping("hello"))
	require.NoError(t, err)

	data, exportErr := history.ExportJSON()
	require.NoError(t, exportErr)

	var exported []map[string]any
	require.NoError(t, jsoniter.ConfigFastest.Unmarshal(data, &exported))
	require.Len(t, exported, 1)
	assert.Equal(t, "ping", exported[0]["action_type"])
	assert.Equal(t, "hello", exported[0]["payload"])

	next, ok := exported[0]["next"].(map[string]any)
	require.True(t, ok, "snapshots export in native representation")
	assert.Contains(t, next, "ping")
}

func Test_Persist_WritesMatchingDispatchesAsJSONLines(t *testing.T) {
	var sink bytes.Buffer
	store := newPingStore(t, nil, middleware.NewPersist(&sink, "ping"))

	_, err := store.Dispatch(ping(1))
	require.NoError(t, err)
	_, err = store.Dispatch(storex.Action{Type: "ignored"})
	require.NoError(t, err)
	_, err = store.Dispatch(ping(2))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(sink.String()), "\n")
	require.Len(t, lines, 2)

	var record map[string]any
	require.NoError(t, jsoniter.ConfigFastest.Unmarshal([]byte(lines[1]), &record))
	assert.Equal(t, "ping", record["action_type"])
	assert.Equal(t, float64(2), record["payload"])

	state, ok := record["state"].(map[string]any)
	require.True(t, ok, "the persisted state is the native representation of the root")
	assert.Contains(t, state, "ping")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("sink unavailable") }

func Test_Persist_WriteFailureIsLoggedNotPropagated(t *testing.T) {
	spy := testdoubles.NewLoggerSpy()

	store, err := storex.New(storex.WithLogger(spy))
	require.NoError(t, err)
	require.NoError(t, store.RegisterRoot(map[string]storex.Reducer{"ping": pingReducer()}))
	require.NoError(t, store.ApplyMiddleware(middleware.NewPersist(failingWriter{})))
	t.Cleanup(store.Teardown)

	_, err = store.Dispatch(ping(1))

	require.NoError(t, err, "persistence never blocks dispatch")
	assert.True(t, spy.HasLog("error", "persist stage failed to write to sink"))
}

func Test_Thunk_RunsInsteadOfForwarding(t *testing.T) {
	store := newPingStore(t, nil, middleware.Thunk())
	recorded := recordActions(t, store)

	ran := false
	thunk := middleware.RunThunk(func(
		dispatch func(storex.Action) (storex.Action, error),
		snapshot func() statemap.Root,
	) {
		ran = true
		_, exists := statemap.Get(snapshot(), "ping")
		require.True(t, exists)
		_, err := dispatch(ping("from thunk"))
		require.NoError(t, err)
	})

	_, err := store.Dispatch(thunk)
	require.NoError(t, err)

	assert.True(t, ran)
	assert.Empty(t, recorded.ofType(middleware.ThunkActionType), "the thunk action never reaches the reducers")

	last, handled := pingState(t, store)
	assert.Equal(t, "from thunk", last)
	assert.Equal(t, 1, handled)
}

func Test_Timing_RecordsPerActionTypeDurationsAndErrors(t *testing.T) {
	spy := testdoubles.NewMetricsCollectorSpy()
	store := newPingStore(t, nil, middleware.NewTiming(spy))

	_, err := store.Dispatch(ping(1))
	require.NoError(t, err)
	_, err = store.Dispatch(storex.Action{Type: "explode"})
	require.Error(t, err)

	assert.True(t, spy.HasDurationRecordWithLabel("storex_action_duration_seconds", "action_type", "ping"))
	assert.True(t, spy.HasDurationRecordWithLabel("storex_action_duration_seconds", "status", "error"))
	assert.True(t, spy.HasCounterRecordWithLabel("storex_action_errors_total", "action_type", "explode"))
}
