package selector_test

import (
	"testing"
	"time"

	"github.com/benbjohnson/immutable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storexkit/storex-go/statemap"
	"github.com/storexkit/storex-go/storex"
	"github.com/storexkit/storex-go/storex/selector"
	"github.com/storexkit/storex-go/testutil/observability/testdoubles"
)

func newCounterRoot(count int) statemap.Root {
	substate := statemap.ToCanonical(map[string]any{"count": count})

	return statemap.Set(statemap.Empty(), "counter", substate)
}

func doubledCount(values ...any) any {
	substate := values[0].(*immutable.Map[string, any])
	count, _ := substate.Get("count")

	return count.(int) * 2
}

func Test_Create_SkipsCombineForIdenticalInputs(t *testing.T) {
	// arrange
	var combineCalls int
	sel := selector.Create([]selector.Selector{selector.Feature("counter")},
		func(values ...any) any {
			combineCalls++
			return doubledCount(values...)
		})
	root := newCounterRoot(21)

	// act
	first := sel(root)
	second := sel(root)

	// assert
	assert.Equal(t, 42, first)
	assert.Equal(t, 42, second)
	assert.Equal(t, 1, combineCalls, "an unchanged input set must not recompute")
}

func Test_Create_RecomputesWhenAnInputChanges(t *testing.T) {
	// arrange
	var combineCalls int
	sel := selector.Create([]selector.Selector{selector.Feature("counter")},
		func(values ...any) any {
			combineCalls++
			return doubledCount(values...)
		})

	// act
	first := sel(newCounterRoot(1))
	second := sel(newCounterRoot(2))

	// assert
	assert.Equal(t, 2, first)
	assert.Equal(t, 4, second)
	assert.Equal(t, 2, combineCalls)
}

func Test_Create_ShallowPolicyMissesOnRebuiltEqualInputs(t *testing.T) {
	// arrange: the input selector rebuilds a value-equal map on every call.
	var combineCalls int
	rebuilt := func(any) any { return map[string]any{"n": 1} }
	sel := selector.Create([]selector.Selector{rebuilt},
		func(values ...any) any {
			combineCalls++
			return values[0]
		},
		selector.WithShallow())

	// act
	sel(nil)
	sel(nil)

	// assert
	assert.Equal(t, 2, combineCalls, "reference identity must not match rebuilt maps")
}

func Test_Create_DeepPolicyHitsOnRebuiltEqualInputs(t *testing.T) {
	// arrange
	var combineCalls int
	rebuilt := func(any) any { return map[string]any{"n": 1} }
	sel := selector.Create([]selector.Selector{rebuilt},
		func(values ...any) any {
			combineCalls++
			return values[0]
		},
		selector.WithDeep())

	// act
	sel(nil)
	sel(nil)

	// assert
	assert.Equal(t, 1, combineCalls, "structural equality must match rebuilt maps")
}

func Test_Create_WithoutInputsFeedsTheStateItself(t *testing.T) {
	// arrange
	sel := selector.Create(nil, func(values ...any) any {
		require.Len(t, values, 1)
		return values[0].(string) + "!"
	})

	// act
	out := sel("state")

	// assert
	assert.Equal(t, "state!", out)
}

func Test_Create_TransitionPairFeedsOnlyTheNextState(t *testing.T) {
	// arrange
	sel := selector.Create([]selector.Selector{selector.Feature("counter")}, doubledCount)
	change := storex.Change{Prev: newCounterRoot(1), Next: newCounterRoot(5)}

	// act
	out := sel(change)

	// assert
	assert.Equal(t, 10, out)
}

func Test_Create_TTLExpiresEntriesByComputeTime(t *testing.T) {
	// arrange
	current := time.Unix(1_000, 0)
	var combineCalls int
	sel := selector.Create([]selector.Selector{selector.Feature("counter")},
		func(values ...any) any {
			combineCalls++
			return doubledCount(values...)
		},
		selector.WithTTL(time.Minute),
		selector.WithNow(func() time.Time { return current }))
	root := newCounterRoot(3)

	// act + assert: hits inside the TTL window, recompute at its edge.
	sel(root)
	current = current.Add(59 * time.Second)
	sel(root)
	require.Equal(t, 1, combineCalls)

	current = current.Add(time.Second)
	sel(root)
	assert.Equal(t, 2, combineCalls, "an entry at exactly TTL age is expired")
}

func Test_Create_TTLIsNotRefreshedByCacheHits(t *testing.T) {
	// arrange
	current := time.Unix(1_000, 0)
	var combineCalls int
	sel := selector.Create([]selector.Selector{selector.Feature("counter")},
		func(values ...any) any {
			combineCalls++
			return doubledCount(values...)
		},
		selector.WithTTL(time.Minute),
		selector.WithNow(func() time.Time { return current }))
	root := newCounterRoot(3)

	// act: keep hitting the entry right up to its expiry.
	sel(root)
	current = current.Add(30 * time.Second)
	sel(root)
	current = current.Add(30 * time.Second)
	sel(root)

	// assert: the second hit must not have extended the entry's life.
	assert.Equal(t, 2, combineCalls)
}

func Test_Create_BoundedCacheEvictsLeastRecentlyUsed(t *testing.T) {
	// arrange
	var combineCalls int
	sel := selector.Create([]selector.Selector{selector.Feature("counter")},
		func(values ...any) any {
			combineCalls++
			return doubledCount(values...)
		},
		selector.WithMaxSize(2))
	rootA := newCounterRoot(1)
	rootB := newCounterRoot(2)
	rootC := newCounterRoot(3)

	// act + assert
	sel(rootA)
	sel(rootB)
	require.Equal(t, 2, combineCalls)

	sel(rootA) // hit; A becomes most recent
	require.Equal(t, 2, combineCalls)

	sel(rootC) // evicts B, the least recently used set
	require.Equal(t, 3, combineCalls)

	sel(rootA) // still cached
	require.Equal(t, 3, combineCalls)

	sel(rootB) // evicted, recomputes
	assert.Equal(t, 4, combineCalls)
}

func Test_Create_PanicReturnsLastComputedOutput(t *testing.T) {
	// arrange
	loggerSpy := &testdoubles.LoggerSpy{}
	explode := false
	sel := selector.Create([]selector.Selector{selector.Feature("counter")},
		func(values ...any) any {
			if explode {
				panic("combine blew up")
			}
			return doubledCount(values...)
		},
		selector.WithLogger(loggerSpy))

	first := sel(newCounterRoot(1))
	require.Equal(t, 2, first)

	// act
	explode = true
	out := sel(newCounterRoot(9))

	// assert: the failure is contained, logged, and the stale output returned.
	assert.Equal(t, 2, out)
	assert.True(t, loggerSpy.HasLog("error", "selector computation panicked"))
}

func Test_Create_PanicBeforeAnyOutputReturnsNil(t *testing.T) {
	// arrange
	sel := selector.Create([]selector.Selector{selector.Feature("counter")},
		func(...any) any { panic("combine blew up") })

	// act
	var out any
	assert.NotPanics(t, func() { out = sel(newCounterRoot(1)) })

	// assert
	assert.Nil(t, out)
}

func Test_Create_PanickingInputSelectorIsContainedToo(t *testing.T) {
	// arrange
	loggerSpy := &testdoubles.LoggerSpy{}
	sel := selector.Create([]selector.Selector{func(any) any { panic("input blew up") }},
		func(values ...any) any { return values[0] },
		selector.WithLogger(loggerSpy))

	// act
	var out any
	assert.NotPanics(t, func() { out = sel(newCounterRoot(1)) })

	// assert
	assert.Nil(t, out)
	assert.True(t, loggerSpy.HasLog("error", "selector computation panicked"))
}

func Test_Create_NilCombinePanicsAtConstruction(t *testing.T) {
	assert.Panics(t, func() { selector.Create(nil, nil) })
}

func Test_Feature_ExtractsSubstateFromTheRoot(t *testing.T) {
	root := newCounterRoot(7)

	substate := selector.Feature("counter")(root)
	missing := selector.Feature("ghost")(root)
	nonRoot := selector.Feature("counter")("not a root")

	count, _ := substate.(*immutable.Map[string, any]).Get("count")
	assert.Equal(t, 7, count)
	assert.Nil(t, missing)
	assert.Nil(t, nonRoot)
}
