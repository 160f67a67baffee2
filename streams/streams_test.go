package streams_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storexkit/storex-go/scheduler"
	"github.com/storexkit/storex-go/streams"
)

func Test_Subject_DeliversInSubscriptionOrder(t *testing.T) {
	subject := streams.NewSubject[int]()
	var order []string

	subject.Subscribe(streams.Observer[int]{Next: func(int) { order = append(order, "first") }})
	subject.Subscribe(streams.Observer[int]{Next: func(int) { order = append(order, "second") }})

	subject.Next(1)

	assert.Equal(t, []string{"first", "second"}, order)
}

func Test_Subject_DisposeStopsDelivery(t *testing.T) {
	subject := streams.NewSubject[int]()
	var got []int

	sub := subject.Subscribe(streams.Observer[int]{Next: func(v int) { got = append(got, v) }})

	subject.Next(1)
	sub.Dispose()
	subject.Next(2)

	assert.Equal(t, []int{1}, got)
	assert.True(t, sub.Disposed())
}

func Test_Subject_CompleteIsTerminal(t *testing.T) {
	subject := streams.NewSubject[int]()
	var completed int
	var got []int

	subject.Subscribe(streams.Observer[int]{
		Next:     func(v int) { got = append(got, v) },
		Complete: func() { completed++ },
	})

	subject.Next(1)
	subject.Complete()
	subject.Next(2)
	subject.Complete()

	assert.Equal(t, []int{1}, got, "values after completion must be dropped")
	assert.Equal(t, 1, completed, "completion must be delivered exactly once")
}

func Test_Subject_LateSubscriberGetsTerminalEventImmediately(t *testing.T) {
	subject := streams.NewSubject[string]()
	subject.Error(errors.New("boom"))

	var gotErr error
	sub := subject.Subscribe(streams.Observer[string]{Error: func(err error) { gotErr = err }})

	require.Error(t, gotErr)
	assert.Equal(t, "boom", gotErr.Error())
	assert.True(t, sub.Disposed())
}

func Test_Subject_ReentrantNextIsDelivered(t *testing.T) {
	subject := streams.NewSubject[int]()
	var got []int

	subject.Subscribe(streams.Observer[int]{Next: func(v int) {
		got = append(got, v)
		if v == 1 {
			subject.Next(2)
		}
	}})

	subject.Next(1)

	assert.Equal(t, []int{1, 2}, got)
}

func Test_Subject_DisposingSiblingDuringDeliveryIsSafe(t *testing.T) {
	subject := streams.NewSubject[int]()
	var siblingGot []int

	var sibling *streams.Subscription
	subject.Subscribe(streams.Observer[int]{Next: func(int) { sibling.Dispose() }})
	sibling = subject.Subscribe(streams.Observer[int]{Next: func(v int) { siblingGot = append(siblingGot, v) }})

	subject.Next(1)

	assert.Empty(t, siblingGot, "sibling disposed by an earlier subscriber must not receive the value")
}

func Test_Map_TransformsElements(t *testing.T) {
	subject := streams.NewSubject[int]()
	var got []string

	doubled := streams.Map(subject.Stream(), func(v int) string {
		if v == 2 {
			return "two"
		}
		return "other"
	})
	doubled.Subscribe(streams.Observer[string]{Next: func(v string) { got = append(got, v) }})

	subject.Next(1)
	subject.Next(2)

	assert.Equal(t, []string{"other", "two"}, got)
}

func Test_Map_PanicFailsOnlyThatSubscription(t *testing.T) {
	subject := streams.NewSubject[int]()
	var gotErr error
	var siblingGot []int

	mapped := streams.Map(subject.Stream(), func(v int) int {
		if v == 2 {
			panic("bad element")
		}
		return v * 10
	})
	mapped.Subscribe(streams.Observer[int]{Error: func(err error) { gotErr = err }})
	subject.Subscribe(streams.Observer[int]{Next: func(v int) { siblingGot = append(siblingGot, v) }})

	subject.Next(2)
	subject.Next(3)

	var panicErr *streams.CallbackPanicError
	require.ErrorAs(t, gotErr, &panicErr)
	assert.Equal(t, "bad element", panicErr.Value)
	assert.Equal(t, []int{2, 3}, siblingGot, "sibling subscriber on the subject must keep receiving")
}

func Test_Map_ErroredSubscriptionNeverDeliversAgain(t *testing.T) {
	subject := streams.NewSubject[int]()
	var got []int
	var errCount int

	mapped := streams.Map(subject.Stream(), func(v int) int {
		if v == 1 {
			panic("once")
		}
		return v
	})
	mapped.Subscribe(streams.Observer[int]{
		Next:  func(v int) { got = append(got, v) },
		Error: func(error) { errCount++ },
	})

	subject.Next(1)
	subject.Next(2)

	assert.Empty(t, got)
	assert.Equal(t, 1, errCount)
}

func Test_Filter_KeepsMatchingElements(t *testing.T) {
	subject := streams.NewSubject[int]()
	var got []int

	evens := streams.Filter(subject.Stream(), func(v int) bool { return v%2 == 0 })
	evens.Subscribe(streams.Observer[int]{Next: func(v int) { got = append(got, v) }})

	for i := 1; i <= 5; i++ {
		subject.Next(i)
	}

	assert.Equal(t, []int{2, 4}, got)
}

func Test_DistinctUntilChanged_SuppressesRepeats(t *testing.T) {
	subject := streams.NewSubject[int]()
	var got []int

	distinct := streams.DistinctUntilChanged(subject.Stream(), func(prev, next int) bool { return prev == next })
	distinct.Subscribe(streams.Observer[int]{Next: func(v int) { got = append(got, v) }})

	for _, v := range []int{1, 1, 2, 2, 2, 1} {
		subject.Next(v)
	}

	assert.Equal(t, []int{1, 2, 1}, got, "first element passes, repeats collapse, change re-emits")
}

func Test_Delay_ForwardsAfterIntervalOnScheduler(t *testing.T) {
	clock := scheduler.NewVirtual(time.Unix(0, 0))
	subject := streams.NewSubject[string]()
	var got []string

	delayed := streams.Delay(subject.Stream(), 50*time.Millisecond, clock)
	delayed.Subscribe(streams.Observer[string]{Next: func(v string) { got = append(got, v) }})

	subject.Next("a")
	assert.Empty(t, got, "nothing should arrive before the interval")

	clock.Advance(50 * time.Millisecond)
	assert.Equal(t, []string{"a"}, got)
}

func Test_Delay_DisposeCancelsInFlightElements(t *testing.T) {
	clock := scheduler.NewVirtual(time.Unix(0, 0))
	subject := streams.NewSubject[string]()
	var got []string

	delayed := streams.Delay(subject.Stream(), time.Second, clock)
	sub := delayed.Subscribe(streams.Observer[string]{Next: func(v string) { got = append(got, v) }})

	subject.Next("a")
	sub.Dispose()
	clock.Advance(2 * time.Second)

	assert.Empty(t, got)
	assert.Zero(t, clock.Pending(), "dispose should cancel the armed timer")
}

func Test_Delay_CompletionCancelsInFlightElements(t *testing.T) {
	clock := scheduler.NewVirtual(time.Unix(0, 0))
	subject := streams.NewSubject[string]()
	var got []string
	completed := false

	delayed := streams.Delay(subject.Stream(), time.Second, clock)
	delayed.Subscribe(streams.Observer[string]{
		Next:     func(v string) { got = append(got, v) },
		Complete: func() { completed = true },
	})

	subject.Next("a")
	subject.Complete()
	clock.Advance(2 * time.Second)

	assert.True(t, completed, "completion passes through immediately")
	assert.Empty(t, got, "in-flight elements die with the subscription")
}

func Test_FlatMap_MergesInnerStreams(t *testing.T) {
	subject := streams.NewSubject[int]()
	var got []int

	expanded := streams.FlatMap(subject.Stream(), func(v int) *streams.Stream[int] {
		return streams.Of(v, v*10)
	})
	expanded.Subscribe(streams.Observer[int]{Next: func(v int) { got = append(got, v) }})

	subject.Next(1)
	subject.Next(2)

	assert.Equal(t, []int{1, 10, 2, 20}, got)
}

func Test_FlatMap_NilInnerStreamIsSkipped(t *testing.T) {
	subject := streams.NewSubject[int]()
	var got []int

	expanded := streams.FlatMap(subject.Stream(), func(v int) *streams.Stream[int] {
		if v == 1 {
			return nil
		}
		return streams.Of(v)
	})
	expanded.Subscribe(streams.Observer[int]{Next: func(v int) { got = append(got, v) }})

	subject.Next(1)
	subject.Next(2)

	assert.Equal(t, []int{2}, got)
}

func Test_IgnoreElements_ForwardsOnlyTermination(t *testing.T) {
	subject := streams.NewSubject[int]()
	var got []int
	completed := false

	quiet := streams.IgnoreElements(subject.Stream())
	quiet.Subscribe(streams.Observer[int]{
		Next:     func(v int) { got = append(got, v) },
		Complete: func() { completed = true },
	})

	subject.Next(1)
	subject.Next(2)
	assert.Empty(t, got)
	assert.False(t, completed)

	subject.Complete()
	assert.True(t, completed)
}

func Test_Of_EmitsThenCompletes(t *testing.T) {
	var got []int
	completed := false

	streams.Of(1, 2, 3).Subscribe(streams.Observer[int]{
		Next:     func(v int) { got = append(got, v) },
		Complete: func() { completed = true },
	})

	assert.Equal(t, []int{1, 2, 3}, got)
	assert.True(t, completed)
}

func Test_Subscription_DisposeIsIdempotent(t *testing.T) {
	subject := streams.NewSubject[int]()
	sub := subject.Subscribe(streams.Observer[int]{})

	sub.Dispose()
	assert.NotPanics(t, func() { sub.Dispose() })
	assert.True(t, sub.Disposed())
}
