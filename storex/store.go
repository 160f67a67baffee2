package storex

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/immutable"

	"github.com/storexkit/storex-go/scheduler"
	"github.com/storexkit/storex-go/statemap"
	"github.com/storexkit/storex-go/streams"
)

// Change is one observed state transition: the value before and after a
// dispatch. On the raw transition stream Prev and Next carry root states;
// through Select with a selector they carry the projected values.
type Change struct {
	Prev any
	Next any
}

// PrevState returns the pre-transition value. It lets a Change satisfy
// pair-aware consumers such as memoized selectors.
func (c Change) PrevState() any { return c.Prev }

// NextState returns the post-transition value.
func (c Change) NextState() any { return c.Next }

// Store is an explicit state container instance; there is no ambient
// global. Create one with New, register features, apply middleware, add
// effects, dispatch.
type Store struct {
	root atomic.Pointer[immutable.Map[string, any]]

	tree      *reducerTree
	actionBus *streams.Subject[Action]
	stateBus  *streams.Subject[Change]
	effects   *effectsManager

	chain    atomic.Pointer[DispatchFunc]
	stagesMu sync.Mutex
	stages   []Middleware

	reduceMu sync.Mutex

	sched scheduler.Scheduler

	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector

	tornDown atomic.Bool
}

// New builds a store with an empty root state and an empty pipeline.
func New(opts ...Option) (*Store, error) {
	s := &Store{
		tree:      &reducerTree{},
		actionBus: streams.NewSubject[Action](),
		stateBus:  streams.NewSubject[Change](),
		sched:     scheduler.Wall(),
	}
	s.effects = newEffectsManager(s)
	s.root.Store(statemap.Empty())

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	base := DispatchFunc(s.reduceAndPublish)
	s.chain.Store(&base)

	return s, nil
}

// Dispatch sends action through the middleware pipeline and the reduce
// step, returning the action that entered the pipeline. A non-nil error is
// a *DispatchError; every already-entered observer middleware's error hook
// has run (outer-to-inner) before it is returned.
func (s *Store) Dispatch(action Action) (Action, error) {
	return s.DispatchContext(context.Background(), action)
}

// DispatchContext is Dispatch with a caller-supplied context flowing
// through the pipeline stages, contextual logs, metrics, and spans.
func (s *Store) DispatchContext(ctx context.Context, action Action) (Action, error) {
	if s.tornDown.Load() {
		return action, ErrStoreTornDown
	}

	start := time.Now()
	ctx, span := s.startDispatchSpan(ctx, action.Type)

	hooks := &enteredHooks{}
	ctx = withEnteredHooks(ctx, hooks)

	out, err := runStageProtected(ctx, action, *s.chain.Load())
	duration := time.Since(start)

	if err != nil {
		hooks.invoke(s, err, action)
		s.recordDispatchError(ctx, action.Type)
		s.recordDispatchDuration(ctx, action.Type, statusError, duration)
		s.finishDispatchSpan(span, err, duration)
		s.logErrorContext(ctx, logMsgDispatchFailed, err, logAttrActionType, action.Type)

		return out, &DispatchError{ActionType: action.Type, Err: err}
	}

	s.recordDispatchDuration(ctx, action.Type, statusSuccess, duration)
	s.finishDispatchSpan(span, nil, duration)
	s.logDebugContext(ctx, logMsgDispatchCompleted,
		logAttrActionType, action.Type,
		logAttrDurationMS, durationToMilliseconds(duration))

	return out, nil
}

// RunDeferred executes a deferred pipeline forward (a timer-fired
// continuation from a stage such as debounce or batch) with the same panic
// containment and error-hook treatment as a regular dispatch. Timer
// callbacks invoke it from their own goroutine; the reduce step serializes
// the state swap against concurrent dispatches.
func (s *Store) RunDeferred(stage string, action Action, next DispatchFunc) {
	if s.tornDown.Load() {
		return
	}

	hooks := &enteredHooks{}
	ctx := withEnteredHooks(context.Background(), hooks)

	if _, err := runStageProtected(ctx, action, next); err != nil {
		hooks.invoke(s, err, action)
		s.recordDispatchError(ctx, action.Type)
		s.logError(logMsgDeferredForwardFailed, err,
			logAttrStage, stage,
			logAttrActionType, action.Type)
	}
}

// runStageProtected invokes stage, converting panics from reducers,
// middleware, and subscriber callbacks into a PanicError.
func runStageProtected(ctx context.Context, action Action, stage DispatchFunc) (out Action, err error) {
	out = action
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()

	return stage(ctx, action)
}

// reduceAndPublish is the innermost pipeline stage: run the reduce walk,
// replace the root wholesale, publish the transition, then emit the action
// for effects. Reducers run under the reduce lock, which is why they must
// not dispatch; state and action subscribers run outside it and may
// re-enter Dispatch freely.
func (s *Store) reduceAndPublish(_ context.Context, action Action) (Action, error) {
	prev, next := s.applyReduce(action)

	s.stateBus.Next(Change{Prev: prev, Next: next})
	s.actionBus.Next(action)

	return action, nil
}

func (s *Store) applyReduce(action Action) (prev, next statemap.Root) {
	s.reduceMu.Lock()
	defer s.reduceMu.Unlock()

	prev = s.root.Load()
	next = s.tree.reduce(prev, action)
	if next != prev {
		s.root.Store(next)
	}

	return prev, next
}

// Snapshot returns the current root state. Synchronous and safe from any
// goroutine; the root is only ever replaced wholesale.
func (s *Store) Snapshot() statemap.Root {
	return s.root.Load()
}

// Select returns the store's observation stream.
//
// With a selector, the stream emits one Change per dispatch whose projected
// next value differs (by deep value equality) from the previously emitted
// one; Prev and Next carry projected values. With a nil selector it is a
// completion-style stream over raw transitions: it emits nothing and
// terminates when the store tears down.
func (s *Store) Select(selector func(state any) any) *streams.Stream[Change] {
	if selector == nil {
		return streams.IgnoreElements(s.stateBus.Stream())
	}

	projected := streams.Map(s.stateBus.Stream(), func(c Change) Change {
		return Change{Prev: selector(c.Prev), Next: selector(c.Next)}
	})

	return streams.DistinctUntilChanged(projected, func(prev, next Change) bool {
		return statemap.DeepEqual(prev.Next, next.Next)
	})
}

// Changes returns the raw transition stream carrying root state pairs.
func (s *Store) Changes() *streams.Stream[Change] {
	return s.stateBus.Stream()
}

// Actions returns the post-reduce action stream effects are built from.
func (s *Store) Actions() *streams.Stream[Action] {
	return s.actionBus.Stream()
}

// Scheduler returns the store's timer scheduler for deferred middleware.
func (s *Store) Scheduler() scheduler.Scheduler {
	return s.sched
}

// Logger returns the store's configured base logger, nil when unset.
// Middleware stages report contained failures through it.
func (s *Store) Logger() Logger {
	return s.logger
}

// RegisterRoot registers the store's initial feature set and dispatches the
// one-time bootstrap action that seeds every feature's substate from its
// reducer's declared initial state. Features register in sorted key order
// so the reduce walk is deterministic.
func (s *Store) RegisterRoot(features map[string]Reducer) error {
	if s.tornDown.Load() {
		return ErrStoreTornDown
	}

	keys := make([]string, 0, len(features))
	for key := range features {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := validateFeature(key, features[key]); err != nil {
			return err
		}
	}
	for _, key := range keys {
		s.tree.add(key, features[key])
	}

	_, err := s.Dispatch(InitStore())

	return err
}

// RegisterFeature adds or replaces one feature at runtime. The shape-change
// action it dispatches goes through the regular serialized dispatch path,
// so subscribers observe the new root shape without a domain action.
// Replacing a reducer keeps the feature's current substate; seeding from
// the initial state happens only when the key is absent from the root.
func (s *Store) RegisterFeature(key string, reducer Reducer) error {
	if s.tornDown.Load() {
		return ErrStoreTornDown
	}
	if err := validateFeature(key, reducer); err != nil {
		return err
	}

	s.tree.add(key, reducer)
	s.logInfoContext(context.Background(), logMsgFeatureRegistered, logAttrFeatureKey, key)

	_, err := s.Dispatch(UpdateReducers())

	return err
}

// UnregisterFeature removes a feature; the following shape-change dispatch
// prunes its substate from the root.
func (s *Store) UnregisterFeature(key string) error {
	if s.tornDown.Load() {
		return ErrStoreTornDown
	}
	if err := s.tree.remove(key); err != nil {
		return fmt.Errorf("%w: %q", err, key)
	}

	s.logInfoContext(context.Background(), logMsgFeatureRemoved, logAttrFeatureKey, key)

	_, err := s.Dispatch(UpdateReducers())

	return err
}

func validateFeature(key string, reducer Reducer) error {
	if key == "" {
		return ErrEmptyFeatureKey
	}
	if reducer == nil {
		return ErrNilReducer
	}

	return nil
}

// ApplyMiddleware appends stages to the pipeline in order and rebuilds the
// entire chain (no partial hot-swap): the stage registered first intercepts
// inbound first and outbound last. Accepted shapes: Middleware, a bare
// func(*Store, DispatchFunc) DispatchFunc, or an Observer, which is
// auto-wrapped into functional form.
func (s *Store) ApplyMiddleware(stages ...any) error {
	if s.tornDown.Load() {
		return ErrStoreTornDown
	}

	normalized := make([]Middleware, 0, len(stages))
	for _, stage := range stages {
		switch v := stage.(type) {
		case Middleware:
			normalized = append(normalized, v)
		case func(*Store, DispatchFunc) DispatchFunc:
			normalized = append(normalized, MiddlewareFunc(v))
		case Observer:
			normalized = append(normalized, observerMiddleware{obs: v})
		default:
			return fmt.Errorf("%w: %T", ErrUnsupportedMiddleware, stage)
		}
	}

	s.stagesMu.Lock()
	defer s.stagesMu.Unlock()
	s.stages = append(s.stages, normalized...)
	s.rebuildChain()

	return nil
}

// rebuildChain recomposes the full pipeline around the reduce step. The
// caller holds stagesMu.
func (s *Store) rebuildChain() {
	next := DispatchFunc(s.reduceAndPublish)
	for i := len(s.stages) - 1; i >= 0; i-- {
		next = s.stages[i].WrapDispatch(s, next)
	}
	s.chain.Store(&next)
}

// AddEffects registers an effect module: each effect's stream factory is
// invoked once against the action stream and stays subscribed until the
// module is removed or the store tears down.
func (s *Store) AddEffects(module EffectModule) error {
	if s.tornDown.Load() {
		return ErrStoreTornDown
	}
	if err := s.effects.add(module); err != nil {
		return err
	}

	s.logInfoContext(context.Background(), logMsgEffectModuleAdded, logAttrEffectModule, module.Name)

	return nil
}

// RemoveEffects cancels one module's subscriptions; other modules keep
// running.
func (s *Store) RemoveEffects(moduleName string) error {
	if err := s.effects.remove(moduleName); err != nil {
		return err
	}

	s.logInfoContext(context.Background(), logMsgEffectModuleRemoved, logAttrEffectModule, moduleName)

	return nil
}

// Teardown shuts the store down exactly once: effect subscriptions are
// canceled, middleware resources released, and the action and state streams
// completed, so Select subscribers observe completion. Any further
// operation returns ErrStoreTornDown.
func (s *Store) Teardown() {
	if !s.tornDown.CompareAndSwap(false, true) {
		return
	}

	s.effects.teardown()

	s.stagesMu.Lock()
	stages := s.stages
	s.stages = nil
	s.stagesMu.Unlock()

	for _, stage := range stages {
		if td, ok := stage.(Teardowner); ok {
			td.Teardown()
		}
	}

	s.actionBus.Complete()
	s.stateBus.Complete()

	if s.logger != nil {
		s.logger.Info(logMsgStoreTornDown)
	}
}
