package storex

import (
	"fmt"
	"sync"

	"github.com/storexkit/storex-go/streams"
)

// EffectSource derives a stream of outputs from the store's action stream.
// It is invoked exactly once, at registration.
type EffectSource func(actions *streams.Stream[Action]) *streams.Stream[any]

// Effect pairs a named stream factory with its redispatch flag.
type Effect struct {
	Name       string
	Source     EffectSource
	Redispatch bool
}

// CreateEffect declares an effect whose outputs are redispatched: every
// well-formed Action its stream emits is dispatched in emission order;
// anything else is logged and dropped, never forwarded.
func CreateEffect(name string, source EffectSource) Effect {
	return Effect{Name: name, Source: source, Redispatch: true}
}

// CreateEffectNoDispatch declares a fire-and-forget effect; its outputs are
// discarded.
func CreateEffectNoDispatch(name string, source EffectSource) Effect {
	return Effect{Name: name, Source: source, Redispatch: false}
}

// EffectModule groups effects that register and tear down as one unit.
type EffectModule struct {
	Name    string
	Effects []Effect
}

// NewEffectModule builds the explicit registration list for a module's
// effects.
func NewEffectModule(name string, effects ...Effect) EffectModule {
	return EffectModule{Name: name, Effects: effects}
}

// effectsManager owns every effect subscription from registration until
// module removal or store teardown.
//
// Errors surfacing inside an effect's stream are contained: logged and
// counted, never re-thrown to the dispatch caller. The stream layer permits
// no further emissions on an errored subscription, so a failed effect stays
// dead until its module is removed and registered again; the manager never
// re-subscribes on its own.
type effectsManager struct {
	store   *Store
	mu      sync.Mutex
	modules map[string][]*streams.Subscription
}

func newEffectsManager(store *Store) *effectsManager {
	return &effectsManager{
		store:   store,
		modules: make(map[string][]*streams.Subscription),
	}
}

func (m *effectsManager) add(module EffectModule) error {
	if module.Name == "" {
		return ErrEmptyEffectModuleName
	}
	for _, eff := range module.Effects {
		if eff.Source == nil {
			return fmt.Errorf("%w: effect %q in module %q", ErrNilEffectSource, eff.Name, module.Name)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.modules[module.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateEffectModule, module.Name)
	}

	subs := make([]*streams.Subscription, 0, len(module.Effects))
	for _, eff := range module.Effects {
		out, err := buildEffectStream(eff, m.store.actionBus.Stream())
		if err != nil {
			for _, sub := range subs {
				sub.Dispose()
			}
			return fmt.Errorf("effect %q in module %q: %w", eff.Name, module.Name, err)
		}
		subs = append(subs, m.subscribe(module.Name, eff, out))
	}

	m.modules[module.Name] = subs

	return nil
}

func (m *effectsManager) remove(moduleName string) error {
	m.mu.Lock()
	subs, exists := m.modules[moduleName]
	delete(m.modules, moduleName)
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %q", ErrUnknownEffectModule, moduleName)
	}

	for _, sub := range subs {
		sub.Dispose()
	}

	return nil
}

func (m *effectsManager) teardown() {
	m.mu.Lock()
	modules := m.modules
	m.modules = make(map[string][]*streams.Subscription)
	m.mu.Unlock()

	for _, subs := range modules {
		for _, sub := range subs {
			sub.Dispose()
		}
	}
}

// buildEffectStream invokes the stream factory, converting a panic or a nil
// result into a registration error.
func buildEffectStream(eff Effect, actions *streams.Stream[Action]) (out *streams.Stream[any], err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &PanicError{Value: r}
		}
	}()

	out = eff.Source(actions)
	if out == nil {
		return nil, ErrNilEffectStream
	}

	return out, nil
}

func (m *effectsManager) subscribe(moduleName string, eff Effect, out *streams.Stream[any]) *streams.Subscription {
	store := m.store

	return out.Subscribe(streams.Observer[any]{
		Next: func(v any) {
			if !eff.Redispatch {
				return
			}
			act, ok := v.(Action)
			if !ok {
				store.logWarn(logMsgEffectOutputDropped,
					logAttrEffectModule, moduleName,
					logAttrEffectName, eff.Name)
				return
			}
			if _, dispatchErr := store.Dispatch(act); dispatchErr != nil {
				store.logError(logMsgEffectRedispatchFailed, dispatchErr,
					logAttrEffectModule, moduleName,
					logAttrEffectName, eff.Name,
					logAttrActionType, act.Type)
			}
		},
		Error: func(streamErr error) {
			store.logError(logMsgEffectStreamFailed, streamErr,
				logAttrEffectModule, moduleName,
				logAttrEffectName, eff.Name)
			store.recordEffectError(moduleName)
		},
	})
}
