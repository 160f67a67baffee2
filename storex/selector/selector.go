// Package selector builds memoized derived-state selectors.
//
// A selector projects a state value into a derived view. Create composes zero
// or more input selectors with a combine function and memoizes the result on
// the values the inputs produced: as long as the store's structural-sharing
// invariant holds, an unchanged branch yields identical input values and the
// combine is skipped entirely.
package selector

import (
	"sync"
	"time"

	"github.com/storexkit/storex-go/statemap"
	"github.com/storexkit/storex-go/storex"
)

// Selector derives a view from a state value.
type Selector func(state any) any

// Combiner folds the input selector values into the derived view.
type Combiner func(values ...any) any

const (
	logMsgComputePanicked = "selector computation panicked"

	logAttrError = "error"
)

// Feature returns an input selector extracting one feature substate from the
// root state. Absent keys and non-root inputs yield nil.
func Feature(key string) Selector {
	return func(state any) any {
		root, ok := state.(statemap.Root)
		if !ok {
			return nil
		}
		value, _ := statemap.Get(root, key)

		return value
	}
}

// cacheEntry is one memoized computation, stamped with its compute time.
type cacheEntry struct {
	at     time.Time
	inputs []any
	output any
}

// memoized holds the cache and policy of one created selector. Entries are
// kept most-recent-first; a lookup hit moves its entry to the front without
// refreshing the compute timestamp, so TTL expiry is measured from the
// computation, not the last use.
type memoized struct {
	mu sync.Mutex

	inputs  []Selector
	combine Combiner
	eq      func(a, b any) bool
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	logger  storex.Logger

	entries    []cacheEntry
	lastOutput any
	hasOutput  bool
}

// Create builds a memoized selector from zero or more input selectors and a
// combine function. Without inputs the combine receives the state value
// itself. When the state arrives as a transition pair (anything with a
// NextState method, such as storex.Change), only the post-transition value
// feeds the inputs.
//
// Input values are compared by reference identity by default; see WithDeep.
// The cache holds WithMaxSize input sets (default one), evicting the least
// recently used set when the bound is exceeded; WithTTL additionally expires
// entries by age.
//
// A panic inside an input or the combine is contained: the failure is logged
// through the configured logger and the selector returns its last
// successfully computed output, or nil if none exists yet.
func Create(inputs []Selector, combine Combiner, opts ...Option) Selector {
	if combine == nil {
		panic("selector: nil combine function")
	}

	m := &memoized{
		inputs:  inputs,
		combine: combine,
		eq:      statemap.Identical,
		maxSize: 1,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m.evaluate
}

func (m *memoized) evaluate(state any) (out any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			if m.logger != nil {
				m.logger.Error(logMsgComputePanicked, logAttrError, (&storex.PanicError{Value: r}).Error())
			}
			out = nil
			if m.hasOutput {
				out = m.lastOutput
			}
		}
	}()

	if pair, ok := state.(interface{ NextState() any }); ok {
		state = pair.NextState()
	}

	values := m.inputValues(state)
	m.purgeExpired()

	output, hit := m.lookup(values)
	if !hit {
		output = m.combine(values...)
		m.insert(values, output)
	}

	m.lastOutput = output
	m.hasOutput = true

	return output
}

func (m *memoized) inputValues(state any) []any {
	if len(m.inputs) == 0 {
		return []any{state}
	}

	values := make([]any, len(m.inputs))
	for i, input := range m.inputs {
		values[i] = input(state)
	}

	return values
}

// purgeExpired drops entries whose age reached the TTL. Runs on every
// evaluation; with no TTL configured it is a no-op.
func (m *memoized) purgeExpired() {
	if m.ttl <= 0 || len(m.entries) == 0 {
		return
	}

	now := m.now()
	kept := m.entries[:0]
	for _, entry := range m.entries {
		if now.Sub(entry.at) < m.ttl {
			kept = append(kept, entry)
		}
	}
	m.entries = kept
}

// lookup scans most-recent-first and promotes a hit to the front.
func (m *memoized) lookup(values []any) (any, bool) {
	for i, entry := range m.entries {
		if !m.inputsMatch(entry.inputs, values) {
			continue
		}
		if i > 0 {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			m.entries = append([]cacheEntry{entry}, m.entries...)
		}

		return entry.output, true
	}

	return nil, false
}

func (m *memoized) inputsMatch(cached, values []any) bool {
	if len(cached) != len(values) {
		return false
	}
	for i := range cached {
		if !m.eq(cached[i], values[i]) {
			return false
		}
	}

	return true
}

// insert puts a fresh computation at the front and evicts the least recently
// used entries beyond the size bound, regardless of their age.
func (m *memoized) insert(values []any, output any) {
	m.entries = append([]cacheEntry{{at: m.now(), inputs: values, output: output}}, m.entries...)
	if len(m.entries) > m.maxSize {
		m.entries = m.entries[:m.maxSize]
	}
}
