package selector

import (
	"time"

	"github.com/storexkit/storex-go/statemap"
	"github.com/storexkit/storex-go/storex"
)

// Option configures a memoized selector at construction. Invalid values are
// normalized rather than rejected: a created selector is always usable.
type Option func(*memoized)

// WithShallow compares cached input values by reference identity, the
// default. It is the cheapest policy and relies on the store's
// structural-sharing invariant.
func WithShallow() Option {
	return func(m *memoized) { m.eq = statemap.Identical }
}

// WithDeep compares cached input values by structural equality. Use it when
// inputs are rebuilt on every call yet frequently equal in value.
func WithDeep() Option {
	return func(m *memoized) { m.eq = statemap.DeepEqual }
}

// WithTTL expires cache entries once their age since computation reaches d.
// Zero or negative disables expiry.
func WithTTL(d time.Duration) Option {
	return func(m *memoized) { m.ttl = d }
}

// WithMaxSize bounds how many input sets the cache retains. Values below one
// are treated as one.
func WithMaxSize(n int) Option {
	return func(m *memoized) {
		if n < 1 {
			n = 1
		}
		m.maxSize = n
	}
}

// WithNow overrides the cache clock. Tests pin TTL behavior with it; nil
// keeps the wall clock.
func WithNow(now func() time.Time) Option {
	return func(m *memoized) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger reports contained computation failures.
func WithLogger(logger storex.Logger) Option {
	return func(m *memoized) { m.logger = logger }
}
