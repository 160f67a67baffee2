package storex

import (
	"errors"

	"github.com/storexkit/storex-go/scheduler"
)

// Option defines a functional option for configuring a Store.
type Option func(*Store) error

// WithLogger sets the logger for the store.
//
// Debug level: per-dispatch tracing (development use)
// Info level: lifecycle events such as feature and effect registration
// Warn level: non-critical issues like dropped effect outputs
// Error level: dispatch failures and contained effect stream errors.
func WithLogger(logger Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the store. When
// configured, dispatch-path log records carry the dispatch context for
// automatic trace correlation.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(s *Store) error {
		if logger == nil {
			return errors.New("contextual logger must not be nil")
		}
		s.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the store. The collector
// receives dispatch durations, dispatch error counts, and contained effect
// error counts.
func WithMetrics(collector MetricsCollector) Option {
	return func(s *Store) error {
		if collector == nil {
			return errors.New("metrics collector must not be nil")
		}
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the store. Every dispatch runs
// inside its own span.
func WithTracing(collector TracingCollector) Option {
	return func(s *Store) error {
		if collector == nil {
			return errors.New("tracing collector must not be nil")
		}
		s.tracingCollector = collector
		return nil
	}
}

// WithScheduler sets the scheduler used by deferred middleware timers.
// Defaults to the wall clock; tests swap in a virtual clock.
func WithScheduler(sched scheduler.Scheduler) Option {
	return func(s *Store) error {
		if sched == nil {
			return errors.New("scheduler must not be nil")
		}
		s.sched = sched
		return nil
	}
}
