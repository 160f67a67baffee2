package postgresengine

import (
	"context"
	"errors"
	"time"

	"github.com/storexkit/storex-go/storex/journal"
)

// Logger interface for SQL logging, operational information, warnings, and
// error reporting.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ContextualLogger interface for context-aware logging with automatic trace
// correlation. Optional: the engine prefers its context-aware methods and
// falls back to the base Logger otherwise.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// MetricsCollector interface for collecting journal engine performance and
// operational metrics.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// ContextualMetricsCollector extends MetricsCollector with context-aware
// methods for better tracing integration.
type ContextualMetricsCollector interface {
	MetricsCollector
	RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string)
	IncrementCounterContext(ctx context.Context, metric string, labels map[string]string)
	RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string)
}

// SpanContext represents an active tracing span that can be finished and
// updated with attributes.
type SpanContext interface {
	SetStatus(status string)
	AddAttribute(key, value string)
}

// TracingCollector interface for collecting distributed tracing information
// from journal operations. Dependency-free: integrate any tracing backend by
// implementing this interface.
type TracingCollector interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext)
	FinishSpan(spanCtx SpanContext, status string, attrs map[string]string)
}

// Option defines a functional option for configuring the journal engine.
type Option func(*Journal) error

// WithTableName sets the journal table name.
func WithTableName(tableName string) Option {
	return func(j *Journal) error {
		if tableName == "" {
			return journal.ErrEmptyTableName
		}
		j.tableName = tableName
		return nil
	}
}

// WithLogger sets the logger for the engine.
//
// Debug level: SQL statements with execution timing (development use)
// Info level: record counts and durations (production-safe)
// Warn level: non-critical issues like row cleanup failures
// Error level: failures that fail the operation.
func WithLogger(logger Logger) Option {
	return func(j *Journal) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		j.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the engine.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(j *Journal) error {
		if logger == nil {
			return errors.New("contextual logger must not be nil")
		}
		j.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the engine. The collector
// receives append/replay durations and error counts.
func WithMetrics(collector MetricsCollector) Option {
	return func(j *Journal) error {
		if collector == nil {
			return errors.New("metrics collector must not be nil")
		}
		j.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the engine. Every append and
// replay runs inside its own span.
func WithTracing(collector TracingCollector) Option {
	return func(j *Journal) error {
		if collector == nil {
			return errors.New("tracing collector must not be nil")
		}
		j.tracingCollector = collector
		return nil
	}
}
