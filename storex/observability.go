package storex

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Logger interface for dispatch logging, lifecycle events, warnings, and
// error reporting.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ContextualLogger interface for context-aware logging with automatic trace
// correlation. Optional: the store uses context-aware methods when
// configured and falls back to the base Logger otherwise.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// MetricsCollector interface for collecting store performance and
// operational metrics.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// ContextualMetricsCollector extends MetricsCollector with context-aware
// methods for better tracing integration. Optional: the store uses the
// context-aware methods when the configured collector supports them.
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
// from store operations. Dependency-free: integrate any tracing backend by
// implementing this interface.
type TracingCollector interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext)
	FinishSpan(spanCtx SpanContext, status string, attrs map[string]string)
}

const (
	logMsgDispatchCompleted      = "dispatch completed"
	logMsgDispatchFailed         = "dispatch failed"
	logMsgDeferredForwardFailed  = "deferred middleware forward failed"
	logMsgErrorHookPanicked      = "observer middleware error hook panicked"
	logMsgEffectOutputDropped    = "effect output dropped: not an action"
	logMsgEffectStreamFailed     = "effect stream failed"
	logMsgEffectRedispatchFailed = "effect redispatch failed"
	logMsgFeatureRegistered      = "feature registered"
	logMsgFeatureRemoved         = "feature removed"
	logMsgEffectModuleAdded      = "effect module added"
	logMsgEffectModuleRemoved    = "effect module removed"
	logMsgStoreTornDown          = "store torn down"

	logAttrActionType   = "action_type"
	logAttrFeatureKey   = "feature_key"
	logAttrEffectModule = "effect_module"
	logAttrEffectName   = "effect_name"
	logAttrStage        = "stage"
	logAttrDurationMS   = "duration_ms"
	logAttrError        = "error"
)

const (
	metricDispatchDuration = "storex_dispatch_duration_seconds"
	metricDispatchErrors   = "storex_dispatch_errors_total"
	metricEffectErrors     = "storex_effect_errors_total"

	labelActionType   = "action_type"
	labelStatus       = "status"
	labelEffectModule = "effect_module"

	statusSuccess = "success"
	statusError   = "error"

	spanNameDispatch   = "storex.dispatch"
	spanAttrActionType = "action_type"
	spanAttrErrorType  = "error_type"
	spanAttrDurationMS = "duration_ms"
)

// logDebugContext logs debug information, preferring the contextual logger.
func (s *Store) logDebugContext(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, msg, args...)
		return
	}
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

// logInfoContext logs operational information, preferring the contextual
// logger.
func (s *Store) logInfoContext(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, msg, args...)
		return
	}
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

// logWarn logs non-critical issues if a logger is configured.
func (s *Store) logWarn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

// logError logs error information if a logger is configured.
func (s *Store) logError(msg string, err error, args ...any) {
	if s.logger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		s.logger.Error(msg, allArgs...)
	}
}

// logErrorContext logs error information with context correlation.
func (s *Store) logErrorContext(ctx context.Context, msg string, err error, args ...any) {
	if s.contextualLogger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		s.contextualLogger.ErrorContext(ctx, msg, allArgs...)
		return
	}
	s.logError(msg, err, args...)
}

// recordDispatchDuration records dispatch duration metrics with context if
// the collector supports it.
func (s *Store) recordDispatchDuration(ctx context.Context, actionType, status string, duration time.Duration) {
	if s.metricsCollector == nil {
		return
	}
	labels := map[string]string{
		labelActionType: actionType,
		labelStatus:     status,
	}
	if contextualCollector, ok := s.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricDispatchDuration, duration, labels)
		return
	}
	s.metricsCollector.RecordDuration(metricDispatchDuration, duration, labels)
}

// recordDispatchError records dispatch error metrics with context if the
// collector supports it.
func (s *Store) recordDispatchError(ctx context.Context, actionType string) {
	if s.metricsCollector == nil {
		return
	}
	labels := map[string]string{
		labelActionType: actionType,
		labelStatus:     statusError,
	}
	if contextualCollector, ok := s.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricDispatchErrors, labels)
		return
	}
	s.metricsCollector.IncrementCounter(metricDispatchErrors, labels)
}

// recordEffectError counts a contained effect stream failure.
func (s *Store) recordEffectError(module string) {
	if s.metricsCollector == nil {
		return
	}
	s.metricsCollector.IncrementCounter(metricEffectErrors, map[string]string{labelEffectModule: module})
}

// startDispatchSpan starts a tracing span for a dispatch if the tracing
// collector is configured.
func (s *Store) startDispatchSpan(ctx context.Context, actionType string) (context.Context, SpanContext) {
	if s.tracingCollector == nil {
		return ctx, nil
	}
	return s.tracingCollector.StartSpan(ctx, spanNameDispatch, map[string]string{
		spanAttrActionType: actionType,
	})
}

// finishDispatchSpan finishes a dispatch span if one was started.
func (s *Store) finishDispatchSpan(span SpanContext, err error, duration time.Duration) {
	if s.tracingCollector == nil || span == nil {
		return
	}
	attrs := map[string]string{
		spanAttrDurationMS: formatMilliseconds(duration),
	}
	if err != nil {
		attrs[spanAttrErrorType] = err.Error()
		s.tracingCollector.FinishSpan(span, statusError, attrs)
		return
	}
	s.tracingCollector.FinishSpan(span, statusSuccess, attrs)
}

// durationToMilliseconds converts a duration to float64 milliseconds with
// three decimal places for log attributes.
func durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// formatMilliseconds renders a duration as milliseconds for span attributes.
func formatMilliseconds(d time.Duration) string {
	return fmt.Sprintf("%.2f", float64(d.Nanoseconds())/1e6)
}
