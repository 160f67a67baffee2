// Package oteladapters provides OpenTelemetry adapters for the store
// observability interfaces. They are plug-and-play implementations for users
// who run OpenTelemetry and do not want to implement the interfaces
// themselves.
package oteladapters

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log"

	"github.com/storexkit/storex-go/storex"
)

// SlogBridgeLogger implements storex.ContextualLogger using the OpenTelemetry
// slog bridge. This is the recommended implementation: it provides automatic
// trace correlation and works with Go's standard log/slog package.
type SlogBridgeLogger struct {
	logger *slog.Logger
}

// NewSlogBridgeLogger creates a contextual logger backed by the OpenTelemetry
// slog bridge, using the global OpenTelemetry LoggerProvider.
func NewSlogBridgeLogger(name string) *SlogBridgeLogger {
	return &SlogBridgeLogger{logger: otelslog.NewLogger(name)}
}

// NewSlogBridgeLoggerWithHandler creates a contextual logger over the given
// slog.Handler as-is, without OpenTelemetry trace correlation. For trace
// correlation use NewSlogBridgeLogger instead.
func NewSlogBridgeLoggerWithHandler(handler slog.Handler) *SlogBridgeLogger {
	return &SlogBridgeLogger{logger: slog.New(handler)}
}

// DebugContext logs a debug message with context.
func (l *SlogBridgeLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.logger.DebugContext(ctx, msg, args...)
}

// InfoContext logs an info message with context.
func (l *SlogBridgeLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.logger.InfoContext(ctx, msg, args...)
}

// WarnContext logs a warning message with context.
func (l *SlogBridgeLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.logger.WarnContext(ctx, msg, args...)
}

// ErrorContext logs an error message with context.
func (l *SlogBridgeLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.logger.ErrorContext(ctx, msg, args...)
}

var _ storex.ContextualLogger = (*SlogBridgeLogger)(nil)

// OTelLogger implements storex.ContextualLogger using the OpenTelemetry
// logging API directly. More setup, more control over log record creation.
type OTelLogger struct {
	logger log.Logger
}

// NewOTelLogger creates a contextual logger over an OpenTelemetry log.Logger.
func NewOTelLogger(logger log.Logger) *OTelLogger {
	return &OTelLogger{logger: logger}
}

// DebugContext logs a debug message with context.
func (l *OTelLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, log.SeverityDebug, msg, args...)
}

// InfoContext logs an info message with context.
func (l *OTelLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, log.SeverityInfo, msg, args...)
}

// WarnContext logs a warning message with context.
func (l *OTelLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, log.SeverityWarn, msg, args...)
}

// ErrorContext logs an error message with context.
func (l *OTelLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, log.SeverityError, msg, args...)
}

// emit builds and emits an OpenTelemetry log record. Args come in key-value
// pairs like slog; odd trailing values are dropped.
func (l *OTelLogger) emit(ctx context.Context, severity log.Severity, msg string, args ...any) {
	record := log.Record{}
	record.SetSeverity(severity)
	record.SetBody(log.StringValue(msg))

	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			record.AddAttributes(log.String(key, stringValue(args[i+1])))
		}
	}

	l.logger.Emit(ctx, record)
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}

	return slog.AnyValue(v).String()
}

var _ storex.ContextualLogger = (*OTelLogger)(nil)
