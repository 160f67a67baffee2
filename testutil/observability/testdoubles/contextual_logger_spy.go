package testdoubles

import (
	"context"
	"sync"

	"github.com/storexkit/storex-go/storex"
)

// ContextualLoggerSpy is a ContextualLogger implementation that captures
// contextual logging calls for testing, including the context each record
// was logged with so trace correlation can be asserted.
type ContextualLoggerSpy struct {
	records []SpyContextualLogRecord
	mu      sync.Mutex
}

// SpyContextualLogRecord represents a recorded contextual log call.
type SpyContextualLogRecord struct {
	Level   string
	Message string
	Args    []any
	Context context.Context
}

// NewContextualLoggerSpy creates a new ContextualLoggerSpy instance.
func NewContextualLoggerSpy() *ContextualLoggerSpy {
	return &ContextualLoggerSpy{}
}

// DebugContext implements the ContextualLogger interface for testing.
func (s *ContextualLoggerSpy) DebugContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, "debug", msg, args)
}

// InfoContext implements the ContextualLogger interface for testing.
func (s *ContextualLoggerSpy) InfoContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, "info", msg, args)
}

// WarnContext implements the ContextualLogger interface for testing.
func (s *ContextualLoggerSpy) WarnContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, "warn", msg, args)
}

// ErrorContext implements the ContextualLogger interface for testing.
func (s *ContextualLoggerSpy) ErrorContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, "error", msg, args)
}

func (s *ContextualLoggerSpy) record(ctx context.Context, level, msg string, args []any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, SpyContextualLogRecord{
		Level:   level,
		Message: msg,
		Args:    append([]any(nil), args...),
		Context: ctx,
	})
}

// GetRecords returns a copy of all captured records.
func (s *ContextualLoggerSpy) GetRecords() []SpyContextualLogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyContextualLogRecord(nil), s.records...)
}

// GetTotalRecordCount returns the total number of log records across all
// levels.
func (s *ContextualLoggerSpy) GetTotalRecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}

// HasLog checks if a log with the specified level and message exists.
func (s *ContextualLoggerSpy) HasLog(level, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.records {
		if record.Level == level && record.Message == message {
			return true
		}
	}

	return false
}

// Reset clears all recorded log calls.
func (s *ContextualLoggerSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = s.records[:0]
}

// Compile-time check to ensure ContextualLoggerSpy implements the
// ContextualLogger interface.
var _ storex.ContextualLogger = (*ContextualLoggerSpy)(nil)
