package testdoubles

import (
	"sync"

	"github.com/storexkit/storex-go/storex"
)

// LoggerSpy is a Logger implementation that captures log calls for testing.
type LoggerSpy struct {
	records []SpyLogRecord
	mu      sync.Mutex
}

// SpyLogRecord represents a recorded log call.
type SpyLogRecord struct {
	Level   string
	Message string
	Args    []any
}

// NewLoggerSpy creates a new LoggerSpy instance.
func NewLoggerSpy() *LoggerSpy {
	return &LoggerSpy{}
}

// Debug implements the Logger interface for testing.
func (s *LoggerSpy) Debug(msg string, args ...any) {
	s.record("debug", msg, args)
}

// Info implements the Logger interface for testing.
func (s *LoggerSpy) Info(msg string, args ...any) {
	s.record("info", msg, args)
}

// Warn implements the Logger interface for testing.
func (s *LoggerSpy) Warn(msg string, args ...any) {
	s.record("warn", msg, args)
}

// Error implements the Logger interface for testing.
func (s *LoggerSpy) Error(msg string, args ...any) {
	s.record("error", msg, args)
}

func (s *LoggerSpy) record(level, msg string, args []any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, SpyLogRecord{
		Level:   level,
		Message: msg,
		Args:    append([]any(nil), args...),
	})
}

// GetRecords returns a copy of all captured log records.
func (s *LoggerSpy) GetRecords() []SpyLogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyLogRecord(nil), s.records...)
}

// GetRecordCount returns the number of captured log records.
func (s *LoggerSpy) GetRecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}

// HasLog checks if a log with the specified level and message exists.
func (s *LoggerSpy) HasLog(level, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.records {
		if record.Level == level && record.Message == message {
			return true
		}
	}

	return false
}

// CountForLevel returns how many records were captured at the given level.
func (s *LoggerSpy) CountForLevel(level string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.records {
		if record.Level == level {
			count++
		}
	}

	return count
}

// Reset clears all recorded log calls.
func (s *LoggerSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = s.records[:0]
}

// Compile-time check to ensure LoggerSpy implements the Logger interface.
var _ storex.Logger = (*LoggerSpy)(nil)
