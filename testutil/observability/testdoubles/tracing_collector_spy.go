package testdoubles

import (
	"context"
	"sync"

	"github.com/storexkit/storex-go/storex"
)

// SpySpanContext is a SpanContext implementation that records status changes
// and attributes applied to one span.
type SpySpanContext struct {
	Name       string
	Status     string
	Attributes map[string]string
	mu         sync.Mutex
}

// SetStatus implements the SpanContext interface.
func (s *SpySpanContext) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
}

// AddAttribute implements the SpanContext interface.
func (s *SpySpanContext) AddAttribute(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Attributes[key] = value
}

// TracingCollectorSpy is a TracingCollector implementation that captures
// span lifecycles for testing.
type TracingCollectorSpy struct {
	started  []*SpySpanContext
	finished []SpyFinishedSpan
	mu       sync.Mutex
}

// SpyFinishedSpan represents one FinishSpan call.
type SpyFinishedSpan struct {
	Span   *SpySpanContext
	Status string
	Attrs  map[string]string
}

// NewTracingCollectorSpy creates a new TracingCollectorSpy.
func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{}
}

// StartSpan implements the TracingCollector interface.
func (s *TracingCollectorSpy) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, storex.SpanContext) {
	span := &SpySpanContext{
		Name:       name,
		Attributes: copyLabels(attrs),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, span)

	return ctx, span
}

// FinishSpan implements the TracingCollector interface.
func (s *TracingCollectorSpy) FinishSpan(spanCtx storex.SpanContext, status string, attrs map[string]string) {
	span, _ := spanCtx.(*SpySpanContext)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, SpyFinishedSpan{
		Span:   span,
		Status: status,
		Attrs:  copyLabels(attrs),
	})
}

// GetStartedSpans returns all spans started so far.
func (s *TracingCollectorSpy) GetStartedSpans() []*SpySpanContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*SpySpanContext(nil), s.started...)
}

// GetFinishedSpans returns all FinishSpan calls so far.
func (s *TracingCollectorSpy) GetFinishedSpans() []SpyFinishedSpan {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyFinishedSpan(nil), s.finished...)
}

// HasFinishedSpanWithStatus checks for a finished span with the given name
// and status.
func (s *TracingCollectorSpy) HasFinishedSpanWithStatus(name, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, finished := range s.finished {
		if finished.Span != nil && finished.Span.Name == name && finished.Status == status {
			return true
		}
	}

	return false
}

// Reset clears all captured spans.
func (s *TracingCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = s.started[:0]
	s.finished = s.finished[:0]
}

// Compile-time check to ensure TracingCollectorSpy implements the
// TracingCollector interface.
var _ storex.TracingCollector = (*TracingCollectorSpy)(nil)
