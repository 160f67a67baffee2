package testdoubles

import (
	"sync"
	"time"

	"github.com/storexkit/storex-go/storex"
)

// MetricsCollectorSpy is a MetricsCollector implementation that captures
// metrics calls for testing store instrumentation.
type MetricsCollectorSpy struct {
	durationRecords []SpyDurationRecord
	counterRecords  []SpyCounterRecord
	valueRecords    []SpyValueRecord
	mu              sync.Mutex
}

// SpyDurationRecord represents a recorded duration metric call.
type SpyDurationRecord struct {
	Metric   string
	Duration time.Duration
	Labels   map[string]string
}

// SpyCounterRecord represents a recorded counter increment call.
type SpyCounterRecord struct {
	Metric string
	Labels map[string]string
}

// SpyValueRecord represents a recorded value metric call.
type SpyValueRecord struct {
	Metric string
	Value  float64
	Labels map[string]string
}

// NewMetricsCollectorSpy creates a new MetricsCollectorSpy.
func NewMetricsCollectorSpy() *MetricsCollectorSpy {
	return &MetricsCollectorSpy{}
}

// RecordDuration implements the MetricsCollector interface.
func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.durationRecords = append(s.durationRecords, SpyDurationRecord{
		Metric:   metric,
		Duration: duration,
		Labels:   copyLabels(labels),
	})
}

// IncrementCounter implements the MetricsCollector interface.
func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counterRecords = append(s.counterRecords, SpyCounterRecord{
		Metric: metric,
		Labels: copyLabels(labels),
	})
}

// RecordValue implements the MetricsCollector interface.
func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.valueRecords = append(s.valueRecords, SpyValueRecord{
		Metric: metric,
		Value:  value,
		Labels: copyLabels(labels),
	})
}

// copyLabels guards captured records against external modification.
func copyLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}

	return out
}

// GetDurationRecords returns a copy of all captured duration records.
func (s *MetricsCollectorSpy) GetDurationRecords() []SpyDurationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyDurationRecord(nil), s.durationRecords...)
}

// GetCounterRecords returns a copy of all captured counter records.
func (s *MetricsCollectorSpy) GetCounterRecords() []SpyCounterRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyCounterRecord(nil), s.counterRecords...)
}

// GetValueRecords returns a copy of all captured value records.
func (s *MetricsCollectorSpy) GetValueRecords() []SpyValueRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyValueRecord(nil), s.valueRecords...)
}

// CountDurationRecordsForMetric counts duration records for one metric name.
func (s *MetricsCollectorSpy) CountDurationRecordsForMetric(metric string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.durationRecords {
		if record.Metric == metric {
			count++
		}
	}

	return count
}

// CountCounterRecordsForMetric counts counter records for one metric name.
func (s *MetricsCollectorSpy) CountCounterRecordsForMetric(metric string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.counterRecords {
		if record.Metric == metric {
			count++
		}
	}

	return count
}

// HasCounterRecordWithLabel checks for a counter record carrying the given
// label key/value pair.
func (s *MetricsCollectorSpy) HasCounterRecordWithLabel(metric, key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.counterRecords {
		if record.Metric == metric && record.Labels[key] == value {
			return true
		}
	}

	return false
}

// HasDurationRecordWithLabel checks for a duration record carrying the given
// label key/value pair.
func (s *MetricsCollectorSpy) HasDurationRecordWithLabel(metric, key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.durationRecords {
		if record.Metric == metric && record.Labels[key] == value {
			return true
		}
	}

	return false
}

// Reset clears all captured metric records.
func (s *MetricsCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.durationRecords = s.durationRecords[:0]
	s.counterRecords = s.counterRecords[:0]
	s.valueRecords = s.valueRecords[:0]
}

// Compile-time check to ensure MetricsCollectorSpy implements the
// MetricsCollector interface.
var _ storex.MetricsCollector = (*MetricsCollectorSpy)(nil)
