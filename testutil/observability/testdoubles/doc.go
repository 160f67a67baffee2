// Package testdoubles provides test doubles (spies) for observability interfaces.
//
// This package contains spy implementations for the store's dependency-free
// observability interfaces:
//   - LoggerSpy: captures plain log calls for verification
//   - ContextualLoggerSpy: captures structured logging with context
//   - MetricsCollectorSpy: captures metrics recording calls
//   - TracingCollectorSpy: captures spans with their status and attributes
//
// These test doubles enable testing of observability instrumentation without
// requiring actual telemetry backends.
package testdoubles
