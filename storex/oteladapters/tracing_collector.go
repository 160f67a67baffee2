package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/storexkit/storex-go/storex"
)

// TracingCollector implements storex.TracingCollector using the OpenTelemetry
// tracing API, creating a span per dispatch or journal operation and
// propagating trace context automatically.
type TracingCollector struct {
	tracer trace.Tracer
}

// NewTracingCollector creates an OpenTelemetry tracing collector over tracer.
// The tracer should come from your OpenTelemetry TracerProvider.
func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

// StartSpan creates a new span with the given name and attributes. It returns
// a context carrying the span and a SpanContext wrapper for it.
func (t *TracingCollector) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, storex.SpanContext) {
	spanOptions := make([]trace.SpanStartOption, 0, len(attrs))
	for key, value := range attrs {
		spanOptions = append(spanOptions, trace.WithAttributes(attribute.String(key, value)))
	}

	spanCtx, span := t.tracer.Start(ctx, name, spanOptions...)

	return spanCtx, &OTelSpanContext{span: span}
}

// FinishSpan completes a span with the given status and final attributes.
func (t *TracingCollector) FinishSpan(spanCtx storex.SpanContext, status string, attrs map[string]string) {
	otelSpanCtx, ok := spanCtx.(*OTelSpanContext)
	if !ok {
		return
	}

	for key, value := range attrs {
		otelSpanCtx.span.SetAttributes(attribute.String(key, value))
	}

	otelSpanCtx.setSpanStatus(status)
	otelSpanCtx.span.End()
}

var _ storex.TracingCollector = (*TracingCollector)(nil)

// OTelSpanContext implements storex.SpanContext by wrapping an OpenTelemetry
// span.
type OTelSpanContext struct {
	span trace.Span
}

// SetStatus sets the span status from the generic status string.
func (s *OTelSpanContext) SetStatus(status string) {
	s.setSpanStatus(status)
}

// AddAttribute adds a string attribute to the span.
func (s *OTelSpanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

// setSpanStatus maps generic status strings to OpenTelemetry status codes.
// Unknown strings are recorded as a span attribute instead.
func (s *OTelSpanContext) setSpanStatus(status string) {
	switch status {
	case "ok", "success", "completed":
		s.span.SetStatus(codes.Ok, "")
	case "error", "failed", "failure":
		s.span.SetStatus(codes.Error, "Operation failed")
	case "cancelled", "canceled":
		s.span.SetStatus(codes.Error, "Operation cancelled")
	case "timeout":
		s.span.SetStatus(codes.Error, "Operation timed out")
	default:
		s.span.SetAttributes(attribute.String("status", status))
	}
}

var _ storex.SpanContext = (*OTelSpanContext)(nil)
