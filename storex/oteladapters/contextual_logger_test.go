package oteladapters_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/log/noop"

	"github.com/storexkit/storex-go/storex/oteladapters"
)

func Test_NewSlogBridgeLogger_Construction(t *testing.T) {
	logger := oteladapters.NewSlogBridgeLogger("test")
	assert.NotNil(t, logger)
}

func Test_SlogBridgeLogger_AllLevels(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	logger := oteladapters.NewSlogBridgeLoggerWithHandler(handler)
	ctx := context.Background()

	logger.DebugContext(ctx, "debug message", "level", "debug")
	logger.InfoContext(ctx, "info message", "level", "info")
	logger.WarnContext(ctx, "warn message", "level", "warn")
	logger.ErrorContext(ctx, "error message", "level", "error")

	output := buf.String()

	assert.Contains(t, output, "debug message")
	assert.Contains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
	assert.Contains(t, output, `"level":"debug"`)
	assert.Contains(t, output, `"level":"error"`)
}

func Test_SlogBridgeLogger_WithAttributes(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, nil)

	logger := oteladapters.NewSlogBridgeLoggerWithHandler(handler)

	logger.InfoContext(context.Background(), "dispatch completed",
		"action_type", "[Counter] Increment",
		"duration_ms", 1.25,
		"feature_count", 2,
	)

	output := buf.String()

	assert.Contains(t, output, "dispatch completed")
	assert.Contains(t, output, `"action_type":"[Counter] Increment"`)
	assert.Contains(t, output, `"duration_ms":1.25`)
	assert.Contains(t, output, `"feature_count":2`)
}

func Test_NewOTelLogger_Construction(t *testing.T) {
	otelLogger := noop.NewLoggerProvider().Logger("test")

	logger := oteladapters.NewOTelLogger(otelLogger)
	assert.NotNil(t, logger)
}

func Test_OTelLogger_AllLevels(t *testing.T) {
	otelLogger := noop.NewLoggerProvider().Logger("test")
	logger := oteladapters.NewOTelLogger(otelLogger)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		logger.DebugContext(ctx, "debug message", "test_key", "debug_value")
	})
	assert.NotPanics(t, func() {
		logger.InfoContext(ctx, "info message", "test_key", "info_value")
	})
	assert.NotPanics(t, func() {
		logger.WarnContext(ctx, "warn message", "test_key", "warn_value")
	})
	assert.NotPanics(t, func() {
		logger.ErrorContext(ctx, "error message", "test_key", "error_value")
	})
}

func Test_OTelLogger_ArgumentHandling(t *testing.T) {
	otelLogger := noop.NewLoggerProvider().Logger("test")
	logger := oteladapters.NewOTelLogger(otelLogger)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		logger.InfoContext(ctx, "test message",
			"string", "text_value",
			"number", 123,
			"float", 45.67,
			"boolean", false,
		)
	})

	assert.NotPanics(t, func() {
		logger.InfoContext(ctx, "test message", "key1", "value1", "dangling")
	}, "odd number of args should not panic")

	assert.NotPanics(t, func() {
		logger.InfoContext(ctx, "simple message")
	})
}
