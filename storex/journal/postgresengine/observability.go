package postgresengine

import (
	"context"
	"math"
	"time"
)

const (
	spanNameAppend = "journal.append"
	spanNameReplay = "journal.replay"

	operationAppend = "append"
	operationReplay = "replay"

	statusSuccess = "success"
	statusError   = "error"

	spanAttrOperation  = "operation"
	spanAttrActionType = "action_type"
	spanAttrError      = "error"

	metricOperationDuration = "journal_operation_duration_seconds"
	metricOperationErrors   = "journal_operation_errors_total"
)

const (
	logMsgBuildInsertFailed  = "failed to build insert query"
	logMsgAppendExecFailed   = "failed to execute append"
	logMsgRowsAffectedFailed = "failed to read rows affected"
	logMsgRecordAppended     = "record appended"
	logMsgBuildSelectFailed  = "failed to build select query"
	logMsgReplayQueryFailed  = "failed to execute replay query"
	logMsgScanRowFailed      = "failed to scan journal row"
	logMsgBuildRecordFailed  = "failed to rebuild journal record"
	logMsgRecordsReplayed    = "records replayed"
	logMsgCloseRowsFailed    = "failed to close journal rows"
	logMsgSQLExecuted        = "sql executed: "
)

const (
	logAttrActionType  = "action_type"
	logAttrError       = "error"
	logAttrDurationMS  = "duration_ms"
	logAttrRecordCount = "record_count"
	logAttrQuery       = "query"
)

// logSQL logs the rendered SQL with execution time at debug level. The
// contextual logger wins when both loggers are configured, so trace
// correlation is not lost.
func (j Journal) logSQL(ctx context.Context, operation string, sqlQuery string, duration time.Duration) {
	switch {
	case j.contextualLogger != nil:
		j.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+operation,
			logAttrDurationMS, durationToMilliseconds(duration), logAttrQuery, sqlQuery)
	case j.logger != nil:
		j.logger.Debug(logMsgSQLExecuted+operation,
			logAttrDurationMS, durationToMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level.
func (j Journal) logOperation(ctx context.Context, msg string, args ...any) {
	switch {
	case j.contextualLogger != nil:
		j.contextualLogger.InfoContext(ctx, msg, args...)
	case j.logger != nil:
		j.logger.Info(msg, args...)
	}
}

// logWarn logs non-critical issues at warn level.
func (j Journal) logWarn(ctx context.Context, msg string, args ...any) {
	switch {
	case j.contextualLogger != nil:
		j.contextualLogger.WarnContext(ctx, msg, args...)
	case j.logger != nil:
		j.logger.Warn(msg, args...)
	}
}

// logError logs failures at error level.
func (j Journal) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	switch {
	case j.contextualLogger != nil:
		j.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	case j.logger != nil:
		j.logger.Error(msg, allArgs...)
	}
}

// recordOperation records the duration of an append or replay, and bumps the
// error counter when the operation failed. Context-aware collector methods
// are used when the configured collector supports them.
func (j Journal) recordOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if j.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		"status":          status,
	}

	if contextual, ok := j.metricsCollector.(ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metricOperationDuration, duration, labels)
		if status == statusError {
			contextual.IncrementCounterContext(ctx, metricOperationErrors, labels)
		}

		return
	}

	j.metricsCollector.RecordDuration(metricOperationDuration, duration, labels)
	if status == statusError {
		j.metricsCollector.IncrementCounter(metricOperationErrors, labels)
	}
}

// startSpan starts a tracing span when a tracing collector is configured.
func (j Journal) startSpan(ctx context.Context, spanName, actionType string) (context.Context, SpanContext) {
	if j.tracingCollector == nil {
		return ctx, nil
	}

	attrs := map[string]string{
		spanAttrOperation: spanName,
	}
	if actionType != "" {
		attrs[spanAttrActionType] = actionType
	}

	return j.tracingCollector.StartSpan(ctx, spanName, attrs)
}

// finishSpan finishes a tracing span, attaching the error when there is one.
func (j Journal) finishSpan(span SpanContext, status string, err error) {
	if j.tracingCollector == nil || span == nil {
		return
	}

	span.SetStatus(status)

	attrs := map[string]string{}
	if err != nil {
		span.AddAttribute(spanAttrError, err.Error())
		attrs[spanAttrError] = err.Error()
	}

	j.tracingCollector.FinishSpan(span, status, attrs)
}

// durationToMilliseconds converts a duration to float64 milliseconds with
// 3 decimal places.
func durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
