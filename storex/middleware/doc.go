// Package middleware ships the built-in dispatch pipeline stages: deferred
// timing stages (debounce, batch), observability stages (action logging,
// timing metrics, analytics), retention stages (history, persist, journal),
// error reporting, and thunks.
//
// Every stage keeps its private state mutex-guarded, because timer callbacks
// re-enter the pipeline from their own goroutine. The deferred stages forward
// through the next-dispatch they captured at chain build time, never back into
// the full chain, so a flushed aggregate cannot feed its own buffer.
package middleware
