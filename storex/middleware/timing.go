package middleware

import (
	"context"
	"time"

	"github.com/storexkit/storex-go/storex"
)

const (
	metricActionDuration = "storex_action_duration_seconds"
	metricActionErrors   = "storex_action_errors_total"

	labelActionType = "action_type"
	labelStatus     = "status"

	statusSuccess = "success"
	statusError   = "error"
)

// Timing records per-action-type dispatch durations and error counts through
// a metrics collector. Unlike the store's own dispatch metrics, this stage
// measures from its own position in the chain, so it can be placed to time
// just the stages inside it.
type Timing struct {
	metrics storex.MetricsCollector
}

// NewTiming builds the timing stage around collector.
func NewTiming(collector storex.MetricsCollector) *Timing {
	return &Timing{metrics: collector}
}

func (t *Timing) WrapDispatch(_ *storex.Store, next storex.DispatchFunc) storex.DispatchFunc {
	return func(ctx context.Context, action storex.Action) (storex.Action, error) {
		start := time.Now()

		out, err := next(ctx, action)
		duration := time.Since(start)

		if t.metrics == nil {
			return out, err
		}

		status := statusSuccess
		if err != nil {
			status = statusError
			t.metrics.IncrementCounter(metricActionErrors, map[string]string{
				labelActionType: action.Type,
			})
		}
		t.metrics.RecordDuration(metricActionDuration, duration, map[string]string{
			labelActionType: action.Type,
			labelStatus:     status,
		})

		return out, err
	}
}

var _ storex.Middleware = (*Timing)(nil)
