// Package scheduler puts single-shot timer scheduling behind a small interface
// so components that defer work — debounce and batch stages, delayed streams —
// run against the runtime timers in production and against a manually advanced
// virtual clock in tests.
package scheduler

import "time"

// Cancel is the cancellation token returned by AfterFunc. Cancel reports
// whether it prevented the scheduled callback from running; once the callback
// ran, or after a previous successful Cancel, it returns false.
type Cancel interface {
	Cancel() bool
}

// Scheduler schedules single-shot callbacks.
type Scheduler interface {
	// AfterFunc arranges for fn to run once after d has elapsed and returns
	// the token that can call it off.
	AfterFunc(d time.Duration, fn func()) Cancel

	// Now reports the scheduler's current time.
	Now() time.Time
}

// Wall returns the Scheduler backed by the runtime timers and the wall clock.
// Callbacks run on their own goroutine, as with time.AfterFunc.
func Wall() Scheduler { return wallScheduler{} }

type wallScheduler struct{}

func (wallScheduler) AfterFunc(d time.Duration, fn func()) Cancel {
	return &wallCancel{timer: time.AfterFunc(d, fn)}
}

func (wallScheduler) Now() time.Time { return time.Now() }

type wallCancel struct {
	timer *time.Timer
}

func (c *wallCancel) Cancel() bool { return c.timer.Stop() }

var _ Scheduler = wallScheduler{}
var _ Cancel = (*wallCancel)(nil)
