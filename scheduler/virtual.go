package scheduler

import (
	"sync"
	"time"
)

// Virtual is a manually advanced Scheduler for deterministic tests. Time only
// moves when Advance is called; due callbacks run on the calling goroutine in
// deadline order, registration order among equal deadlines.
type Virtual struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	pending []*virtualTimer
}

// NewVirtual returns a Virtual scheduler frozen at start.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

func (v *Virtual) AfterFunc(d time.Duration, fn func()) Cancel {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	t := &virtualTimer{owner: v, due: v.now.Add(d), seq: v.seq, fn: fn}
	v.pending = append(v.pending, t)
	return t
}

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// Advance moves the clock forward by d, running every callback that becomes
// due. Callbacks may arm further timers; those run within the same Advance
// when their deadline falls inside the window.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	target := v.now.Add(d)
	for {
		t := v.popDueLocked(target)
		if t == nil {
			break
		}
		v.now = t.due
		v.mu.Unlock()
		t.fn()
		v.mu.Lock()
	}
	v.now = target
	v.mu.Unlock()
}

// Pending reports how many timers are armed.
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.pending)
}

// popDueLocked removes and returns the earliest timer due at or before target,
// nil when none is due.
func (v *Virtual) popDueLocked(target time.Time) *virtualTimer {
	best := -1
	for i, t := range v.pending {
		if t.due.After(target) {
			continue
		}
		if best == -1 || t.due.Before(v.pending[best].due) ||
			(t.due.Equal(v.pending[best].due) && t.seq < v.pending[best].seq) {
			best = i
		}
	}
	if best == -1 {
		return nil
	}
	t := v.pending[best]
	t.fired = true
	v.pending = append(v.pending[:best], v.pending[best+1:]...)
	return t
}

type virtualTimer struct {
	owner *Virtual
	due   time.Time
	seq   uint64
	fn    func()
	fired bool
}

func (t *virtualTimer) Cancel() bool {
	v := t.owner
	v.mu.Lock()
	defer v.mu.Unlock()
	if t.fired {
		return false
	}
	for i, p := range v.pending {
		if p == t {
			v.pending = append(v.pending[:i], v.pending[i+1:]...)
			t.fired = true
			return true
		}
	}
	return false
}

var _ Scheduler = (*Virtual)(nil)
var _ Cancel = (*virtualTimer)(nil)
