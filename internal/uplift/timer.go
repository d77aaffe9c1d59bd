package uplift

import (
	"time"
)

// Timer tracks wall-clock time spent against a total budget.
// A negative budget means unbounded.
type Timer struct {
	budget  time.Duration
	startAt time.Time
	started bool
}

// NewTimer creates a timer with a budget. A zero budget is a real
// budget: it is exceeded as soon as any time has been spent.
func NewTimer(budget time.Duration) *Timer {
	return &Timer{budget: budget}
}

// NewUnboundedTimer creates a timer that never expires
func NewUnboundedTimer() *Timer {
	return &Timer{budget: -1}
}

// Start begins the measurement
func (t *Timer) Start() {
	t.startAt = time.Now()
	t.started = true
}

// TimeSpent returns the elapsed time since Start
func (t *Timer) TimeSpent() time.Duration {
	if !t.started {
		return 0
	}
	return time.Since(t.startAt)
}

// Budget returns the configured budget and whether one is set
func (t *Timer) Budget() (time.Duration, bool) {
	if t.budget < 0 {
		return 0, false
	}
	return t.budget, true
}

// LimitExceeded reports whether the spent time crossed the budget
func (t *Timer) LimitExceeded() bool {
	if t.budget < 0 || !t.started {
		return false
	}
	return t.TimeSpent() > t.budget
}
