package testutil

import (
	"sync"
	"time"
)

// StepClock is a deterministic time source for scheduler tests.
//
// Every call to Now advances the clock by a fixed step, so the time a task
// "runs" is proportional to how often the scheduler looks at the clock,
// which is once per element plus once per resumption. Forced yields then
// depend only on the data and the budgets, never on the machine.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu    sync.Mutex
	now   time.Time
	step  time.Duration
	calls int
}

// NewStepClock creates a clock starting at the Unix epoch that advances by
// step on every Now call.
func NewStepClock(step time.Duration) *StepClock {
	return &StepClock{now: time.Unix(0, 0).UTC(), step: step}
}

// Now returns the current time, then advances it.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	c.calls++
	return t
}

// Advance moves the clock forward without counting a call.
func (c *StepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Calls returns how many times Now was called.
func (c *StepClock) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// FrozenClock never advances. Tasks using it are never forced to yield.
type FrozenClock struct {
	At time.Time
}

func (c FrozenClock) Now() time.Time { return c.At }
