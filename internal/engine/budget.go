package engine

import (
	"fmt"
	"time"

	"github.com/roach88/sweep/internal/ir"
)

// Budgets maps each priority tier to the run time a task may use between
// two suspensions before the scheduler forces it to yield.
type Budgets map[ir.Priority]time.Duration

// DefaultBudgets returns the stock tiers: low 5ms, normal 15ms, high 25ms,
// critical 50ms.
func DefaultBudgets() Budgets {
	return Budgets{
		ir.PriorityLow:      5 * time.Millisecond,
		ir.PriorityNormal:   15 * time.Millisecond,
		ir.PriorityHigh:     25 * time.Millisecond,
		ir.PriorityCritical: 50 * time.Millisecond,
	}
}

// For returns the budget of a tier, falling back to the normal tier and
// then to the stock default.
func (b Budgets) For(p ir.Priority) time.Duration {
	if d, ok := b[p]; ok && d > 0 {
		return d
	}
	if d, ok := b[ir.PriorityNormal]; ok && d > 0 {
		return d
	}
	return DefaultBudgets()[ir.PriorityNormal]
}

// Validate checks that budgets are positive and grow with the tier, so a
// higher tier never yields more often than a lower one.
func (b Budgets) Validate() error {
	prev := time.Duration(0)
	for _, p := range ir.Priorities {
		d := b.For(p)
		if d <= 0 {
			return fmt.Errorf("budget for %s must be positive, got %s", p, d)
		}
		if d < prev {
			return fmt.Errorf("budget for %s (%s) is smaller than the tier below (%s)", p, d, prev)
		}
		prev = d
	}
	return nil
}

// timeSlice tracks how long a task has run since it was last resumed.
//
// Each task owns one. The slice restarts every time the task is handed the
// baton; Expired is checked after every element and during key
// accumulation.
type timeSlice struct {
	budget time.Duration
	src    TimeSource
	start  time.Time
}

func newTimeSlice(budget time.Duration, src TimeSource) *timeSlice {
	return &timeSlice{budget: budget, src: src}
}

// Restart begins a new slice.
func (s *timeSlice) Restart() {
	s.start = s.src.Now()
}

// Expired reports whether the slice exceeded its budget.
func (s *timeSlice) Expired() bool {
	return s.src.Now().Sub(s.start) > s.budget
}
