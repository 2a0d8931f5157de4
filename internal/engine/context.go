package engine

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/roach88/sweep/internal/ir"
)

// Context is the per-traversal state handed to filters and the callback.
//
// It carries the cursor (absolute position i and relative position n,
// with i-n fixed unless the cursor is relocated), the pass counter, the
// break and restart requests, and the scheduler task when the traversal is
// cooperative. Primitives a traversal cannot support report false instead
// of failing, so callbacks can branch on them.
//
// A Context must only be used from the filters and callback of its own
// traversal.
type Context struct {
	runID   string
	plan    *Plan
	cfg     *Config
	sched   *Scheduler
	task    *Task
	coll    any
	scratch map[string]any

	i       int
	n       int
	pass    int
	key     any
	visited int

	broken   bool
	endPass  bool
	restarts int

	suspendReq bool
	suspendVal any

	gates map[int]*semaphore.Weighted
}

func newContext(runID string, plan *Plan, cfg *Config, coll any, sched *Scheduler, task *Task) *Context {
	return &Context{
		runID:   runID,
		plan:    plan,
		cfg:     cfg,
		sched:   sched,
		task:    task,
		coll:    coll,
		scratch: make(map[string]any),
	}
}

// RunID identifies the traversal in logs and observer events.
func (c *Context) RunID() string { return c.runID }

// Collection returns the normalized collection being traversed.
func (c *Context) Collection() any { return c.coll }

// Info returns the shape the traversal was planned for.
func (c *Context) Info() ir.Shape { return c.plan.Shape }

// Kind returns the collection kind.
func (c *Context) Kind() ir.Kind { return c.plan.Kind }

// Task returns the scheduler task, or nil for synchronous traversals.
func (c *Context) Task() *Task { return c.task }

// Cooperative reports whether the traversal runs as a scheduler task.
func (c *Context) Cooperative() bool { return c.task != nil }

// Scratch is free-form storage that lives as long as the traversal,
// across restarted passes.
func (c *Context) Scratch() map[string]any { return c.scratch }

// Pass returns the zero-based pass number.
func (c *Context) Pass() int { return c.pass }

// Visited returns the number of callback invocations so far, over all
// passes.
func (c *Context) Visited() int { return c.visited }

// Key returns the key of the current element.
func (c *Context) Key() any { return c.key }

// Position returns the absolute position of the current element in
// traversal order.
func (c *Context) Position() int { return c.i }

// Relative returns the position relative to the start of the window.
func (c *Context) Relative() int { return c.n }

// Result returns the value accumulated so far.
func (c *Context) Result() any { return c.cfg.Aggregator.Result() }

// SetResult replaces the accumulated value.
func (c *Context) SetResult(v any) { c.cfg.Aggregator.SetResult(v) }

// Shift moves the cursor by delta. The next element visited is the one at
// Position()+delta+1. Shift(-1) after removing the current element of a
// live sequence revisits the index that now holds its successor.
func (c *Context) Shift(delta int) (int, bool) {
	if !c.plan.relocatable {
		return c.i, false
	}
	c.i += delta
	c.n += delta
	return c.i, true
}

// Jump moves the cursor so that the next element visited is at absolute
// position pos.
func (c *Context) Jump(pos int) (int, bool) {
	if !c.plan.relocatable || pos < 0 {
		return c.i, false
	}
	base := c.i - c.n
	c.i = pos - 1
	c.n = c.i - base
	return pos, true
}

// Break ends the current pass and the whole traversal, pending restarts
// included.
func (c *Context) Break() {
	c.broken = true
	c.endPass = true
}

// Restart ends the current pass and schedules one more full pass. Every
// call schedules another pass.
func (c *Context) Restart() {
	c.restarts++
	c.endPass = true
}

// Suspend parks the task once the current element is done. The value is
// visible through Task.Suspended until the task is resumed.
func (c *Context) Suspend(v any) bool {
	if c.task == nil {
		return false
	}
	c.suspendReq = true
	c.suspendVal = v
	return true
}

// Resume cancels a pending Suspend of this traversal, or resumes its task
// when it is paused or sleeping. The value is exposed by ResumeValue.
func (c *Context) Resume(v any) bool {
	if c.task == nil {
		return false
	}
	if c.suspendReq {
		c.suspendReq = false
		c.suspendVal = nil
		s := c.task.sched
		s.mu.Lock()
		c.task.resumeValue = v
		s.mu.Unlock()
		return true
	}
	return c.task.Resume(v)
}

// ResumeValue returns the value passed by the last resumption.
func (c *Context) ResumeValue() any {
	if c.task == nil {
		return nil
	}
	return c.task.takeResumeValue()
}

// RegisterChild makes t a child of this traversal's task: destroying the
// task destroys t. Registering the task itself or one of its ancestors
// fails.
func (c *Context) RegisterChild(t *Task) bool {
	if c.task == nil || t == nil {
		return false
	}
	if err := c.task.sched.adopt(c.task, t); err != nil {
		c.task.sched.logger.Warn("child registration rejected", "task", c.task.id, "child", t.id, "error", err)
		return false
	}
	return true
}

// AwaitValue suspends the traversal until f settles and returns its
// outcome.
func (c *Context) AwaitValue(f *Future) (any, error) {
	if c.task == nil {
		return nil, ErrNotCooperative
	}
	return c.await(f)
}

// AwaitLimit adds f to the task's wait-set without suspending. At most max
// futures added with the same limit are outstanding at once; while the
// gate is full the task sleeps and re-tests it every 25ms. The traversal
// does not complete until the wait-set drains. Results are available from
// WaitResults in settlement order; the first rejection fails the
// traversal.
func (c *Context) AwaitLimit(f *Future, max int) bool {
	if c.task == nil || f == nil || max <= 0 {
		return false
	}
	if c.gates == nil {
		c.gates = make(map[int]*semaphore.Weighted)
	}
	gate, ok := c.gates[max]
	if !ok {
		gate = semaphore.NewWeighted(int64(max))
		c.gates[max] = gate
	}
	if !gate.TryAcquire(1) {
		acquired := c.Sleep(waitPollInterval, func(*Context) bool {
			return gate.TryAcquire(1)
		}, true)
		if !acquired {
			return false
		}
	}
	c.task.addWait(f, func() { gate.Release(1) })
	return true
}

// WaitResults returns the values of settled wait-set futures.
func (c *Context) WaitResults() []any {
	if c.task == nil {
		return nil
	}
	return c.task.results()
}

// Sleep suspends the task for d. With a retry predicate the task sleeps
// again until the predicate passes when repeat is set; without repeat a
// failing predicate makes Sleep return false and the traversal continues.
// Sleep also returns false when the task was destroyed or a wait-set
// future was rejected while sleeping.
func (c *Context) Sleep(d time.Duration, retry func(*Context) bool, repeat bool) bool {
	t := c.task
	if t == nil {
		return false
	}
	for {
		err := t.park(TaskSleeping, func(gen uint64) {
			t.sched.sleepFor(t, gen, d)
		})
		if err != nil || t.takeWaitErr() != nil {
			return false
		}
		if retry == nil || retry(c) {
			return true
		}
		if !repeat {
			return false
		}
	}
}

// await settles f for the traversal. Cooperative traversals give up the
// baton until f settles; synchronous ones block.
func (c *Context) await(f *Future) (any, error) {
	if f == nil {
		return nil, nil
	}
	if f.Settled() {
		return f.Result()
	}
	t := c.task
	if t == nil {
		return f.Wait(context.Background())
	}
	err := t.park(TaskAwaiting, func(gen uint64) {
		f.onSettle(func() { t.sched.wake(t, gen, nil, false) })
	})
	if err != nil {
		return nil, err
	}
	return f.Result()
}

// resolve awaits v when it is a future.
func (c *Context) resolve(v any) (any, error) {
	if f, ok := v.(*Future); ok {
		return c.await(f)
	}
	return v, nil
}
