package engine

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/roach88/sweep/internal/ir"
)

// TaskState is the scheduler-visible state of a task.
type TaskState string

const (
	TaskReady     TaskState = "ready"
	TaskRunning   TaskState = "running"
	TaskPaused    TaskState = "paused"
	TaskSleeping  TaskState = "sleeping"
	TaskAwaiting  TaskState = "awaiting"
	TaskDraining  TaskState = "draining"
	TaskCompleted TaskState = "completed"
	TaskCancelled TaskState = "cancelled"
	TaskErrored   TaskState = "errored"
)

// Terminal reports whether the task has finished.
func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskCancelled || s == TaskErrored
}

// parked reports whether the task is waiting for a resumption event.
func (s TaskState) parked() bool {
	switch s {
	case TaskPaused, TaskSleeping, TaskAwaiting, TaskDraining:
		return true
	}
	return false
}

// TaskStats counts how a task gave up the baton.
type TaskStats struct {
	// ForcedYields counts suspensions caused by an expired time slice.
	ForcedYields int
	// Suspensions counts voluntary suspensions: Suspend, Sleep, awaits and
	// the final drain of outstanding awaits.
	Suspensions int
}

// Task is one cooperative traversal managed by a Scheduler.
//
// The traversal runs on its own goroutine but only while holding the
// scheduler's baton, so at most one task of a scheduler executes at any
// moment. Every field below the baton channels is guarded by the
// scheduler's mutex.
type Task struct {
	id          string
	sched       *Scheduler
	priority    ir.Priority
	kind        ir.Kind
	fingerprint string
	future      *Future
	slice       *timeSlice
	run         func(*Task) (any, error)
	destroyed   atomic.Bool

	wake  chan struct{}
	yield chan yieldMsg

	state        TaskState
	gen          uint64
	parent       *Task
	children     []*Task
	timer        *time.Timer
	waits        map[*Future]struct{}
	waitResults  []any
	waitErr      error
	suspended    any
	hasSuspended bool
	resumeValue  any
	stats        TaskStats
}

type yieldKind int

const (
	yieldForced yieldKind = iota + 1
	yieldPark
	yieldDone
)

// yieldMsg is sent by a task goroutine when it returns the baton.
type yieldMsg struct {
	kind   yieldKind
	state  TaskState
	arm    func(gen uint64)
	result any
	err    error
}

// ID returns the run id (a UUIDv7 unless the engine was given another
// generator).
func (t *Task) ID() string { return t.id }

func (t *Task) Priority() ir.Priority { return t.priority }

// Future returns the completion handle of the task.
func (t *Task) Future() *Future { return t.future }

func (t *Task) State() TaskState {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	return t.state
}

func (t *Task) Stats() TaskStats {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	return t.stats
}

// Destroyed reports whether Destroy was called on the task or an ancestor.
func (t *Task) Destroyed() bool { return t.destroyed.Load() }

// Parent returns the task this one was registered under, if any.
func (t *Task) Parent() *Task {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	return t.parent
}

// Children returns the registered child tasks.
func (t *Task) Children() []*Task {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	return append([]*Task(nil), t.children...)
}

// Suspended returns the value passed to the last Suspend call while the
// task is paused.
func (t *Task) Suspended() (any, bool) {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	return t.suspended, t.hasSuspended
}

// Destroy cancels the task and, transitively, every registered child. A
// parked task is woken so it can unwind; no filter or callback runs after
// the wake-up. Destroying a finished task still cascades to its children.
func (t *Task) Destroy() {
	t.sched.destroy(t)
}

// Resume wakes a task paused by Suspend or sleeping in Sleep. The value is
// available to the traversal through Context.ResumeValue. It reports false
// when the task is not paused or sleeping.
func (t *Task) Resume(value any) bool {
	t.sched.mu.Lock()
	if t.state != TaskPaused && t.state != TaskSleeping {
		t.sched.mu.Unlock()
		return false
	}
	gen := t.gen
	t.sched.mu.Unlock()
	return t.sched.wake(t, gen, value, true)
}

func (t *Task) String() string {
	return fmt.Sprintf("task(%s, %s)", t.id, t.priority)
}

// main is the task goroutine. It waits for its first turn, runs the
// traversal, and hands the result back to the driver. A task destroyed
// before its first turn still runs: the traversal notices the flag before
// the first element and unwinds.
func (t *Task) main() {
	<-t.wake
	var (
		result any
		err    error
	)
	t.slice.Restart()
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		result, err = t.run(t)
	}()
	t.yield <- yieldMsg{kind: yieldDone, result: result, err: err}
}

// park returns the baton and blocks until a resumption event for this park
// arrives. arm runs on the driver once the park generation is known and
// must arrange that wake is eventually called with it.
func (t *Task) park(state TaskState, arm func(gen uint64)) error {
	t.yield <- yieldMsg{kind: yieldPark, state: state, arm: arm}
	<-t.wake
	if t.destroyed.Load() {
		return ErrCancelled
	}
	t.slice.Restart()
	return nil
}

// forceYield gives up the baton because the time slice expired. The task
// goes straight back to the end of the ready queue.
func (t *Task) forceYield() error {
	t.yield <- yieldMsg{kind: yieldForced}
	<-t.wake
	if t.destroyed.Load() {
		return ErrCancelled
	}
	t.slice.Restart()
	return nil
}

// tick is called between elements and during key accumulation. It yields
// when the slice is spent and reports cancellation.
func (t *Task) tick() error {
	if t.destroyed.Load() {
		return ErrCancelled
	}
	if t.slice.Expired() {
		return t.forceYield()
	}
	return nil
}

// addWait registers f in the wait-set. release runs exactly once when f
// settles, after f has left the wait-set.
func (t *Task) addWait(f *Future, release func()) {
	s := t.sched
	s.mu.Lock()
	if t.waits == nil {
		t.waits = make(map[*Future]struct{})
	}
	t.waits[f] = struct{}{}
	s.mu.Unlock()

	f.onSettle(func() {
		s.settleWait(t, f)
		release()
	})
}

func (t *Task) pendingWaits() int {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	return len(t.waits)
}

// takeWaitErr returns the first rejection among wait-set futures.
func (t *Task) takeWaitErr() error {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	return t.waitErr
}

func (t *Task) results() []any {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	return append([]any(nil), t.waitResults...)
}

func (t *Task) setSuspended(v any, ok bool) {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	t.suspended, t.hasSuspended = v, ok
}

func (t *Task) takeResumeValue() any {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	return t.resumeValue
}

// clearWaits drops the wait-set after a terminal error so no settlement
// wakes the task again.
func (t *Task) clearWaits() {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	t.waits = nil
}
