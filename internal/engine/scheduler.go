package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/sweep/internal/ir"
)

// waitPollInterval is how often a task blocked on a full AwaitLimit gate
// re-tests the gate.
const waitPollInterval = 25 * time.Millisecond

// Scheduler interleaves cooperative traversals on one logical thread.
//
// A single driver goroutine owns the baton. It pops the next runnable task
// from the ready queue, hands it the baton and blocks until the task gives
// it back: because the slice expired (the task is re-queued at the back),
// because it parked (Suspend, Sleep, an await, the final drain), or because
// it finished. Parked tasks are re-queued by resumption events: a settled
// future, an elapsed timer, an explicit Resume, or Destroy.
//
// The driver starts with the first task and exits when no task is live.
//
// Thread-safety model:
//   - spawn, wake, destroy, Close: safe from any goroutine
//   - task bodies: run only while holding the baton
type Scheduler struct {
	mu      sync.Mutex
	queue   *readyQueue
	tasks   map[string]*Task
	running bool
	closed  bool

	budgets  Budgets
	now      TimeSource
	clock    *Clock
	logger   *slog.Logger
	observer Observer
}

type schedulerConfig struct {
	budgets  Budgets
	now      TimeSource
	clock    *Clock
	logger   *slog.Logger
	observer Observer
}

func newScheduler(cfg schedulerConfig) *Scheduler {
	return &Scheduler{
		queue:    newReadyQueue(),
		tasks:    make(map[string]*Task),
		budgets:  cfg.budgets,
		now:      cfg.now,
		clock:    cfg.clock,
		logger:   cfg.logger,
		observer: cfg.observer,
	}
}

// Live returns the number of tasks that have not finished.
func (s *Scheduler) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Lookup returns a live task by id.
func (s *Scheduler) Lookup(id string) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}

// Close destroys every live task and rejects new ones.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	for _, t := range s.tasks {
		s.destroyLocked(t)
	}
	s.mu.Unlock()
	s.logger.Info("scheduler closed")
}

// spawn creates a task for run and queues its first turn.
func (s *Scheduler) spawn(id string, priority ir.Priority, kind ir.Kind, fingerprint string, run func(*Task) (any, error)) (*Task, error) {
	t := &Task{
		id:          id,
		sched:       s,
		priority:    priority,
		kind:        kind,
		fingerprint: fingerprint,
		future:      NewFuture(),
		slice:       newTimeSlice(s.budgets.For(priority), s.now),
		run:         run,
		wake:        make(chan struct{}),
		yield:       make(chan yieldMsg),
		state:       TaskReady,
	}
	t.future.task = t

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSchedulerClosed
	}
	s.tasks[t.id] = t
	s.queue.Enqueue(resumeEvent{task: t, gen: t.gen})
	start := !s.running
	s.running = true
	live := len(s.tasks)
	s.mu.Unlock()

	liveTasks.Set(float64(live))
	go t.main()
	if start {
		go s.drive()
	}
	s.logger.Debug("task spawned", "task", t.id, "priority", priority, "kind", kind)
	return t, nil
}

// drive is the single driver loop.
func (s *Scheduler) drive() {
	s.logger.Debug("scheduler driver started")
	for {
		ev, ok := s.queue.TryDequeue()
		if ok {
			s.step(ev)
			continue
		}

		s.mu.Lock()
		if len(s.tasks) == 0 {
			s.running = false
			s.mu.Unlock()
			s.logger.Debug("scheduler driver idle")
			return
		}
		s.mu.Unlock()

		<-s.queue.Wait()
	}
}

// step gives the baton to one task and handles what it yields.
func (s *Scheduler) step(ev resumeEvent) {
	t := ev.task

	s.mu.Lock()
	if t.state != TaskReady || ev.gen != t.gen {
		s.mu.Unlock()
		return
	}
	t.state = TaskRunning
	if ev.hasValue {
		t.resumeValue = ev.value
	}
	t.hasSuspended = false
	t.suspended = nil
	s.mu.Unlock()

	t.wake <- struct{}{}
	msg := <-t.yield

	switch msg.kind {
	case yieldForced:
		s.mu.Lock()
		t.gen++
		t.state = TaskReady
		t.stats.ForcedYields++
		s.queue.Enqueue(resumeEvent{task: t, gen: t.gen})
		s.mu.Unlock()

		forcedYields.WithLabelValues(string(t.priority)).Inc()
		s.emit(Event{Type: EventTaskYielded, RunID: t.id, Kind: t.kind, Fingerprint: t.fingerprint, Priority: t.priority, Cooperative: true, Detail: "forced"})

	case yieldPark:
		s.mu.Lock()
		t.gen++
		t.state = msg.state
		t.stats.Suspensions++
		gen := t.gen
		destroyed := t.destroyed.Load()
		if destroyed {
			t.state = TaskReady
			s.queue.Enqueue(resumeEvent{task: t, gen: gen})
		}
		s.mu.Unlock()

		if !destroyed && msg.arm != nil {
			msg.arm(gen)
		}
		typ := EventTaskYielded
		if msg.state == TaskPaused {
			typ = EventTaskSuspended
		}
		s.emit(Event{Type: typ, RunID: t.id, Kind: t.kind, Fingerprint: t.fingerprint, Priority: t.priority, Cooperative: true, Detail: string(msg.state)})

	case yieldDone:
		s.finish(t, msg.result, msg.err)
	}
}

// finish records the outcome of a task and settles its future.
func (s *Scheduler) finish(t *Task, result any, err error) {
	s.mu.Lock()
	delete(s.tasks, t.id)
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.waits = nil
	switch {
	case err == nil:
		t.state = TaskCompleted
	case IsCancelled(err) || t.destroyed.Load():
		t.state = TaskCancelled
	default:
		t.state = TaskErrored
	}
	state := t.state
	live := len(s.tasks)
	s.mu.Unlock()

	liveTasks.Set(float64(live))
	switch state {
	case TaskCompleted:
		t.future.Resolve(result)
	case TaskCancelled:
		t.future.Reject(NewCancelledError(t.id))
	default:
		s.logger.Error("task failed", "task", t.id, "fingerprint", t.fingerprint, "error", err)
		t.future.Reject(err)
	}
	s.logger.Debug("task finished", "task", t.id, "state", state)
}

// wake queues a resumption for the park identified by gen. Stale
// generations and tasks that are not parked are ignored.
func (s *Scheduler) wake(t *Task, gen uint64, value any, hasValue bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wakeLocked(t, gen, value, hasValue)
}

func (s *Scheduler) wakeLocked(t *Task, gen uint64, value any, hasValue bool) bool {
	if t.gen != gen || !t.state.parked() {
		return false
	}
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.state = TaskReady
	s.queue.Enqueue(resumeEvent{task: t, gen: gen, value: value, hasValue: hasValue})
	return true
}

// sleepFor arms a timer that wakes the park identified by gen.
func (s *Scheduler) sleepFor(t *Task, gen uint64, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.gen != gen || t.state != TaskSleeping {
		return
	}
	t.timer = time.AfterFunc(d, func() {
		s.wake(t, gen, nil, false)
	})
}

// settleWait removes a settled future from the wait-set. The first
// rejection clears the whole set and wakes the task so it can fail.
func (s *Scheduler) settleWait(t *Task, f *Future) {
	v, err := f.Result()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := t.waits[f]; !ok {
		return
	}
	delete(t.waits, f)
	if err != nil {
		if t.waitErr == nil {
			t.waitErr = err
		}
		t.waits = nil
	} else {
		t.waitResults = append(t.waitResults, v)
	}
	if t.state == TaskDraining && (len(t.waits) == 0 || t.waitErr != nil) {
		s.wakeLocked(t, t.gen, nil, false)
	}
	if t.state == TaskSleeping && t.waitErr != nil {
		s.wakeLocked(t, t.gen, nil, false)
	}
}

func (s *Scheduler) destroy(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyLocked(t)
}

func (s *Scheduler) destroyLocked(t *Task) {
	if t.destroyed.Swap(true) {
		return
	}
	if !t.state.Terminal() {
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
		}
		t.waits = nil
		if t.state.parked() {
			t.state = TaskReady
			s.queue.Enqueue(resumeEvent{task: t, gen: t.gen})
		}
	}
	s.logger.Debug("task destroyed", "task", t.id, "children", len(t.children))
	for _, child := range t.children {
		s.destroyLocked(child)
	}
}

// emit stamps an event with the next logical seq and hands it to the
// observer.
func (s *Scheduler) emit(ev Event) {
	if s.observer == nil {
		return
	}
	ev.Seq = s.clock.Next()
	s.observer.Observe(ev)
}

func (s *Scheduler) String() string {
	return fmt.Sprintf("scheduler(live=%d)", s.Live())
}
