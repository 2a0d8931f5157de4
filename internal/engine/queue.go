package engine

import "sync"

// resumeEvent hands the baton back to a parked task.
//
// gen is the park generation the event was created for; the driver drops
// events whose generation no longer matches, so a late timer or a duplicate
// resume can never wake a task out of order.
type resumeEvent struct {
	task     *Task
	gen      uint64
	value    any
	hasValue bool
}

// readyQueue is a thread-safe FIFO of runnable tasks.
//
// Futures settle and timers fire on arbitrary goroutines, so enqueueing is
// safe from anywhere while only the scheduler's driver dequeues. A buffered
// signal channel lets the driver wait without polling.
type readyQueue struct {
	mu     sync.Mutex
	events []resumeEvent
	signal chan struct{}
}

func newReadyQueue() *readyQueue {
	return &readyQueue{
		events: make([]resumeEvent, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event at the back of the queue.
func (q *readyQueue) Enqueue(e resumeEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.events = append(q.events, e)

	// Buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// TryDequeue removes the front event without blocking.
func (q *readyQueue) TryDequeue() (resumeEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return resumeEvent{}, false
	}
	e := q.events[0]
	q.events[0] = resumeEvent{} // release the task pointer for GC
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that signals when events may be available.
func (q *readyQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *readyQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
