package engine

import "github.com/roach88/sweep/internal/ir"

// EventType names a traversal lifecycle event.
type EventType string

const (
	EventRunStarted    EventType = "run_started"
	EventPassCompleted EventType = "pass_completed"
	EventTaskYielded   EventType = "task_yielded"
	EventTaskSuspended EventType = "task_suspended"
	EventRunCompleted  EventType = "run_completed"
	EventRunFailed     EventType = "run_failed"
	EventRunCancelled  EventType = "run_cancelled"
)

// Event is one observable step of a traversal. Seq comes from the engine's
// logical clock, so events of one engine are totally ordered.
type Event struct {
	Seq         int64       `json:"seq"`
	Type        EventType   `json:"type"`
	RunID       string      `json:"run_id"`
	Kind        ir.Kind     `json:"kind"`
	Fingerprint string      `json:"fingerprint"`
	Priority    ir.Priority `json:"priority"`
	Cooperative bool        `json:"cooperative"`
	Pass        int         `json:"pass"`
	Visited     int         `json:"visited"`
	Detail      string      `json:"detail,omitempty"`
}

// Observer receives traversal events. Observe is called synchronously
// from the traversal, or from the scheduler driver for task events, so a
// slow observer slows every traversal of the engine.
type Observer interface {
	Observe(ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }

// Observers fans events out to several observers in order.
type Observers []Observer

func (o Observers) Observe(ev Event) {
	for _, obs := range o {
		obs.Observe(ev)
	}
}
