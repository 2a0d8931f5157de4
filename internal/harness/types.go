package harness

import (
	"github.com/roach88/sweep/internal/engine"
)

// Trace event types recorded by the harness itself. Engine lifecycle
// events keep their engine.EventType name.
const (
	TraceVisit  = "visit"
	TraceAction = "action"
)

// TraceEvent is one entry of a scenario trace: an element handed to the
// callback, a scripted action applied to the traversal, or an engine
// lifecycle event.
type TraceEvent struct {
	Seq      int64  `json:"seq"`
	Type     string `json:"type"`
	Pass     int    `json:"pass"`
	Position int    `json:"position,omitempty"`
	Key      any    `json:"key,omitempty"`
	Value    any    `json:"value,omitempty"`
	Visited  int    `json:"visited,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// element reports whether the event describes a single element.
func (e TraceEvent) element() bool {
	return e.Type == TraceVisit || e.Type == TraceAction
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expectation and assertion holds.
	Pass bool `json:"pass"`

	// RunID is the id the engine gave the traversal.
	RunID string `json:"run_id"`

	// Value is the aggregated traversal result.
	Value any `json:"value,omitempty"`

	// Err is the traversal error, if the traversal failed.
	Err error `json:"-"`

	// Trace contains visits, actions and engine events in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEngineTrace records an engine lifecycle event.
func (r *Result) AddEngineTrace(ev engine.Event) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:     ev.Seq,
		Type:    string(ev.Type),
		Pass:    ev.Pass,
		Visited: ev.Visited,
		Detail:  ev.Detail,
	})
}

// AddVisitTrace records an element handed to the callback.
func (r *Result) AddVisitTrace(el engine.Element, pass int, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:      seq,
		Type:     TraceVisit,
		Pass:     pass,
		Position: el.Position,
		Key:      el.Key,
		Value:    plain(el.Value),
	})
}

// AddActionTrace records a scripted action applied at an element.
func (r *Result) AddActionTrace(a Action, el engine.Element, pass int, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:      seq,
		Type:     TraceAction,
		Pass:     pass,
		Position: el.Position,
		Key:      el.Key,
		Detail:   a.String(),
	})
}

// Visits returns the values handed to the callback, in order.
func (r *Result) Visits() []any {
	out := []any{}
	for _, ev := range r.Trace {
		if ev.Type == TraceVisit {
			out = append(out, ev.Value)
		}
	}
	return out
}

// plain converts engine values that have no canonical form into plain
// maps.
func plain(v any) any {
	if d, ok := v.(engine.Descriptor); ok {
		return map[string]any{"key": d.Key, "value": plain(d.Value), "own": d.Own}
	}
	return v
}
