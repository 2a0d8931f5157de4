package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/sweep/internal/engine"
	"github.com/roach88/sweep/internal/ir"
	"github.com/roach88/sweep/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, describeEvent(event))
		}
	}

	return buf.String()
}

func describeEvent(ev TraceEvent) string {
	switch ev.Type {
	case TraceVisit:
		return fmt.Sprintf("visit pass=%d pos=%d key=%v value=%v", ev.Pass, ev.Position, ev.Key, ev.Value)
	case TraceAction:
		return fmt.Sprintf("action %s pass=%d pos=%d", ev.Detail, ev.Pass, ev.Position)
	default:
		if ev.Detail != "" {
			return fmt.Sprintf("%s pass=%d visited=%d (%s)", ev.Type, ev.Pass, ev.Visited, ev.Detail)
		}
		return fmt.Sprintf("%s pass=%d visited=%d", ev.Type, ev.Pass, ev.Visited)
	}
}

// assertTraceContains checks that an event of the given type occurs,
// optionally with a matching detail and pass.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Type != assertion.Event {
			continue
		}
		if assertion.Detail != "" && event.Detail != assertion.Detail {
			continue
		}
		if assertion.Pass != nil && event.Pass != *assertion.Pass {
			continue
		}
		return nil
	}

	expected := "event " + assertion.Event
	if assertion.Detail != "" {
		expected += fmt.Sprintf(" with detail %q", assertion.Detail)
	}
	if assertion.Pass != nil {
		expected += fmt.Sprintf(" in pass %d", *assertion.Pass)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the event types occur in the given order.
// Events don't need to be consecutive (intervening events are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(assertion.Events) && event.Type == assertion.Events[next] {
			next++
		}
	}
	if next == len(assertion.Events) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("events in order: %v", assertion.Events),
		Actual:   fmt.Sprintf("matched %v, missing %s", assertion.Events[:next], assertion.Events[next]),
		Trace:    trace,
	}
}

// assertTraceCount checks that the event type occurs exactly the specified
// number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == assertion.Event {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertVisitOrder checks the exact sequence of values handed to the
// callback.
func assertVisitOrder(result *Result, assertion Assertion) error {
	visits := result.Visits()
	if valuesEqual(visits, assertion.Values) {
		return nil
	}
	return &AssertionError{
		Type:     AssertVisitOrder,
		Expected: fmt.Sprintf("visits %v", assertion.Values),
		Actual:   fmt.Sprintf("visits %v", visits),
		Trace:    result.Trace,
	}
}

// assertFinalState compares the journaled run against the expected
// fields (subset match on the run's JSON field names).
func assertFinalState(ctx context.Context, st *store.Store, runID string, assertion Assertion) error {
	run, err := st.ReadRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("final_state: read run %q: %w", runID, err)
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("final_state: %w", err)
	}
	var actual map[string]any
	if err := json.Unmarshal(data, &actual); err != nil {
		return fmt.Errorf("final_state: %w", err)
	}

	if !matchFields(actual, assertion.Expect) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("run %s with %v", runID, assertion.Expect),
			Actual:   fmt.Sprintf("%v", actual),
		}
	}
	return nil
}

// matchFields checks if actual contains all expected fields (subset match).
// Extra keys in actual are ignored.
func matchFields(actual map[string]any, expected map[string]any) bool {
	for key, expectedVal := range expected {
		actualVal, exists := actual[key]
		if !exists {
			return false
		}
		if !valuesEqual(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

// valuesEqual compares two decoded values through their canonical form,
// so 3, int64(3) and 3.0 are equal. Values without a canonical form fall
// back to their printed form.
func valuesEqual(actual, expected any) bool {
	a, errA := canonicalBytes(actual)
	b, errB := canonicalBytes(expected)
	if errA != nil || errB != nil {
		return fmt.Sprint(actual) == fmt.Sprint(expected)
	}
	return bytes.Equal(a, b)
}

func canonicalBytes(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	val, err := ir.ToValue(normalize(v))
	if err != nil {
		return nil, err
	}
	return ir.MarshalCanonical(val)
}

// normalize converts engine values and key types the canonical form does
// not cover.
func normalize(v any) any {
	switch val := v.(type) {
	case engine.Descriptor:
		return plain(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	case []int:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = e
		}
		return out
	default:
		return v
	}
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
	RunID string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides journal access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertVisitOrder:
			err = assertVisitOrder(result, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires journal context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, actx.RunID, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// checkExpect validates the traversal outcome against the expect clause.
func checkExpect(exp *Expect, result *Result, coll any) []string {
	var errs []string
	if exp == nil {
		if result.Err != nil {
			errs = append(errs, fmt.Sprintf("unexpected traversal error: %v", result.Err))
		}
		return errs
	}

	if exp.Error != "" {
		switch {
		case result.Err == nil:
			errs = append(errs, fmt.Sprintf("expected error containing %q, traversal succeeded", exp.Error))
		case !strings.Contains(result.Err.Error(), exp.Error):
			errs = append(errs, fmt.Sprintf("expected error containing %q, got %q", exp.Error, result.Err.Error()))
		}
	} else if result.Err != nil {
		errs = append(errs, fmt.Sprintf("unexpected traversal error: %v", result.Err))
	}

	if exp.Values != nil || exp.Keys != nil {
		collected, ok := result.Value.(engine.Collected)
		switch {
		case !ok:
			errs = append(errs, fmt.Sprintf("values/keys expect a collect aggregator, got %T", result.Value))
		default:
			if exp.Values != nil && !valuesEqual(collected.Values, exp.Values) {
				errs = append(errs, fmt.Sprintf("values: expected %v, got %v", exp.Values, collected.Values))
			}
			if exp.Keys != nil && !valuesEqual(collected.Keys, exp.Keys) {
				errs = append(errs, fmt.Sprintf("keys: expected %v, got %v", exp.Keys, collected.Keys))
			}
		}
	}

	if exp.Result != nil && !valuesEqual(result.Value, exp.Result) {
		errs = append(errs, fmt.Sprintf("result: expected %v, got %v", exp.Result, result.Value))
	}

	if exp.Visited != nil || exp.Passes != nil {
		visited, passes := 0, 0
		for _, ev := range result.Trace {
			switch engine.EventType(ev.Type) {
			case engine.EventPassCompleted:
				passes++
			case engine.EventRunCompleted, engine.EventRunFailed, engine.EventRunCancelled:
				visited = ev.Visited
			}
		}
		if exp.Visited != nil && visited != *exp.Visited {
			errs = append(errs, fmt.Sprintf("visited: expected %d, got %d", *exp.Visited, visited))
		}
		if exp.Passes != nil && passes != *exp.Passes {
			errs = append(errs, fmt.Sprintf("passes: expected %d, got %d", *exp.Passes, passes))
		}
	}

	if exp.Remaining != nil {
		rest, ok := remaining(coll)
		switch {
		case !ok:
			errs = append(errs, fmt.Sprintf("remaining: collection %T is not mutable", coll))
		case !valuesEqual(rest, exp.Remaining):
			errs = append(errs, fmt.Sprintf("remaining: expected %v, got %v", exp.Remaining, rest))
		}
	}

	return errs
}
