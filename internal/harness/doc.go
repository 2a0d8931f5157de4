// Package harness runs traversal conformance scenarios.
//
// A scenario names a collection, the traversal options and a script of
// control actions the callback performs at chosen positions. The harness
// runs the traversal on a fresh engine, records every visit, action and
// engine event into a trace, and checks the outcome.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: restart_second_pass
//	description: "Restart yields the second pass result"
//	collection:
//	  kind: list            # "", list, object, ordered_map, ordered_set
//	  items: [10, 20, 30, 40]
//	traversal:              # inline options, or specs + use for CUE
//	  live: true
//	actions:
//	  - at: 1
//	    do: restart
//	expect:
//	  values: [10, 20, 30, 40]
//	  passes: 2
//	assertions:
//	  - type: trace_count
//	    event: pass_completed
//	    count: 2
//
// # Assertion Types
//
//   - trace_contains: an event of a type (and optional detail, pass) occurs
//   - trace_order: event types occur in order, gaps allowed
//   - trace_count: an event type occurs exactly N times
//   - visit_order: the callback saw exactly the listed values
//   - final_state: the journaled run has the listed fields
//
// # Deterministic Testing
//
// Every scenario gets its own logical clock, sequential run ids, a step
// time source (frozen unless slice_step is set) and an in-memory journal,
// so traces are identical across runs and can be compared against golden
// files.
package harness
