package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseScenario(t *testing.T, src string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(src), "")
	require.NoError(t, err)
	return s
}

func runScenario(t *testing.T, src string) *Result {
	t.Helper()
	result, err := Run(parseScenario(t, src))
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func TestRun_Break(t *testing.T) {
	result := runScenario(t, `
name: break
description: break ends the traversal after the current element
collection:
  items: [1, 2, 3]
actions:
  - at: 1
    do: break
expect:
  values: [1, 2]
  passes: 1
  visited: 2
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "run-0001", result.RunID)
}

func TestRun_ExpectationMismatch(t *testing.T) {
	result := runScenario(t, `
name: mismatch
description: wrong expectations fail the scenario
collection:
  items: [1, 2]
expect:
  values: [9]
  passes: 3
`)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "values: expected")
	assert.Contains(t, result.Errors[1], "passes: expected 3, got 1")
}

func TestRun_FailAction(t *testing.T) {
	result := runScenario(t, `
name: fail
description: a failing callback fails the traversal
collection:
  items: [1, 2]
actions:
  - at: 0
    do: fail
    value: boom
expect:
  error: boom
assertions:
  - type: trace_contains
    event: run_failed
  - type: final_state
    expect:
      outcome: failed
      visited: 0
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Error(t, result.Err)
}

func TestRun_UnexpectedError(t *testing.T) {
	result := runScenario(t, `
name: unexpected
description: an error nobody expected fails the scenario
collection:
  items: [1]
actions:
  - at: 0
    do: fail
    value: nope
expect:
  passes: 0
`)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "unexpected traversal error")
}

func TestRun_ObjectInherited(t *testing.T) {
	result := runScenario(t, `
name: inherited
description: inherited keys come from the parent chain
collection:
  kind: object
  items: {a: 1, b: 2}
  parent: {c: 3, a: 9}
traversal:
  own: inherited
expect:
  values: [3]
  keys: [c]
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_OrderedMapDeleteCurrent(t *testing.T) {
	result := runScenario(t, `
name: ordered_map_delete
description: deleting the current entry keeps the cursor on track
collection:
  kind: ordered_map
  items: {x: 1, y: 2, z: 3}
actions:
  - at: 0
    do: remove
expect:
  values: [1, 2, 3]
  keys: [x, y, z]
  remaining: [y, z]
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_OrderedSetLiveAppend(t *testing.T) {
	result := runScenario(t, `
name: ordered_set_append
description: a live key store traversal sees appended entries
collection:
  kind: ordered_set
  items: [a, b]
traversal:
  live: true
actions:
  - at: 0
    do: append
    value: c
expect:
  values: [a, b, c]
  remaining: [a, b, c]
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_OrderedSetSnapshotAppend(t *testing.T) {
	result := runScenario(t, `
name: ordered_set_append_snapshot
description: without live, entries appended during the pass are not visited
collection:
  kind: ordered_set
  items: [a, b]
actions:
  - at: 0
    do: append
    value: c
expect:
  values: [a, b]
  remaining: [a, b, c]
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_Jump(t *testing.T) {
	result := runScenario(t, `
name: jump
description: jump moves the cursor to an absolute position
collection:
  items: [0, 1, 2, 3, 4, 5]
actions:
  - at: 0
    do: jump
    amount: 3
expect:
  values: [0, 3, 4, 5]
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ShiftNotRelocatable(t *testing.T) {
	result := runScenario(t, `
name: not_relocatable
description: key store cursors cannot be moved
collection:
  kind: ordered_set
  items: [a, b]
actions:
  - at: 0
    do: shift
    amount: 1
expect:
  error: not relocatable
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ForcedYield(t *testing.T) {
	result := runScenario(t, `
name: forced_yield
description: a spent time slice forces the task to yield
collection:
  items: [1, 2, 3]
traversal:
  cooperative: true
slice_step: 20ms
expect:
  values: [1, 2, 3]
assertions:
  - type: trace_contains
    event: task_yielded
    detail: forced
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_CountAggregate(t *testing.T) {
	result := runScenario(t, `
name: count
description: the counter aggregator counts accepted elements
collection:
  items: [a, b, c]
aggregate: count
expect:
  result: 3
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 3, result.Value)
}

func TestRun_InlineWhere(t *testing.T) {
	result := runScenario(t, `
name: where
description: an inline where clause filters elements
collection:
  items:
    - {name: apple, price: 10}
    - {name: pear, price: 20}
    - {name: plum, price: 30}
traversal:
  where: {op: gt, field: price, value: 15}
expect:
  values:
    - {name: pear, price: 20}
    - {name: plum, price: 30}
  keys: [1, 2]
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_CUESpecWhere(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: cue_where
description: options come from a CUE traversal with a where clause
collection:
  items:
    - {price: 10}
    - {price: 20}
specs: [traversals.cue]
use: expensive
expect:
  values:
    - {price: 20}
`), "testdata/specs")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_CUEReversedScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/cue_reversed.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_UnknownTraversal(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: missing
description: use names a traversal the specs do not define
collection:
  items: [1]
specs: [traversals.cue]
use: nothing
expect:
  values: [1]
`), "testdata/specs")
	require.NoError(t, err)

	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `traversal "nothing" not found`)
}

func TestRun_UnsupportedCollection(t *testing.T) {
	s := parseScenario(t, `
name: scalar
description: a scalar is not a collection
collection:
  items: 42
expect:
  error: cannot traverse
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_FixedRunID(t *testing.T) {
	result := runScenario(t, `
name: fixed_id
description: a fixed run id shows up in the result
run_id: custom-run
collection:
  items: [1]
assertions:
  - type: final_state
    expect:
      id: custom-run
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "custom-run", result.RunID)
}
