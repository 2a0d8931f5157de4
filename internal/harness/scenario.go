package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sweep/internal/ir"
)

// Scenario defines a traversal conformance scenario: a collection, the
// traversal options, scripted control actions applied at chosen elements,
// and the expectations on the result and trace.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Collection is the data traversed.
	Collection Collection `yaml:"collection"`

	// Traversal holds inline traversal options.
	Traversal *ir.TraversalSpec `yaml:"traversal,omitempty"`

	// Specs lists CUE files defining named traversals. Paths are relative
	// to the scenario file location. Use picks one of them.
	Specs []string `yaml:"specs,omitempty"`
	Use   string   `yaml:"use,omitempty"`

	// Aggregate selects the aggregator: collect (default), last, count or
	// discard.
	Aggregate string `yaml:"aggregate,omitempty"`

	// Actions are applied when the callback reaches their position.
	Actions []Action `yaml:"actions,omitempty"`

	// Expect validates the traversal outcome.
	Expect *Expect `yaml:"expect,omitempty"`

	// Assertions validate the trace and the journaled run.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// RunID is an optional fixed run id. Defaults to "run-0001".
	RunID string `yaml:"run_id,omitempty"`

	// SliceStep advances the engine's time source on every reading. Zero
	// freezes time so cooperative traversals never yield by force.
	SliceStep time.Duration `yaml:"slice_step,omitempty"`
}

// Collection kinds a scenario can build.
const (
	CollectionPlain      = ""
	CollectionList       = "list"
	CollectionObject     = "object"
	CollectionOrderedMap = "ordered_map"
	CollectionOrderedSet = "ordered_set"
)

// Collection describes the traversed data. Plain items decode to a slice
// or a map; the other kinds build the engine's mutable collections, with
// mapping entries kept in file order.
type Collection struct {
	Kind  string    `yaml:"kind,omitempty"`
	Items yaml.Node `yaml:"items"`
	// Parent holds inherited keys for object collections.
	Parent yaml.Node `yaml:"parent,omitempty"`
}

// Action kinds.
const (
	ActionBreak   = "break"
	ActionRestart = "restart"
	ActionShift   = "shift"
	ActionJump    = "jump"
	ActionRemove  = "remove"
	ActionAppend  = "append"
	ActionSleep   = "sleep"
	ActionFail    = "fail"
)

// Action is a control step the callback performs at one element.
type Action struct {
	// At is the element position that triggers the action.
	At int `yaml:"at"`

	// Pass restricts the action to one pass. Defaults to the first.
	Pass int `yaml:"pass,omitempty"`

	// Do is the action kind.
	Do string `yaml:"do"`

	// Amount is the delta for shift and the target for jump.
	Amount int `yaml:"amount,omitempty"`

	// Value is appended by append and used as the message by fail.
	Value any `yaml:"value,omitempty"`
}

// String renders the action for traces.
func (a Action) String() string {
	switch a.Do {
	case ActionShift, ActionJump:
		return fmt.Sprintf("%s(%d)", a.Do, a.Amount)
	case ActionAppend, ActionFail:
		return fmt.Sprintf("%s(%v)", a.Do, a.Value)
	default:
		return a.Do
	}
}

// Expect specifies the expected traversal outcome. Nil fields are not
// checked.
type Expect struct {
	// Values are the collected callback results in order.
	Values []any `yaml:"values,omitempty"`

	// Keys are the collected element keys in order.
	Keys []any `yaml:"keys,omitempty"`

	// Result is the aggregated result for non-collect aggregators.
	Result any `yaml:"result,omitempty"`

	// Visited is the number of elements the callback accepted.
	Visited *int `yaml:"visited,omitempty"`

	// Passes is the number of completed passes.
	Passes *int `yaml:"passes,omitempty"`

	// Error is a substring of the expected traversal error.
	Error string `yaml:"error,omitempty"`

	// Remaining is the collection content after the traversal: values
	// for lists and sets, keys for maps and objects.
	Remaining []any `yaml:"remaining,omitempty"`
}

// Assertion validates the trace or the journaled run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event of the given type (and detail, pass) occurs
	// - "trace_order": event types occur in order, gaps allowed
	// - "trace_count": an event type occurs exactly Count times
	// - "visit_order": the callback saw exactly Values, in order
	// - "final_state": the journaled run has the expected fields
	Type string `yaml:"type"`

	// Event is the event type (trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Detail optionally narrows trace_contains to one event detail.
	Detail string `yaml:"detail,omitempty"`

	// Pass optionally narrows trace_contains to one pass.
	Pass *int `yaml:"pass,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected event order (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Values are the expected visited values (visit_order).
	Values []any `yaml:"values,omitempty"`

	// Expect contains expected run fields (final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertVisitOrder    = "visit_order"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. Spec paths are
// resolved relative to the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving spec paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, basePath)
}

// ParseScenario parses scenario YAML, resolving spec paths against
// basePath.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve spec paths relative to base path BEFORE validation
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Collection.Items.Kind == 0 {
		return fmt.Errorf("collection.items is required")
	}
	switch s.Collection.Kind {
	case CollectionPlain, CollectionList, CollectionObject, CollectionOrderedMap, CollectionOrderedSet:
	default:
		return fmt.Errorf("collection.kind: unknown kind %q", s.Collection.Kind)
	}

	if s.Traversal != nil && s.Use != "" {
		return fmt.Errorf("traversal and use are mutually exclusive")
	}
	if s.Use != "" && len(s.Specs) == 0 {
		return fmt.Errorf("use %q requires a specs list", s.Use)
	}
	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	switch s.Aggregate {
	case "", "collect", "last", "count", "discard":
	default:
		return fmt.Errorf("aggregate: unknown aggregator %q", s.Aggregate)
	}

	if s.SliceStep < 0 {
		return fmt.Errorf("slice_step must not be negative")
	}

	for i, a := range s.Actions {
		if err := validateAction(i, a); err != nil {
			return err
		}
	}

	if s.Expect == nil && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or assertions is required")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateAction(index int, a Action) error {
	if a.At < 0 {
		return fmt.Errorf("actions[%d]: at must be non-negative", index)
	}
	if a.Pass < 0 {
		return fmt.Errorf("actions[%d]: pass must be non-negative", index)
	}
	switch a.Do {
	case ActionBreak, ActionRestart, ActionShift, ActionJump, ActionRemove, ActionSleep:
	case ActionAppend:
		if a.Value == nil {
			return fmt.Errorf("actions[%d]: value is required for append", index)
		}
	case ActionFail:
		if a.Value == nil {
			return fmt.Errorf("actions[%d]: value is required for fail", index)
		}
	case "":
		return fmt.Errorf("actions[%d]: do is required", index)
	default:
		return fmt.Errorf("actions[%d]: unknown action %q", index, a.Do)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertVisitOrder:
		if a.Values == nil {
			return fmt.Errorf("assertions[%d]: values is required for visit_order", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
