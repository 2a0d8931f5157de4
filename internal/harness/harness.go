package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sweep/internal/compiler"
	"github.com/roach88/sweep/internal/engine"
	"github.com/roach88/sweep/internal/ir"
	"github.com/roach88/sweep/internal/store"
	"github.com/roach88/sweep/internal/testutil"
)

// scenarioTimeout bounds a single scenario run so a traversal that never
// settles fails the scenario instead of hanging the suite.
const scenarioTimeout = 10 * time.Second

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock, run ids and time source.
type Harness struct {
	store  *store.Store
	clock  *engine.Clock
	logger *slog.Logger

	mu      sync.Mutex
	result  *Result
	actions []Action
	fired   []bool
	coll    any
}

// Observe records engine events into the trace.
func (h *Harness) Observe(ev engine.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.result.AddEngineTrace(ev)
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory journal for isolation.
// Deterministic helpers ensure reproducible traces.
//
// Execution flow:
// 1. Resolve traversal options (inline or from CUE specs)
// 2. Build the collection
// 3. Traverse, recording visits, actions and engine events
// 4. Check expectations and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	opts, err := traversalOptions(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve traversal options: %w", err)
	}

	coll, err := buildCollection(scenario.Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to build collection: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st.SetLogger(logger)

	h := &Harness{
		store:   st,
		clock:   engine.NewClock(),
		logger:  logger,
		result:  NewResult(),
		actions: scenario.Actions,
		fired:   make([]bool, len(scenario.Actions)),
		coll:    coll,
	}

	var ids engine.TaskIDGenerator = testutil.NewSequentialIDs("run")
	if scenario.RunID != "" {
		ids = engine.NewFixedGenerator(scenario.RunID)
	}

	var now engine.TimeSource = testutil.FrozenClock{}
	if scenario.SliceStep > 0 {
		now = testutil.NewStepClock(scenario.SliceStep)
	}

	eng := engine.New(
		engine.WithClock(h.clock),
		engine.WithTaskIDs(ids),
		engine.WithTimeSource(now),
		engine.WithObserver(engine.Observers{st, h}),
		engine.WithLogger(logger),
	)
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), scenarioTimeout)
	defer cancel()

	opts = append(opts, engine.Aggregate(aggregator(scenario.Aggregate)))
	value, runErr := eng.Run(ctx, coll, h.callback, opts...)

	h.mu.Lock()
	result := h.result
	h.mu.Unlock()

	result.Value = value
	result.Err = runErr
	runs, err := st.ReadRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	if len(runs) > 0 {
		result.RunID = runs[0].ID
	}
	if err := st.Err(); err != nil {
		return nil, fmt.Errorf("failed to journal scenario: %w", err)
	}
	if runErr != nil && errors.Is(runErr, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scenario %q did not settle within %s", scenario.Name, scenarioTimeout)
	}

	for _, msg := range checkExpect(scenario.Expect, result, coll) {
		result.AddError(msg)
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
		RunID: result.RunID,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	h.logger.Info("scenario completed", "scenario", scenario.Name, "pass", result.Pass)
	return result, nil
}

// callback records the visit and applies the scripted actions for the
// element, then returns the element value. Each action fires once, so an
// element revisited after a shift does not repeat it.
func (h *Harness) callback(el engine.Element, c *engine.Context) (any, error) {
	h.mu.Lock()
	h.result.AddVisitTrace(el, c.Pass(), h.clock.Next())
	h.mu.Unlock()

	for i, a := range h.actions {
		if h.fired[i] || a.At != el.Position || a.Pass != c.Pass() {
			continue
		}
		h.fired[i] = true
		h.mu.Lock()
		h.result.AddActionTrace(a, el, c.Pass(), h.clock.Next())
		h.mu.Unlock()

		if err := h.apply(a, el, c); err != nil {
			return nil, err
		}
	}
	return el.Value, nil
}

// apply performs one action. Sleep parks a cooperative traversal and is
// a no-op for synchronous ones.
func (h *Harness) apply(a Action, el engine.Element, c *engine.Context) error {
	switch a.Do {
	case ActionBreak:
		c.Break()
	case ActionRestart:
		c.Restart()
	case ActionShift:
		if _, ok := c.Shift(a.Amount); !ok {
			return fmt.Errorf("shift at position %d: traversal is not relocatable", el.Position)
		}
	case ActionJump:
		if _, ok := c.Jump(a.Amount); !ok {
			return fmt.Errorf("jump at position %d: traversal is not relocatable", el.Position)
		}
	case ActionRemove:
		return removeKey(h.coll, el.Key)
	case ActionAppend:
		return appendValue(h.coll, a.Value)
	case ActionSleep:
		c.Sleep(0, nil, false)
	case ActionFail:
		return fmt.Errorf("%v", a.Value)
	}
	return nil
}

func removeKey(coll any, key any) error {
	switch v := coll.(type) {
	case *engine.List:
		idx, ok := key.(int)
		if !ok {
			return fmt.Errorf("remove: list key %v is not an index", key)
		}
		_, err := v.Remove(idx)
		return err
	case *engine.OrderedMap:
		v.Delete(key)
	case *engine.OrderedSet:
		v.Delete(key)
	case *engine.Object:
		k, ok := key.(string)
		if !ok {
			return fmt.Errorf("remove: object key %v is not a string", key)
		}
		v.Delete(k)
	default:
		return fmt.Errorf("remove: collection %T is not mutable", coll)
	}
	return nil
}

func appendValue(coll any, value any) error {
	switch v := coll.(type) {
	case *engine.List:
		v.Append(value)
	case *engine.OrderedSet:
		v.Add(value)
	case *engine.OrderedMap:
		v.Set(value, value)
	default:
		return fmt.Errorf("append: collection %T does not support append", coll)
	}
	return nil
}

// remaining returns the content of a mutable collection after the
// traversal, or false for plain collections.
func remaining(coll any) ([]any, bool) {
	switch v := coll.(type) {
	case *engine.List:
		return v.Values(), true
	case *engine.OrderedSet:
		return v.Values(), true
	case *engine.OrderedMap:
		return v.Keys(), true
	case *engine.Object:
		keys := v.OwnKeys()
		out := make([]any, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return out, true
	default:
		return nil, false
	}
}

func aggregator(name string) engine.Aggregator {
	switch name {
	case "last":
		return engine.Last()
	case "count":
		return engine.Counter()
	case "discard":
		return engine.Discard()
	default:
		return engine.Collect()
	}
}

// traversalOptions converts the scenario's inline spec, or the named CUE
// traversal, into engine options.
func traversalOptions(s *Scenario) ([]engine.Option, error) {
	spec := s.Traversal
	if s.Use != "" {
		found, err := lookupSpec(s.Specs, s.Use)
		if err != nil {
			return nil, err
		}
		spec = &found
	}
	if spec == nil {
		return nil, nil
	}
	return engine.SpecOptions(*spec)
}

func lookupSpec(paths []string, name string) (ir.TraversalSpec, error) {
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return ir.TraversalSpec{}, fmt.Errorf("read spec %s: %w", path, err)
		}
		res, errs := compiler.CompileBytes(path, src, compiler.LoadModeFailFast)
		if len(errs) > 0 {
			return ir.TraversalSpec{}, fmt.Errorf("compile spec %s: %w", path, errs[0])
		}
		if spec, ok := res.Lookup(name); ok {
			return spec, nil
		}
	}
	return ir.TraversalSpec{}, fmt.Errorf("traversal %q not found in specs", name)
}

// buildCollection decodes the scenario items into the requested kind.
func buildCollection(c Collection) (any, error) {
	switch c.Kind {
	case CollectionPlain:
		var v any
		if err := c.Items.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case CollectionList:
		var values []any
		if err := c.Items.Decode(&values); err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		return engine.NewList(values...), nil
	case CollectionOrderedSet:
		var values []any
		if err := c.Items.Decode(&values); err != nil {
			return nil, fmt.Errorf("ordered_set items: %w", err)
		}
		return engine.NewOrderedSet(values...), nil
	case CollectionOrderedMap:
		m := engine.NewOrderedMap()
		err := eachEntry(&c.Items, func(k *yaml.Node, v any) error {
			var key any
			if err := k.Decode(&key); err != nil {
				return err
			}
			m.Set(key, v)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("ordered_map items: %w", err)
		}
		return m, nil
	case CollectionObject:
		var parent *engine.Object
		if c.Parent.Kind != 0 {
			p, err := buildObject(&c.Parent, nil)
			if err != nil {
				return nil, fmt.Errorf("object parent: %w", err)
			}
			parent = p
		}
		obj, err := buildObject(&c.Items, parent)
		if err != nil {
			return nil, fmt.Errorf("object items: %w", err)
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unknown collection kind %q", c.Kind)
	}
}

func buildObject(n *yaml.Node, parent *engine.Object) (*engine.Object, error) {
	obj := engine.NewObject(parent)
	err := eachEntry(n, func(k *yaml.Node, v any) error {
		obj.Set(k.Value, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// eachEntry walks a YAML mapping in file order.
func eachEntry(n *yaml.Node, fn func(k *yaml.Node, v any) error) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		var v any
		if err := n.Content[i+1].Decode(&v); err != nil {
			return err
		}
		if err := fn(n.Content[i], v); err != nil {
			return err
		}
	}
	return nil
}
