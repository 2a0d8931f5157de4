package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/sweep/internal/ir"
)

// Engine runs traversals.
//
// Synchronous traversals run inline on the caller's goroutine. Cooperative
// traversals (Async or Cooperative options) become tasks of the engine's
// scheduler and share its single logical thread with every other
// cooperative traversal of the engine.
//
// Thread-safety model:
//   - Traverse, Run: safe from any goroutine
//   - Close: safe from any goroutine; cooperative traversals fail with
//     ErrSchedulerClosed afterwards
type Engine struct {
	defaults []Option
	planner  *Planner
	sched    *Scheduler
	clock    *Clock
	ids      TaskIDGenerator
	logger   *slog.Logger
	budgets  Budgets
	now      TimeSource
	observer Observer
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithDefaults sets options applied to every traversal before the
// per-call options.
func WithDefaults(opts ...Option) EngineOption {
	return func(e *Engine) {
		e.defaults = append(e.defaults, opts...)
	}
}

func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithBudgets overrides the per-priority time slices.
//
// Default: DefaultBudgets (low 5ms, normal 15ms, high 25ms, critical 50ms)
func WithBudgets(b Budgets) EngineOption {
	return func(e *Engine) {
		e.budgets = b
	}
}

// WithTimeSource replaces the clock measuring time slices. Tests use a
// deterministic source to make forced yields reproducible.
func WithTimeSource(src TimeSource) EngineOption {
	return func(e *Engine) {
		e.now = src
	}
}

// WithTaskIDs replaces the run id generator.
func WithTaskIDs(g TaskIDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithPlanner shares a plan cache between engines.
func WithPlanner(p *Planner) EngineOption {
	return func(e *Engine) {
		e.planner = p
	}
}

// WithClock sets the logical clock stamping events and task sequence
// numbers.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an Engine.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		clock:   NewClock(),
		ids:     UUIDv7Generator{},
		logger:  slog.Default(),
		budgets: DefaultBudgets(),
		now:     SystemTime,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.planner == nil {
		e.planner = NewPlanner()
		e.planner.logger = e.logger
	}
	e.sched = newScheduler(schedulerConfig{
		budgets:  e.budgets,
		now:      e.now,
		clock:    e.clock,
		logger:   e.logger,
		observer: e.observer,
	})
	return e
}

// Scheduler returns the scheduler running cooperative traversals.
func (e *Engine) Scheduler() *Scheduler { return e.sched }

// Planner returns the plan cache.
func (e *Engine) Planner() *Planner { return e.planner }

// Close destroys every cooperative traversal still running.
func (e *Engine) Close() { e.sched.Close() }

// Traverse visits the elements of coll selected by opts and hands each to
// cb.
//
// The returned error reports configuration problems only, before any
// element is visited: an unsupported collection, an invalid window, an
// operation the kind cannot support, or a closed scheduler. Everything
// else settles the future. For synchronous traversals the future is
// already settled when Traverse returns.
func (e *Engine) Traverse(coll any, cb Callback, opts ...Option) (*Future, error) {
	cfg := Resolve(e.defaults, opts...)

	kind, norm, err := Normalize(coll)
	if err != nil {
		return nil, err
	}
	if cfg.RequireMutable && !kind.Mutable() {
		return nil, NewIncompatibleOperationError(kind, "write")
	}
	plan, err := e.planner.Build(kind, cfg.Shape)
	if err != nil {
		return nil, err
	}

	runID := e.ids.Generate()
	if !cfg.Shape.Cooperative() {
		c := newContext(runID, plan, &cfg, norm, e.sched, nil)
		res, err := e.run(c, cb)
		if err != nil {
			return Rejected(err), nil
		}
		return Resolved(res), nil
	}

	t, err := e.sched.spawn(runID, cfg.Shape.Priority, kind, plan.Fingerprint, func(t *Task) (any, error) {
		return e.run(newContext(runID, plan, &cfg, norm, e.sched, t), cb)
	})
	if err != nil {
		return nil, err
	}
	return t.Future(), nil
}

// Run traverses and waits for the result. When ctx is done first, a
// cooperative traversal is destroyed and ctx.Err() is returned.
func (e *Engine) Run(ctx context.Context, coll any, cb Callback, opts ...Option) (any, error) {
	f, err := e.Traverse(coll, cb, opts...)
	if err != nil {
		return nil, err
	}
	v, err := f.Wait(ctx)
	if err != nil && ctx.Err() != nil && !f.Settled() {
		if t := f.Task(); t != nil {
			t.Destroy()
		}
	}
	return v, err
}

func (e *Engine) run(c *Context, cb Callback) (any, error) {
	c.emit(EventRunStarted, c.plan.Algorithm())
	e.logger.Debug("traversal started",
		"run", c.runID,
		"kind", c.plan.Kind,
		"fingerprint", c.plan.Fingerprint,
		"cooperative", c.Cooperative())

	res, err := c.plan.execute(c, cb)

	outcome := "completed"
	typ := EventRunCompleted
	detail := ""
	switch {
	case IsCancelled(err):
		outcome, typ = "cancelled", EventRunCancelled
	case err != nil:
		outcome, typ, detail = "failed", EventRunFailed, err.Error()
	}
	traversals.WithLabelValues(string(c.plan.Kind), outcome).Inc()
	c.emit(typ, detail)
	e.logger.Debug("traversal finished", "run", c.runID, "outcome", outcome, "passes", c.pass+1, "visited", c.visited)
	return res, err
}

// Fingerprint returns the plan-cache key a traversal of coll with opts
// would use, without running it.
func (e *Engine) Fingerprint(coll any, opts ...Option) (string, ir.Kind, error) {
	cfg := Resolve(e.defaults, opts...)
	kind, err := KindOf(coll)
	if err != nil {
		return "", "", err
	}
	return ir.Fingerprint(kind, cfg.Shape), kind, nil
}
