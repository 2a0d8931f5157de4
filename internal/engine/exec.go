package engine

import (
	"fmt"

	"github.com/roach88/sweep/internal/ir"
)

// execute runs every pass of a traversal and returns the aggregated
// result. Failures other than cancellation are reported through OnError
// and wrapped in a traversal error.
func (p *Plan) execute(c *Context, cb Callback) (any, error) {
	err := p.passes(c, cb)
	if err == nil {
		err = c.drain()
	}
	if err != nil {
		if c.task != nil {
			c.task.clearWaits()
		}
		if IsCancelled(err) {
			return nil, err
		}
		if c.cfg.OnError != nil {
			c.cfg.OnError(err)
		}
		return nil, NewTraversalError(c.runID, p.Fingerprint, err)
	}

	result := c.cfg.Aggregator.Result()
	if c.cfg.OnComplete != nil {
		c.cfg.OnComplete(result)
	}
	return result, nil
}

func (p *Plan) passes(c *Context, cb Callback) error {
	for {
		if c.pass > 0 {
			c.cfg.Aggregator.Reset()
		}
		if err := p.pass(c, cb); err != nil {
			return err
		}
		if c.cfg.OnPassEnd != nil {
			c.cfg.OnPassEnd(c)
		}
		c.emit(EventPassCompleted, "")
		if c.broken || c.restarts == 0 {
			return nil
		}
		c.restarts--
		c.pass++
	}
}

// pass walks the plan's traversal order once. A source is closed when the
// pass ends; its Close error is returned unless the pass already failed.
func (p *Plan) pass(c *Context, cb Callback) (err error) {
	shape := p.Shape
	c.endPass = false
	c.i = shape.Start() - 1
	c.n = -1
	if shape.Empty() {
		return nil
	}

	cur, err := p.algo.open(c)
	if src, ok := c.coll.(Source); ok {
		defer func() {
			if cerr := closeSource(src); cerr != nil && err == nil {
				err = fmt.Errorf("close source: %w", cerr)
			}
		}()
	}
	if err != nil {
		return err
	}

	var matched, skipped int
	for !c.endPass {
		if shape.Count != ir.Unset && matched >= shape.Count {
			break
		}
		if c.destroyed() {
			return ErrCancelled
		}
		c.i++
		c.n++
		it, ok := cur.next(c)
		if !ok {
			break
		}
		out, err := p.visit(c, cb, it, skipped < shape.From)
		if err != nil {
			return err
		}
		switch out {
		case visitSkipped:
			skipped++
		case visitMatched:
			matched++
			if !shape.Mult {
				c.endPass = true
			}
		}
		if err := c.endStep(); err != nil {
			return err
		}
	}
	return nil
}

type visitOutcome int

const (
	visitRejected visitOutcome = iota
	visitSkipped
	visitMatched
)

// visit filters one element and, when it is selected and not skipped,
// invokes the callback and records the result.
func (p *Plan) visit(c *Context, cb Callback, it item, skip bool) (out visitOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = visitRejected, fmt.Errorf("panic at position %d: %v", c.i, r)
		}
	}()

	c.key = it.key
	v, err := c.resolve(it.value)
	if err != nil {
		return visitRejected, err
	}
	el := Element{Value: v, Key: it.key, Position: c.i}
	if p.Shape.WithDescriptor {
		el.Value = Descriptor{Key: it.key, Value: v, Own: it.own}
	}

	ok, err := p.filter(c, el)
	if err != nil || !ok || c.endPass {
		return visitRejected, err
	}
	if skip {
		return visitSkipped, nil
	}
	if c.destroyed() {
		return visitRejected, ErrCancelled
	}

	var res any
	if cb == nil {
		res = el.Value
	} else if res, err = cb(el, c); err != nil {
		return visitRejected, err
	}
	if res, err = c.resolve(res); err != nil {
		return visitRejected, err
	}
	if c.destroyed() {
		return visitRejected, ErrCancelled
	}
	c.cfg.Aggregator.Add(el, res)
	c.visited++
	return visitMatched, nil
}

// filter runs the chain, stopping at the first rejection. InverseFilter
// negates the outcome of a non-empty chain. A filter that parks and wakes
// up destroyed ends the chain with ErrCancelled.
func (p *Plan) filter(c *Context, el Element) (bool, error) {
	filters := c.cfg.Filters
	if len(filters) == 0 {
		return true, nil
	}
	pass := true
	for _, f := range filters {
		ok, err := f(el, c)
		if err != nil {
			return false, err
		}
		if c.destroyed() {
			return false, ErrCancelled
		}
		if !ok {
			pass = false
			break
		}
	}
	if p.Shape.InverseFilter {
		return !pass, nil
	}
	return pass, nil
}

// endStep applies a pending Suspend, surfaces wait-set rejections and
// yields when the time slice is spent.
func (c *Context) endStep() error {
	t := c.task
	if t == nil {
		return nil
	}
	if c.suspendReq {
		c.suspendReq = false
		t.setSuspended(c.suspendVal, true)
		c.suspendVal = nil
		if err := t.park(TaskPaused, nil); err != nil {
			return err
		}
	}
	if err := t.takeWaitErr(); err != nil {
		return err
	}
	return t.tick()
}

// drain waits for the futures added with AwaitLimit.
func (c *Context) drain() error {
	t := c.task
	if t == nil {
		return nil
	}
	if t.pendingWaits() > 0 {
		err := t.park(TaskDraining, func(gen uint64) {
			if t.pendingWaits() == 0 || t.takeWaitErr() != nil {
				t.sched.wake(t, gen, nil, false)
			}
		})
		if err != nil {
			return err
		}
	}
	return t.takeWaitErr()
}

// tick lets long key accumulation share the scheduler.
func (c *Context) tick() error {
	if c.task == nil {
		return nil
	}
	return c.task.tick()
}

func (c *Context) emit(typ EventType, detail string) {
	if c.sched == nil {
		return
	}
	c.sched.emit(Event{
		Type:        typ,
		RunID:       c.runID,
		Kind:        c.plan.Kind,
		Fingerprint: c.plan.Fingerprint,
		Priority:    c.plan.Shape.Priority,
		Cooperative: c.task != nil,
		Pass:        c.pass,
		Visited:     c.visited,
		Detail:      detail,
	})
}

func (c *Context) destroyed() bool {
	return c.task != nil && c.task.Destroyed()
}
