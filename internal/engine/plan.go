package engine

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/sweep/internal/ir"
)

// Plan is the traversal routine for one (kind, shape) pair.
//
// Plans are immutable once built and shared by every traversal with the
// same fingerprint.
type Plan struct {
	Fingerprint string
	Kind        ir.Kind
	Shape       ir.Shape

	relocatable bool
	algo        algorithm
}

// Algorithm names the per-kind strategy the plan selected.
func (p *Plan) Algorithm() string { return p.algo.name() }

// Relocatable reports whether Shift and Jump are supported.
func (p *Plan) Relocatable() bool { return p.relocatable }

// algorithm opens a cursor over the collection for one pass.
type algorithm interface {
	name() string
	open(c *Context) (cursor, error)
}

// cursor yields the element at the context's current position, c.i. It
// reports false when the pass has no element there.
type cursor interface {
	next(c *Context) (item, bool)
}

type item struct {
	key   any
	value any
	own   bool
}

// Planner builds plans and caches them by fingerprint for its lifetime.
//
// Thread-safety: Build may be called from any goroutine.
type Planner struct {
	mu     sync.RWMutex
	plans  map[string]*Plan
	logger *slog.Logger
}

// NewPlanner creates an empty plan cache.
func NewPlanner() *Planner {
	return &Planner{plans: make(map[string]*Plan), logger: slog.Default()}
}

// Build returns the plan for kind and shape, constructing it on the first
// request for that fingerprint. Shapes with negative window values fail
// with ErrCodeInvalidWindow.
func (p *Planner) Build(kind ir.Kind, shape ir.Shape) (*Plan, error) {
	fp := ir.Fingerprint(kind, shape)

	p.mu.RLock()
	plan, ok := p.plans[fp]
	p.mu.RUnlock()
	if ok {
		planCache.WithLabelValues("hit").Inc()
		return plan, nil
	}

	if err := shape.Validate(); err != nil {
		return nil, &RuntimeError{
			Code:        ErrCodeInvalidWindow,
			Message:     "invalid traversal shape",
			Fingerprint: fp,
			Details:     map[string]string{"kind": string(kind)},
			Err:         err,
		}
	}
	algo, relocatable, err := selectAlgorithm(kind, shape)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Another goroutine may have won the race.
	if plan, ok := p.plans[fp]; ok {
		planCache.WithLabelValues("hit").Inc()
		return plan, nil
	}
	plan = &Plan{
		Fingerprint: fp,
		Kind:        kind,
		Shape:       shape,
		relocatable: relocatable,
		algo:        algo,
	}
	p.plans[fp] = plan
	planCache.WithLabelValues("miss").Inc()
	p.logger.Debug("plan built", "fingerprint", fp, "kind", kind, "algorithm", algo.name())
	return plan, nil
}

// Len returns the number of cached plans.
func (p *Planner) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.plans)
}

// Plans returns the cached plans ordered by fingerprint.
func (p *Planner) Plans() []*Plan {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Plan, 0, len(p.plans))
	for _, plan := range p.plans {
		out = append(out, plan)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fingerprint < out[j].Fingerprint })
	return out
}

// selectAlgorithm is the dispatch table from shape to strategy.
func selectAlgorithm(kind ir.Kind, shape ir.Shape) (algorithm, bool, error) {
	switch kind {
	case ir.KindSequence:
		if shape.Live && !shape.Reverse {
			return sequenceLive{}, true, nil
		}
		return sequenceSnapshot{}, true, nil
	case ir.KindMapping:
		if shape.NotOwn == ir.OwnOnly && !shape.Reverse {
			return mappingOwnKeys{}, true, nil
		}
		return mappingExplicit{}, true, nil
	case ir.KindKeyStore:
		if shape.Reverse {
			return keyStoreDrained{}, true, nil
		}
		return keyStoreCursor{live: shape.Live}, false, nil
	case ir.KindSource:
		if shape.Reverse {
			return sourceDrained{}, true, nil
		}
		return sourceStream{}, false, nil
	default:
		return nil, false, &RuntimeError{
			Code:    ErrCodeUnsupportedKind,
			Message: "no traversal algorithm for kind " + string(kind),
		}
	}
}

// sliceCursor walks a materialized key list. Position p maps to
// keys[p-offset]. Without values, each key is fetched when visited and
// keys that no longer resolve are skipped.
type sliceCursor struct {
	keys   []any
	values []any
	owns   []bool
	fetch  func(key any) (any, bool)
	offset int
	// last is an inclusive position bound, or ir.Unset.
	last int
}

func (s *sliceCursor) next(c *Context) (item, bool) {
	for {
		idx := c.i - s.offset
		if idx < 0 || idx >= len(s.keys) || (s.last != ir.Unset && c.i > s.last) {
			return item{}, false
		}
		key := s.keys[idx]
		own := s.owns == nil || s.owns[idx]
		if s.values != nil {
			return item{key: key, value: s.values[idx], own: own}, true
		}
		if v, ok := s.fetch(key); ok {
			return item{key: key, value: v, own: own}, true
		}
		c.i++
		c.n++
	}
}

// window reverses and slices a drained key list to the shape's window and
// returns a cursor over it.
func window(shape ir.Shape, keys, values []any, owns []bool) *sliceCursor {
	if shape.Reverse {
		reverseAll(keys)
		reverseAll(values)
		reverseAll(owns)
	}
	start := shape.Start()
	end := len(keys)
	if shape.EndIndex != ir.Unset && shape.EndIndex+1 < end {
		end = shape.EndIndex + 1
	}
	if start > end {
		start = end
	}
	cur := &sliceCursor{keys: keys[start:end], offset: start, last: ir.Unset}
	if values != nil {
		cur.values = values[start:end]
	}
	if owns != nil {
		cur.owns = owns[start:end]
	}
	return cur
}

func reverseAll[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// streamCursor walks a forward-only producer. It can only move forward, so
// positions before the window are pulled and dropped.
type streamCursor struct {
	pull func() (key, value any, ok bool)
	last int
	pos  int
	cur  item
}

func newStreamCursor(shape ir.Shape, pull func() (key, value any, ok bool)) *streamCursor {
	return &streamCursor{pull: pull, last: shape.EndIndex, pos: -1}
}

func (s *streamCursor) next(c *Context) (item, bool) {
	if s.last != ir.Unset && c.i > s.last {
		return item{}, false
	}
	for s.pos < c.i {
		k, v, ok := s.pull()
		if !ok {
			return item{}, false
		}
		s.pos++
		s.cur = item{key: k, value: v, own: true}
	}
	return s.cur, true
}
