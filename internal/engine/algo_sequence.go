package engine

import "github.com/roach88/sweep/internal/ir"

// sequenceLive reads the backing sequence by absolute index and checks the
// bounds against the current length at every step, so elements inserted or
// removed by the callback are seen.
type sequenceLive struct{}

func (sequenceLive) name() string { return "sequence/live" }

func (sequenceLive) open(c *Context) (cursor, error) {
	shape := c.plan.Shape
	return &liveSequenceCursor{seq: c.coll.(Sequence), first: shape.Start(), last: shape.EndIndex}, nil
}

// liveSequenceCursor ends the pass on any position outside the window,
// including one before the window reached through Jump or Shift.
type liveSequenceCursor struct {
	seq   Sequence
	first int
	last  int
}

func (l *liveSequenceCursor) next(c *Context) (item, bool) {
	if c.i < l.first || c.i >= l.seq.Len() || (l.last != ir.Unset && c.i > l.last) {
		return item{}, false
	}
	return item{key: c.i, value: l.seq.At(c.i), own: true}, true
}

// sequenceSnapshot copies the windowed part of the sequence, reversed when
// asked, and walks the copy. Mutations during the pass are not seen.
type sequenceSnapshot struct{}

func (sequenceSnapshot) name() string { return "sequence/snapshot" }

func (sequenceSnapshot) open(c *Context) (cursor, error) {
	seq := c.coll.(Sequence)
	shape := c.plan.Shape
	size := seq.Len()

	start := shape.Start()
	last := size - 1
	if shape.EndIndex != ir.Unset && shape.EndIndex < last {
		last = shape.EndIndex
	}

	n := max(last-start+1, 0)
	keys := make([]any, 0, n)
	values := make([]any, 0, n)
	for p := start; p <= last; p++ {
		idx := p
		if shape.Reverse {
			idx = size - 1 - p
		}
		keys = append(keys, idx)
		values = append(values, seq.At(idx))
	}
	return &sliceCursor{keys: keys, values: values, offset: start, last: ir.Unset}, nil
}
