package engine

// sourceStream pulls one value per visited position. Pulls stop as soon as
// the count is reached, so a source is never asked for a value the
// traversal would drop.
type sourceStream struct{}

func (sourceStream) name() string { return "source/stream" }

func (sourceStream) open(c *Context) (cursor, error) {
	src := c.coll.(Source)
	idx := -1
	return newStreamCursor(c.plan.Shape, func() (any, any, bool) {
		v, ok := pull(src)
		if !ok {
			return nil, nil, false
		}
		idx++
		return idx, v, true
	}), nil
}

// sourceDrained buffers the whole source before a reverse walk. It never
// finishes on an infinite source.
type sourceDrained struct{}

func (sourceDrained) name() string { return "source/drained" }

func (sourceDrained) open(c *Context) (cursor, error) {
	src := c.coll.(Source)
	var keys, values []any
	for idx := 0; ; idx++ {
		v, ok := pull(src)
		if !ok {
			break
		}
		keys = append(keys, idx)
		values = append(values, v)
		if err := c.tick(); err != nil {
			return nil, err
		}
	}
	if values == nil {
		values = []any{}
	}
	return window(c.plan.Shape, keys, values, nil), nil
}
