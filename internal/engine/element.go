package engine

// Element is one selected entry of a traversal as seen by filters and the
// callback.
//
// Key is the index for sequences and sources, the key for mappings and key
// stores. Position is the absolute position in traversal order, so a
// reversed sequence of length 4 delivers key 3 at position 0.
type Element struct {
	Value    any
	Key      any
	Position int
}

// Descriptor replaces Element.Value when the traversal was configured with
// WithDescriptor.
type Descriptor struct {
	Key   any
	Value any
	// Own is false for mapping keys reached through the parent chain.
	Own bool
}

// Get exposes the descriptor fields to filterir predicates as "key",
// "value" and "own". Nested paths continue into the value.
func (d Descriptor) Get(field string) (any, bool) {
	switch field {
	case "key":
		return d.Key, true
	case "value":
		return d.Value, true
	case "own":
		return d.Own, true
	}
	return nil, false
}

// Callback is invoked once per selected element. Its result is handed to
// the aggregator; a *Future result is awaited first. A nil Callback
// returns the element value.
type Callback func(el Element, c *Context) (any, error)

// Filter decides whether an element is selected. Filters run in order and
// stop at the first rejection. A Filter is also an Option, so a bare
// filter can be passed wherever options are accepted.
type Filter func(el Element, c *Context) (bool, error)

func (f Filter) apply(cfg *Config) {
	cfg.Filters = append(cfg.Filters, f)
}

// AsyncFilter adapts a filter that answers with a future. The traversal
// suspends until the future settles; a cooperative traversal gives up the
// baton meanwhile, a synchronous one blocks. The resolved value is tested
// for truthiness.
func AsyncFilter(fn func(el Element, c *Context) *Future) Filter {
	return func(el Element, c *Context) (bool, error) {
		v, err := c.await(fn(el, c))
		if err != nil {
			return false, err
		}
		return !isFalsy(v), nil
	}
}
