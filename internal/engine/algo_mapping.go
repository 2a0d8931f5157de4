package engine

import "github.com/roach88/sweep/internal/ir"

// mappingOwnKeys enumerates own keys directly in forward order. Values are
// read when a key is visited; keys deleted since enumeration are skipped.
type mappingOwnKeys struct{}

func (mappingOwnKeys) name() string { return "mapping/own-keys" }

func (mappingOwnKeys) open(c *Context) (cursor, error) {
	m := c.coll.(Mapping)
	own := m.OwnKeys()
	keys := make([]any, len(own))
	for i, k := range own {
		keys[i] = k
	}
	return &sliceCursor{
		keys:  keys,
		fetch: mappingFetch(m),
		last:  c.plan.Shape.EndIndex,
	}, nil
}

// mappingExplicit collects keys according to the own mode, then reverses
// and windows the collected list.
type mappingExplicit struct{}

func (mappingExplicit) name() string { return "mapping/explicit" }

func (mappingExplicit) open(c *Context) (cursor, error) {
	m := c.coll.(Mapping)
	mode := c.plan.Shape.NotOwn

	var (
		keys []any
		owns []bool
	)
	add := func(ks []string, own bool) error {
		for _, k := range ks {
			keys = append(keys, k)
			owns = append(owns, own)
			if err := c.tick(); err != nil {
				return err
			}
		}
		return nil
	}
	if mode != ir.InheritedOnly {
		if err := add(m.OwnKeys(), true); err != nil {
			return nil, err
		}
	}
	if mode != ir.OwnOnly {
		if err := add(m.InheritedKeys(), false); err != nil {
			return nil, err
		}
	}

	cur := window(c.plan.Shape, keys, nil, owns)
	cur.fetch = mappingFetch(m)
	return cur, nil
}

func mappingFetch(m Mapping) func(any) (any, bool) {
	return func(key any) (any, bool) {
		return m.Get(key.(string))
	}
}
