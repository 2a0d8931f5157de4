package engine

// keyStoreCursor uses the store's forward cursor. Without live, a
// remaining-size counter taken at the start of the pass ends the walk, so
// entries added during the pass are not visited.
type keyStoreCursor struct {
	live bool
}

func (a keyStoreCursor) name() string {
	if a.live {
		return "keystore/cursor-live"
	}
	return "keystore/cursor"
}

func (a keyStoreCursor) open(c *Context) (cursor, error) {
	ks := c.coll.(KeyStore)
	cur := ks.Cursor()
	remaining := -1
	if !a.live {
		remaining = ks.Len()
	}
	return newStreamCursor(c.plan.Shape, func() (any, any, bool) {
		if remaining == 0 {
			return nil, nil, false
		}
		k, v, ok := cur.Next()
		if ok && remaining > 0 {
			remaining--
		}
		return k, v, ok
	}), nil
}

// keyStoreDrained drains the cursor into a temporary list because key
// stores have no reverse cursor.
type keyStoreDrained struct{}

func (keyStoreDrained) name() string { return "keystore/drained" }

func (keyStoreDrained) open(c *Context) (cursor, error) {
	ks := c.coll.(KeyStore)
	keys := make([]any, 0, ks.Len())
	values := make([]any, 0, ks.Len())
	for cur := ks.Cursor(); ; {
		k, v, ok := cur.Next()
		if !ok {
			break
		}
		keys = append(keys, k)
		values = append(values, v)
		if err := c.tick(); err != nil {
			return nil, err
		}
	}
	return window(c.plan.Shape, keys, values, nil), nil
}
