package engine

// entry is a node of the insertion-ordered list behind OrderedMap.
//
// Removed entries keep their next and prev pointers so a cursor parked on
// one can still find its way back into the live list.
type entry struct {
	key, value any
	seq        uint64
	removed    bool
	prev, next *entry
}

// OrderedMap is an insertion-ordered KeyStore with unique keys. Its cursors
// tolerate mutation: deleting the entry under a cursor is safe, deleted
// entries are never produced, and entries added behind the cursor are
// produced when the cursor reaches them.
type OrderedMap struct {
	head, tail *entry
	index      map[any]*entry
	seq        uint64
}

// NewOrderedMap creates an empty map.
func NewOrderedMap() *OrderedMap {
	head, tail := &entry{}, &entry{}
	head.next, tail.prev = tail, head
	return &OrderedMap{head: head, tail: tail, index: make(map[any]*entry)}
}

func (m *OrderedMap) Len() int { return len(m.index) }

// Set stores value under key. Existing keys keep their position.
// Keys must be comparable.
func (m *OrderedMap) Set(key, value any) {
	if e, ok := m.index[key]; ok {
		e.value = value
		return
	}
	m.seq++
	e := &entry{key: key, value: value, seq: m.seq, prev: m.tail.prev, next: m.tail}
	m.tail.prev.next = e
	m.tail.prev = e
	m.index[key] = e
}

func (m *OrderedMap) Get(key any) (any, bool) {
	e, ok := m.index[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

func (m *OrderedMap) Has(key any) bool {
	_, ok := m.index[key]
	return ok
}

// Delete removes key and reports whether it was present.
func (m *OrderedMap) Delete(key any) bool {
	e, ok := m.index[key]
	if !ok {
		return false
	}
	delete(m.index, key)
	e.removed = true
	e.prev.next = e.next
	e.next.prev = e.prev
	return true
}

// Keys returns the keys in insertion order.
func (m *OrderedMap) Keys() []any {
	keys := make([]any, 0, len(m.index))
	for e := m.head.next; e != m.tail; e = e.next {
		keys = append(keys, e.key)
	}
	return keys
}

// Cursor starts a forward walk from the first entry.
func (m *OrderedMap) Cursor() Cursor {
	return &orderedCursor{m: m, cur: m.head}
}

type orderedCursor struct {
	m       *OrderedMap
	cur     *entry
	lastSeq uint64
}

func (c *orderedCursor) Next() (key, value any, ok bool) {
	next := c.cur.next
	if c.cur.removed {
		// Walk back to a live entry, then forward past everything the
		// cursor already produced. Entries are only appended, so seq
		// order is list order.
		p := c.cur
		for p.removed {
			p = p.prev
		}
		next = p.next
		for next != c.m.tail && next.seq <= c.lastSeq {
			next = next.next
		}
	}
	if next == c.m.tail {
		return nil, nil, false
	}
	c.cur = next
	c.lastSeq = next.seq
	return next.key, next.value, true
}

// OrderedSet is an insertion-ordered KeyStore whose values are its keys.
type OrderedSet struct {
	m *OrderedMap
}

// NewOrderedSet creates a set holding keys in the given order.
func NewOrderedSet(keys ...any) *OrderedSet {
	s := &OrderedSet{m: NewOrderedMap()}
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

func (s *OrderedSet) Len() int            { return s.m.Len() }
func (s *OrderedSet) Add(key any)         { s.m.Set(key, key) }
func (s *OrderedSet) Has(key any) bool    { return s.m.Has(key) }
func (s *OrderedSet) Delete(key any) bool { return s.m.Delete(key) }
func (s *OrderedSet) Values() []any       { return s.m.Keys() }
func (s *OrderedSet) Cursor() Cursor      { return s.m.Cursor() }
