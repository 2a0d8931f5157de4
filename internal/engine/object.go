package engine

import "slices"

// Object is an insertion-ordered Mapping whose lookups fall back to a
// parent Object, the way prototype chains work. Keys defined on the object
// itself are "own"; keys found only on a parent are "inherited".
type Object struct {
	keys   []string
	values map[string]any
	parent *Object
}

// NewObject creates an empty object inheriting from parent (may be nil).
func NewObject(parent *Object) *Object {
	return &Object{values: make(map[string]any), parent: parent}
}

// ObjectOf creates a parentless object from key/value pairs given as
// alternating arguments: ObjectOf("a", 1, "b", 2).
func ObjectOf(pairs ...any) *Object {
	o := NewObject(nil)
	for i := 0; i+1 < len(pairs); i += 2 {
		o.Set(pairs[i].(string), pairs[i+1])
	}
	return o
}

// Parent returns the object this one inherits from.
func (o *Object) Parent() *Object { return o.parent }

// Set defines an own key. Redefining a key keeps its position.
func (o *Object) Set(key string, value any) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Delete removes an own key. Inherited keys are untouched.
func (o *Object) Delete(key string) bool {
	if _, ok := o.values[key]; !ok {
		return false
	}
	delete(o.values, key)
	o.keys = slices.DeleteFunc(o.keys, func(k string) bool { return k == key })
	return true
}

// HasOwn reports whether key is defined on the object itself.
func (o *Object) HasOwn(key string) bool {
	_, ok := o.values[key]
	return ok
}

// Get resolves key on the object, then along the parent chain.
func (o *Object) Get(key string) (any, bool) {
	for cur := o; cur != nil; cur = cur.parent {
		if v, ok := cur.values[key]; ok {
			return v, true
		}
	}
	return nil, false
}

func (o *Object) OwnKeys() []string {
	return slices.Clone(o.keys)
}

func (o *Object) InheritedKeys() []string {
	seen := make(map[string]bool, len(o.keys))
	for _, k := range o.keys {
		seen[k] = true
	}
	var keys []string
	for p := o.parent; p != nil; p = p.parent {
		for _, k := range p.keys {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}
