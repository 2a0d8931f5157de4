package engine

import (
	"errors"
	"slices"
)

// ErrIndexOutOfBounds is returned by List for indexes outside the list.
var ErrIndexOutOfBounds = errors.New("index out of bounds")

// List is a mutable Sequence. Callbacks of a live traversal may insert and
// remove elements while the traversal is running.
//
// List is not safe for concurrent use from goroutines outside the
// scheduler; traversals of one scheduler never run in parallel.
type List struct {
	items []any
}

// NewList creates a list holding values.
func NewList(values ...any) *List {
	return &List{items: slices.Clone(values)}
}

func (l *List) Len() int { return len(l.items) }

// At returns the element at i. It panics when i is out of range, like a
// slice index.
func (l *List) At(i int) any { return l.items[i] }

// Append adds values at the end.
func (l *List) Append(values ...any) {
	l.items = append(l.items, values...)
}

// Insert places value at index, shifting later elements right.
func (l *List) Insert(index int, value any) error {
	if index < 0 || index > len(l.items) {
		return ErrIndexOutOfBounds
	}
	l.items = slices.Insert(l.items, index, value)
	return nil
}

// Set replaces the element at index.
func (l *List) Set(index int, value any) error {
	if index < 0 || index >= len(l.items) {
		return ErrIndexOutOfBounds
	}
	l.items[index] = value
	return nil
}

// Remove deletes and returns the element at index.
func (l *List) Remove(index int) (any, error) {
	if index < 0 || index >= len(l.items) {
		return nil, ErrIndexOutOfBounds
	}
	removed := l.items[index]
	l.items = slices.Delete(l.items, index, index+1)
	return removed, nil
}

// Values returns a copy of the elements.
func (l *List) Values() []any {
	return slices.Clone(l.items)
}
