package engine

import (
	"slices"
	"sync"
)

// Aggregator accumulates callback results. The engine calls Add once per
// selected element in traversal order, Reset at the start of every
// restarted pass, and Result when the traversal completes.
type Aggregator interface {
	Add(el Element, result any)
	Result() any
	// SetResult replaces the accumulated value. Context.SetResult proxies
	// to it so callbacks can rewrite the result mid-traversal.
	SetResult(v any)
	Reset()
}

// Collected is the result of a Collect aggregator.
type Collected struct {
	Values    []any `json:"values"`
	Keys      []any `json:"keys"`
	Positions []int `json:"positions"`
}

type collect struct {
	mu  sync.Mutex
	out Collected
}

// Collect gathers every callback result together with the key and
// position of its element. Result returns a Collected.
func Collect() Aggregator { return &collect{} }

func (a *collect) Add(el Element, result any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.out.Values = append(a.out.Values, result)
	a.out.Keys = append(a.out.Keys, el.Key)
	a.out.Positions = append(a.out.Positions, el.Position)
}

func (a *collect) Result() any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Collected{
		Values:    slices.Clone(a.out.Values),
		Keys:      slices.Clone(a.out.Keys),
		Positions: slices.Clone(a.out.Positions),
	}
}

func (a *collect) SetResult(v any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := v.(Collected); ok {
		a.out = c
	}
}

func (a *collect) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.out = Collected{}
}

type last struct {
	mu sync.Mutex
	v  any
}

// Last keeps only the most recent callback result.
func Last() Aggregator { return &last{} }

func (a *last) Add(_ Element, result any) { a.SetResult(result) }
func (a *last) Reset()                    { a.SetResult(nil) }

func (a *last) Result() any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.v
}

func (a *last) SetResult(v any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.v = v
}

type counter struct {
	mu sync.Mutex
	n  int
}

// Counter counts selected elements; Result returns an int.
func Counter() Aggregator { return &counter{} }

func (a *counter) Add(Element, any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.n++
}

func (a *counter) Result() any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.n
}

func (a *counter) SetResult(v any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n, ok := v.(int); ok {
		a.n = n
	}
}

func (a *counter) Reset() { a.SetResult(0) }

type discard struct{}

// Discard drops callback results. Result is always nil.
func Discard() Aggregator { return discard{} }

func (discard) Add(Element, any) {}
func (discard) Result() any      { return nil }
func (discard) SetResult(any)    {}
func (discard) Reset()           {}

type fold struct {
	mu   sync.Mutex
	init any
	acc  any
	fn   func(acc any, el Element, result any) any
}

// Fold reduces callback results into one value, starting from init.
func Fold(init any, fn func(acc any, el Element, result any) any) Aggregator {
	return &fold{init: init, acc: init, fn: fn}
}

func (a *fold) Add(el Element, result any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acc = a.fn(a.acc, el, result)
}

func (a *fold) Result() any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acc
}

func (a *fold) SetResult(v any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acc = v
}

func (a *fold) Reset() { a.SetResult(a.init) }
