package ir

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Unset marks an integer shape field that was never given a value.
// Count, From, StartIndex and EndIndex are either non-negative or Unset.
const Unset = -1

// OwnMode selects which keys of a mapping are visited.
type OwnMode string

const (
	// OwnOnly visits keys defined directly on the mapping (default).
	OwnOnly OwnMode = "own"

	// OwnAndInherited visits own keys followed by inherited keys.
	OwnAndInherited OwnMode = "all"

	// InheritedOnly visits only keys reachable through the parent chain
	// that are not shadowed by an own key.
	InheritedOnly OwnMode = "inherited"
)

// ParseOwnMode converts a string into an OwnMode. The empty string maps to
// OwnOnly.
func ParseOwnMode(s string) (OwnMode, error) {
	switch OwnMode(s) {
	case "":
		return OwnOnly, nil
	case OwnOnly, OwnAndInherited, InheritedOnly:
		return OwnMode(s), nil
	default:
		return "", fmt.Errorf("invalid own mode %q: must be own, all, or inherited", s)
	}
}

// Shape is the control-flow part of a canonical traversal configuration.
// Two traversals with equal shapes over the same kind share one plan.
//
// Every field is always populated: integers hold a value or Unset, flags
// hold their default when the caller said nothing.
type Shape struct {
	Mult           bool     `json:"mult"`
	Count          int      `json:"count"`
	From           int      `json:"from"`
	StartIndex     int      `json:"start_index"`
	EndIndex       int      `json:"end_index"`
	Reverse        bool     `json:"reverse"`
	InverseFilter  bool     `json:"inverse_filter"`
	NotOwn         OwnMode  `json:"not_own"`
	Live           bool     `json:"live"`
	WithDescriptor bool     `json:"with_descriptor"`
	Async          bool     `json:"async"`
	Thread         bool     `json:"thread"`
	Priority       Priority `json:"priority"`
	Filters        int      `json:"filters"`
}

// DefaultShape returns the shape used when no option is given: collect
// every element, forward, unwindowed, own keys only, synchronous.
func DefaultShape() Shape {
	return Shape{
		Mult:       true,
		Count:      Unset,
		From:       Unset,
		StartIndex: Unset,
		EndIndex:   Unset,
		NotOwn:     OwnOnly,
		Priority:   PriorityNormal,
	}
}

// Cooperative reports whether the traversal runs as a scheduler task.
func (s Shape) Cooperative() bool {
	return s.Async || s.Thread
}

// Windowed reports whether a start or end bound is set.
func (s Shape) Windowed() bool {
	return s.StartIndex != Unset || s.EndIndex != Unset
}

// Start returns the effective inclusive lower bound.
func (s Shape) Start() int {
	if s.StartIndex == Unset {
		return 0
	}
	return s.StartIndex
}

// Empty reports whether the window can never select an element.
func (s Shape) Empty() bool {
	if s.Count == 0 {
		return true
	}
	return s.EndIndex != Unset && s.EndIndex < s.Start()
}

// Validate checks the integer invariants and reports every offending field
// at once.
func (s Shape) Validate() error {
	var result *multierror.Error
	check := func(name string, v int) {
		if v < 0 && v != Unset {
			result = multierror.Append(result, fmt.Errorf("%s must be non-negative, got %d", name, v))
		}
	}
	check("count", s.Count)
	check("from", s.From)
	check("start_index", s.StartIndex)
	check("end_index", s.EndIndex)
	if s.Filters < 0 {
		result = multierror.Append(result, fmt.Errorf("filters must be non-negative, got %d", s.Filters))
	}
	if _, err := ParseOwnMode(string(s.NotOwn)); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := ParsePriority(string(s.Priority)); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Object returns the shape as a canonical value, the input of Fingerprint.
func (s Shape) Object() Object {
	return Object{
		"mult":            Bool(s.Mult),
		"count":           Int(s.Count),
		"from":            Int(s.From),
		"start_index":     Int(s.StartIndex),
		"end_index":       Int(s.EndIndex),
		"reverse":         Bool(s.Reverse),
		"inverse_filter":  Bool(s.InverseFilter),
		"not_own":         String(s.NotOwn),
		"live":            Bool(s.Live),
		"with_descriptor": Bool(s.WithDescriptor),
		"async":           Bool(s.Async),
		"thread":          Bool(s.Thread),
		"priority":        String(s.Priority),
		"filters":         Int(s.Filters),
	}
}
