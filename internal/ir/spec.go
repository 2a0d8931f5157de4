package ir

import (
	"fmt"
	"math"
)

// TraversalSpec is the declarative, serializable form of traversal options.
// It is produced by the CUE compiler, embedded in harness scenarios and
// accepted by the CLI. Pointer fields distinguish "not given" from zero.
type TraversalSpec struct {
	Name        string         `json:"name,omitempty" yaml:"name"`
	Start       *int           `json:"start,omitempty" yaml:"start"`
	End         *int           `json:"end,omitempty" yaml:"end"`
	Count       *int           `json:"count,omitempty" yaml:"count"`
	From        *int           `json:"from,omitempty" yaml:"from"`
	First       bool           `json:"first,omitempty" yaml:"first"`
	Reverse     bool           `json:"reverse,omitempty" yaml:"reverse"`
	Inverse     bool           `json:"inverse,omitempty" yaml:"inverse"`
	Own         string         `json:"own,omitempty" yaml:"own"`
	Live        bool           `json:"live,omitempty" yaml:"live"`
	Descriptor  bool           `json:"descriptor,omitempty" yaml:"descriptor"`
	Cooperative bool           `json:"cooperative,omitempty" yaml:"cooperative"`
	Priority    string         `json:"priority,omitempty" yaml:"priority"`
	Where       map[string]any `json:"where,omitempty" yaml:"where"`
}

// Shape converts the spec's control-flow fields into a Shape. The filter
// count is left at zero; the engine sets it when the where clause compiles.
func (s TraversalSpec) Shape() (Shape, error) {
	shape := DefaultShape()
	set := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	set(&shape.StartIndex, s.Start)
	set(&shape.EndIndex, s.End)
	set(&shape.Count, s.Count)
	set(&shape.From, s.From)
	shape.Mult = !s.First
	shape.Reverse = s.Reverse
	shape.InverseFilter = s.Inverse
	shape.Live = s.Live
	shape.WithDescriptor = s.Descriptor
	shape.Thread = s.Cooperative

	own, err := ParseOwnMode(s.Own)
	if err != nil {
		return Shape{}, err
	}
	shape.NotOwn = own

	prio, err := ParsePriority(s.Priority)
	if err != nil {
		return Shape{}, err
	}
	shape.Priority = prio

	if err := shape.Validate(); err != nil {
		return Shape{}, err
	}
	return shape, nil
}

// Object returns the canonical value of the whole spec, where clause
// included.
func (s TraversalSpec) Object() (Object, error) {
	shape, err := s.Shape()
	if err != nil {
		return nil, err
	}
	obj := Object{
		"name":  String(s.Name),
		"shape": shape.Object(),
	}
	if s.Where != nil {
		where, err := ToValue(s.Where)
		if err != nil {
			return nil, fmt.Errorf("where: %w", err)
		}
		obj["where"] = where
	}
	return obj, nil
}

// ToValue converts decoded YAML, JSON or CUE data into a canonical Value.
// Whole-number floats become Int; fractional floats and nulls are rejected.
func ToValue(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden")
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", val)
		}
		return Int(val), nil
	case float64:
		if val != math.Trunc(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("fractional numbers are forbidden: %v", val)
		}
		return Int(int64(val)), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			ev, err := ToValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = ev
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			ev, err := ToValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = ev
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
