package filterir

import (
	"fmt"

	"github.com/roach88/sweep/internal/ir"
)

// Decode builds a Predicate from decoded CUE/YAML/JSON data.
//
// Accepted forms:
//
//	{op: "gt", field: "price", value: 15}
//	{exists: "price"}
//	{and: [...]} / {or: [...]}
//	{not: {...}}
//
// A nil map decodes to a nil Predicate (no filter).
func Decode(raw map[string]any) (Predicate, error) {
	if raw == nil {
		return nil, nil
	}
	switch {
	case raw["and"] != nil:
		preds, err := decodeList(raw["and"])
		if err != nil {
			return nil, fmt.Errorf("and: %w", err)
		}
		return And{Predicates: preds}, nil
	case raw["or"] != nil:
		preds, err := decodeList(raw["or"])
		if err != nil {
			return nil, fmt.Errorf("or: %w", err)
		}
		return Or{Predicates: preds}, nil
	case raw["not"] != nil:
		inner, ok := raw["not"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("not: expected object, got %T", raw["not"])
		}
		p, err := Decode(inner)
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		return Not{Predicate: p}, nil
	case raw["exists"] != nil:
		field, ok := raw["exists"].(string)
		if !ok {
			return nil, fmt.Errorf("exists: expected field path, got %T", raw["exists"])
		}
		return Exists{Field: field}, nil
	case raw["op"] != nil:
		op, ok := raw["op"].(string)
		if !ok {
			return nil, fmt.Errorf("op: expected string, got %T", raw["op"])
		}
		field := ""
		if f, present := raw["field"]; present {
			if field, ok = f.(string); !ok {
				return nil, fmt.Errorf("field: expected string, got %T", f)
			}
		}
		value, err := ir.ToValue(raw["value"])
		if err != nil {
			return nil, fmt.Errorf("value: %w", err)
		}
		return Compare{Field: field, Op: Op(op), Value: value}, nil
	default:
		return nil, fmt.Errorf("unrecognized predicate: expected one of op, exists, and, or, not")
	}
}

func decodeList(v any) ([]Predicate, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected list, got %T", v)
	}
	preds := make([]Predicate, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("[%d]: expected object, got %T", i, item)
		}
		p, err := Decode(m)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		preds = append(preds, p)
	}
	return preds, nil
}
