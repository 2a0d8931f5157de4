package filterir

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/sweep/internal/ir"
)

// Getter is implemented by element types that expose named fields, such as
// engine mappings and element descriptors.
type Getter interface {
	Get(key string) (any, bool)
}

// Lookup resolves a dotted field path against an element. The empty path
// returns the element itself.
func Lookup(el any, path string) (any, bool) {
	if path == "" {
		return el, true
	}
	cur := el
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case Getter:
			v, ok := node.Get(seg)
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Eval reports whether the element satisfies the predicate. A nil
// predicate matches everything. Type mismatches in ordered comparisons
// evaluate to false; only malformed predicates return an error.
func Eval(p Predicate, el any) (bool, error) {
	switch pred := p.(type) {
	case nil:
		return true, nil
	case Compare:
		v, ok := Lookup(el, pred.Field)
		if !ok {
			return pred.Op == OpNe, nil
		}
		return compare(pred.Op, v, pred.Value)
	case Exists:
		_, ok := Lookup(el, pred.Field)
		return ok, nil
	case And:
		for _, sub := range pred.Predicates {
			ok, err := Eval(sub, el)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case Or:
		for _, sub := range pred.Predicates {
			ok, err := Eval(sub, el)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case Not:
		ok, err := Eval(pred.Predicate, el)
		return !ok && err == nil, err
	default:
		return false, fmt.Errorf("unknown predicate type %T", p)
	}
}

func compare(op Op, actual any, literal ir.Value) (bool, error) {
	switch op {
	case OpEq:
		return equal(actual, literal), nil
	case OpNe:
		return !equal(actual, literal), nil
	case OpContains:
		s, ok := asString(actual)
		lit, litOK := literal.(ir.String)
		return ok && litOK && strings.Contains(s, string(lit)), nil
	case OpGt, OpGte, OpLt, OpLte:
		c, ok := order(actual, literal)
		if !ok {
			return false, nil
		}
		switch op {
		case OpGt:
			return c > 0, nil
		case OpGte:
			return c >= 0, nil
		case OpLt:
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	default:
		return false, fmt.Errorf("unknown operator %q", op)
	}
}

func equal(actual any, literal ir.Value) bool {
	switch lit := literal.(type) {
	case ir.Int:
		n, ok := asNumber(actual)
		return ok && n == float64(lit)
	case ir.String:
		s, ok := asString(actual)
		return ok && s == string(lit)
	case ir.Bool:
		b, ok := actual.(bool)
		return ok && b == bool(lit)
	default:
		return false
	}
}

// order compares actual to literal, reporting false when the two are not
// comparable.
func order(actual any, literal ir.Value) (int, bool) {
	switch lit := literal.(type) {
	case ir.Int:
		n, ok := asNumber(actual)
		if !ok {
			return 0, false
		}
		return cmp.Compare(n, float64(lit)), true
	case ir.String:
		s, ok := asString(actual)
		if !ok {
			return 0, false
		}
		return cmp.Compare(s, string(lit)), true
	}
	return 0, false
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case ir.Int:
		return float64(n), true
	}
	return 0, false
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case ir.String:
		return string(s), true
	}
	return "", false
}
