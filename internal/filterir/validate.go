package filterir

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/sweep/internal/ir"
)

// Validate checks a predicate tree and reports every problem at once.
//
// Rules:
//  1. Operators are one of the Op constants
//  2. Ordered operators compare against Int or String literals only
//  3. contains takes a String literal
//  4. And/Or carry at least one sub-predicate; Not carries one
//
// A nil predicate is valid (no filter). Validate is a pure function.
func Validate(p Predicate) error {
	v := &validator{}
	v.validate(p, "where")
	return v.errs.ErrorOrNil()
}

type validator struct {
	errs *multierror.Error
}

func (v *validator) addError(format string, args ...any) {
	v.errs = multierror.Append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) validate(p Predicate, path string) {
	switch pred := p.(type) {
	case nil:
		return
	case Compare:
		v.validateCompare(pred, path)
	case Exists:
		if pred.Field == "" {
			v.addError("%s: exists requires a field path", path)
		}
	case And:
		v.validateList(pred.Predicates, path+".and")
	case Or:
		v.validateList(pred.Predicates, path+".or")
	case Not:
		if pred.Predicate == nil {
			v.addError("%s.not: missing predicate", path)
			return
		}
		v.validate(pred.Predicate, path+".not")
	default:
		v.addError("%s: unknown predicate type %T", path, p)
	}
}

func (v *validator) validateCompare(c Compare, path string) {
	switch c.Op {
	case OpEq, OpNe:
	case OpGt, OpGte, OpLt, OpLte:
		switch c.Value.(type) {
		case ir.Int, ir.String:
		default:
			v.addError("%s: %s needs an integer or string literal, got %T", path, c.Op, c.Value)
		}
	case OpContains:
		if _, ok := c.Value.(ir.String); !ok {
			v.addError("%s: contains needs a string literal, got %T", path, c.Value)
		}
	default:
		v.addError("%s: unknown operator %q", path, c.Op)
	}
	if c.Value == nil {
		v.addError("%s: missing literal", path)
	}
}

func (v *validator) validateList(preds []Predicate, path string) {
	if len(preds) == 0 {
		v.addError("%s: needs at least one predicate", path)
	}
	for i, p := range preds {
		v.validate(p, fmt.Sprintf("%s[%d]", path, i))
	}
}
