// Package filterir is the declarative predicate language behind
// where-clauses in traversal specs.
//
// Predicates are data: they are decoded from CUE, YAML or CLI input,
// validated, and evaluated against elements by the engine's filter chain.
package filterir

import "github.com/roach88/sweep/internal/ir"

// Predicate is a filter condition over one element.
//
// This is a sealed interface - only types in this package implement it.
// Predicate types:
//   - Compare: field <op> literal
//   - Exists: field is present
//   - And: all sub-predicates hold
//   - Or: at least one sub-predicate holds
//   - Not: the sub-predicate does not hold
type Predicate interface {
	predicateNode()
}

// Op is a comparison operator.
type Op string

const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpContains Op = "contains"
)

// Ordered reports whether the operator needs a total order on its operands.
func (o Op) Ordered() bool {
	switch o {
	case OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// Compare tests a field of the element against a literal.
//
// Field is a dotted path into the element ("price", "meta.tags"). The empty
// path addresses the element itself, so Compare{Op: OpGt, Value: ir.Int(15)}
// matches every element greater than 15.
type Compare struct {
	Field string
	Op    Op
	Value ir.Value
}

func (Compare) predicateNode() {}

// Exists holds when the field path resolves to a value.
type Exists struct {
	Field string
}

func (Exists) predicateNode() {}

// And holds when every sub-predicate holds. An empty And is rejected by
// Validate.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or holds when at least one sub-predicate holds.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Not negates its sub-predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}
