package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/sweep/internal/filterir"
	"github.com/roach88/sweep/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// TraversalSpec errors (E101-E109)
	ErrTraversalNameEmpty = "E101" // name is required
	ErrNegativeBound      = "E102" // window bound or counter below zero
	ErrInvalidPriority    = "E103" // unknown priority tier
	ErrInvalidOwnMode     = "E104" // unknown own mode
	ErrDuplicateName      = "E105" // duplicate traversal name
	ErrFloatForbidden     = "E106" // float where an int is required
	ErrInvalidWhereClause = "E112" // where clause does not decode or validate
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates compiled IR against schema rules.
// Returns all errors found (does not fail-fast).
// Supports TraversalSpec values and slices of them.
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.TraversalSpec:
		return validateTraversal(spec)
	case ir.TraversalSpec:
		return validateTraversal(&spec)
	case []ir.TraversalSpec:
		return validateTraversals(spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

func validateTraversals(specs []ir.TraversalSpec) []ValidationError {
	var errs []ValidationError
	names := make(map[string]bool)
	for i := range specs {
		for _, e := range validateTraversal(&specs[i]) {
			e.Field = fmt.Sprintf("traversals[%d].%s", i, e.Field)
			errs = append(errs, e)
		}
		// E105: duplicate name
		if name := specs[i].Name; name != "" {
			if names[name] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("traversals[%d].name", i),
					Message: fmt.Sprintf("duplicate traversal name: %q", name),
					Code:    ErrDuplicateName,
				})
			}
			names[name] = true
		}
	}
	return errs
}

// validateTraversal validates a single traversal specification.
func validateTraversal(spec *ir.TraversalSpec) []ValidationError {
	var errs []ValidationError

	// E101: name is required
	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "name is required and must be non-empty",
			Code:    ErrTraversalNameEmpty,
		})
	}

	// E102: bounds and counters
	bounds := []struct {
		field string
		value *int
	}{
		{"window.start", spec.Start},
		{"window.end", spec.End},
		{"count", spec.Count},
		{"from", spec.From},
	}
	for _, b := range bounds {
		if b.value != nil && *b.value < 0 {
			errs = append(errs, ValidationError{
				Field:   b.field,
				Message: fmt.Sprintf("must be non-negative, got %d", *b.value),
				Code:    ErrNegativeBound,
			})
		}
	}

	// E103: priority tier
	if _, err := ir.ParsePriority(spec.Priority); err != nil {
		errs = append(errs, ValidationError{
			Field:   "priority",
			Message: err.Error(),
			Code:    ErrInvalidPriority,
		})
	}

	// E104: own mode
	if _, err := ir.ParseOwnMode(spec.Own); err != nil {
		errs = append(errs, ValidationError{
			Field:   "own",
			Message: err.Error(),
			Code:    ErrInvalidOwnMode,
		})
	}

	// E112: where clause
	errs = append(errs, validateWhere(spec.Where)...)

	return errs
}

func validateWhere(where map[string]any) []ValidationError {
	if where == nil {
		return nil
	}
	pred, err := filterir.Decode(where)
	if err != nil {
		return []ValidationError{{
			Field:   "where",
			Message: err.Error(),
			Code:    ErrInvalidWhereClause,
		}}
	}
	err = filterir.Validate(pred)
	if err == nil {
		return nil
	}

	var merr *multierror.Error
	if !errors.As(err, &merr) {
		return []ValidationError{{Field: "where", Message: err.Error(), Code: ErrInvalidWhereClause}}
	}
	errs := make([]ValidationError, 0, len(merr.Errors))
	for _, e := range merr.Errors {
		errs = append(errs, ValidationError{
			Field:   "where",
			Message: e.Error(),
			Code:    ErrInvalidWhereClause,
		})
	}
	return errs
}
