package compiler

import (
	"encoding/json"
	"fmt"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/sweep/internal/ir"
)

// knownFields lists the labels a traversal definition may use.
var knownFields = []string{
	"window", "count", "from", "first", "reverse", "inverse", "own",
	"live", "descriptor", "cooperative", "priority", "where",
}

// CompileTraversal parses a CUE value into a TraversalSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the traversal struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`traversal: expensive: { count: 2, where: {op: "gt", field: "price", value: 15} }`)
//	spec, err := CompileTraversal(v.LookupPath(cue.ParsePath("traversal.expensive")))
//
// Unknown labels are rejected so that typos do not silently fall back to
// defaults.
func CompileTraversal(v cue.Value) (*ir.TraversalSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.TraversalSpec{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		if !slices.Contains(knownFields, iter.Label()) {
			return nil, &CompileError{
				Field:   iter.Label(),
				Message: fmt.Sprintf("unknown field (expected one of %v)", knownFields),
				Pos:     iter.Value().Pos(),
			}
		}
	}

	window := v.LookupPath(cue.ParsePath("window"))
	if window.Exists() {
		if spec.Start, err = lookupInt(window, "start", "window.start"); err != nil {
			return nil, err
		}
		if spec.End, err = lookupInt(window, "end", "window.end"); err != nil {
			return nil, err
		}
	}
	if spec.Count, err = lookupInt(v, "count", "count"); err != nil {
		return nil, err
	}
	if spec.From, err = lookupInt(v, "from", "from"); err != nil {
		return nil, err
	}

	flags := []struct {
		name string
		dst  *bool
	}{
		{"first", &spec.First},
		{"reverse", &spec.Reverse},
		{"inverse", &spec.Inverse},
		{"live", &spec.Live},
		{"descriptor", &spec.Descriptor},
		{"cooperative", &spec.Cooperative},
	}
	for _, f := range flags {
		if *f.dst, err = lookupBool(v, f.name); err != nil {
			return nil, err
		}
	}

	if spec.Own, err = lookupString(v, "own"); err != nil {
		return nil, err
	}
	if spec.Priority, err = lookupString(v, "priority"); err != nil {
		return nil, err
	}

	spec.Where, err = parseWhere(v)
	if err != nil {
		return nil, err
	}

	return spec, nil
}

// lookupInt reads an optional integer field. Floats are forbidden: window
// bounds and counters are positions.
func lookupInt(v cue.Value, path, field string) (*int, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return nil, nil
	}
	switch f.IncompleteKind() {
	case cue.IntKind:
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   field,
			Message: "float values are forbidden - use int instead",
			Pos:     f.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("expected int, got %v", f.IncompleteKind()),
			Pos:     f.Pos(),
		}
	}
	n, err := f.Int64()
	if err != nil {
		return nil, formatCUEError(err)
	}
	i := int(n)
	return &i, nil
}

func lookupBool(v cue.Value, field string) (bool, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, &CompileError{Field: field, Message: "expected bool", Pos: f.Pos()}
	}
	return b, nil
}

func lookupString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: "expected string", Pos: f.Pos()}
	}
	return s, nil
}

// parseWhere exports the where clause as plain data. It goes through JSON
// so numbers arrive as float64, which ir.ToValue narrows to Int.
func parseWhere(v cue.Value) (map[string]any, error) {
	f := v.LookupPath(cue.ParsePath("where"))
	if !f.Exists() {
		return nil, nil
	}
	if f.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{
			Field:   "where",
			Message: fmt.Sprintf("expected struct, got %v", f.IncompleteKind()),
			Pos:     f.Pos(),
		}
	}
	data, err := f.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var where map[string]any
	if err := json.Unmarshal(data, &where); err != nil {
		return nil, &CompileError{Field: "where", Message: err.Error(), Pos: f.Pos()}
	}
	return where, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
