package filterir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sweep/internal/ir"
)

func TestEval_CompareElementItself(t *testing.T) {
	p := Compare{Op: OpGt, Value: ir.Int(15)}

	var matched []int
	for _, x := range []int{10, 20, 30, 40} {
		ok, err := Eval(p, x)
		require.NoError(t, err)
		if ok {
			matched = append(matched, x)
		}
	}
	assert.Equal(t, []int{20, 30, 40}, matched)
}

func TestEval_FieldPaths(t *testing.T) {
	el := map[string]any{
		"name": "widget",
		"meta": map[string]any{"tags": []any{"a", "b"}},
		"qty":  float64(3),
	}

	tests := []struct {
		name string
		pred Predicate
		want bool
	}{
		{"eq string", Compare{Field: "name", Op: OpEq, Value: ir.String("widget")}, true},
		{"ne string", Compare{Field: "name", Op: OpNe, Value: ir.String("gadget")}, true},
		{"float field vs int literal", Compare{Field: "qty", Op: OpEq, Value: ir.Int(3)}, true},
		{"nested index", Compare{Field: "meta.tags.1", Op: OpEq, Value: ir.String("b")}, true},
		{"contains", Compare{Field: "name", Op: OpContains, Value: ir.String("dg")}, true},
		{"missing field ne", Compare{Field: "color", Op: OpNe, Value: ir.String("red")}, true},
		{"missing field eq", Compare{Field: "color", Op: OpEq, Value: ir.String("red")}, false},
		{"type mismatch gt", Compare{Field: "name", Op: OpGt, Value: ir.Int(1)}, false},
		{"exists", Exists{Field: "meta.tags"}, true},
		{"and", And{Predicates: []Predicate{
			Exists{Field: "name"},
			Compare{Field: "qty", Op: OpLt, Value: ir.Int(5)},
		}}, true},
		{"or", Or{Predicates: []Predicate{
			Compare{Field: "qty", Op: OpGt, Value: ir.Int(5)},
			Compare{Field: "name", Op: OpEq, Value: ir.String("widget")},
		}}, true},
		{"not", Not{Predicate: Exists{Field: "name"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(tt.pred, el)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_AllForms(t *testing.T) {
	raw := map[string]any{
		"and": []any{
			map[string]any{"op": "gte", "field": "qty", "value": float64(2)},
			map[string]any{"not": map[string]any{"exists": "deleted"}},
			map[string]any{"or": []any{
				map[string]any{"op": "eq", "field": "kind", "value": "a"},
				map[string]any{"op": "eq", "field": "kind", "value": "b"},
			}},
		},
	}

	p, err := Decode(raw)
	require.NoError(t, err)
	require.NoError(t, Validate(p))

	and, ok := p.(And)
	require.True(t, ok)
	require.Len(t, and.Predicates, 3)
	assert.Equal(t, Compare{Field: "qty", Op: OpGte, Value: ir.Int(2)}, and.Predicates[0])

	ok, err = Eval(p, map[string]any{"qty": 2, "kind": "b"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDecode_Nil(t *testing.T) {
	p, err := Decode(nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestDecode_Unrecognized(t *testing.T) {
	_, err := Decode(map[string]any{"xor": true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized predicate")
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	p := And{Predicates: []Predicate{
		Compare{Field: "a", Op: "like", Value: ir.String("x")},
		Compare{Field: "b", Op: OpGt, Value: ir.Bool(true)},
		Or{},
		Exists{},
	}}

	err := Validate(p)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown operator "like"`)
	assert.Contains(t, msg, "gt needs an integer or string literal")
	assert.Contains(t, msg, "where.and[2].or: needs at least one predicate")
	assert.Contains(t, msg, "exists requires a field path")
}

func TestValidate_NilIsValid(t *testing.T) {
	assert.NoError(t, Validate(nil))
}
