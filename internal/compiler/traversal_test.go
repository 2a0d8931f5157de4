package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sweep/internal/ir"
)

func compileOne(t *testing.T, src, path string) (*ir.TraversalSpec, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	return CompileTraversal(v.LookupPath(cue.ParsePath(path)))
}

func TestCompileTraversalBasic(t *testing.T) {
	spec, err := compileOne(t, `
		traversal: expensive: {
			window: { start: 1, end: 3 }
			count: 2
			reverse: true
			priority: "high"
			cooperative: true
			where: { op: "gt", field: "price", value: 15 }
		}
	`, "traversal.expensive")
	require.NoError(t, err)

	assert.Equal(t, "expensive", spec.Name)
	require.NotNil(t, spec.Start)
	require.NotNil(t, spec.End)
	require.NotNil(t, spec.Count)
	assert.Equal(t, 1, *spec.Start)
	assert.Equal(t, 3, *spec.End)
	assert.Equal(t, 2, *spec.Count)
	assert.Nil(t, spec.From)
	assert.True(t, spec.Reverse)
	assert.True(t, spec.Cooperative)
	assert.False(t, spec.First)
	assert.Equal(t, "high", spec.Priority)
	assert.Equal(t, map[string]any{"op": "gt", "field": "price", "value": float64(15)}, spec.Where)
}

func TestCompileTraversalEmpty(t *testing.T) {
	spec, err := compileOne(t, `traversal: all: {}`, "traversal.all")
	require.NoError(t, err)

	shape, err := spec.Shape()
	require.NoError(t, err)
	assert.Equal(t, ir.DefaultShape(), shape)
}

func TestCompileTraversalRejectsFloats(t *testing.T) {
	_, err := compileOne(t, `traversal: bad: { count: 2.5 }`, "traversal.bad")

	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "count", ce.Field)
	assert.Contains(t, ce.Message, "float")
}

func TestCompileTraversalRejectsUnknownField(t *testing.T) {
	_, err := compileOne(t, `traversal: typo: { reversed: true }`, "traversal.typo")

	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "reversed", ce.Field)
}

func TestCompileTraversalWrongTypes(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"bool as string", `traversal: x: { live: "yes" }`, "live"},
		{"priority as int", `traversal: x: { priority: 3 }`, "priority"},
		{"where as list", `traversal: x: { where: [1] }`, "where"},
		{"window start as string", `traversal: x: { window: { start: "1" } }`, "window.start"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileOne(t, tt.src, "traversal.x")
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCompileBytesCollectsAll(t *testing.T) {
	src := []byte(`
traversal: good: { first: true }
traversal: bad1: { count: 1.5 }
traversal: bad2: { unknown: 1 }
`)
	result, errs := CompileBytes("specs.cue", src, LoadModeCollectAll)

	require.NotNil(t, result)
	assert.Len(t, errs, 2)
	require.Len(t, result.Traversals, 1)
	good, ok := result.Lookup("good")
	require.True(t, ok)
	assert.True(t, good.First)
}

func TestCompileBytesFailFast(t *testing.T) {
	src := []byte(`
traversal: bad1: { count: 1.5 }
traversal: bad2: { unknown: 1 }
`)
	_, errs := CompileBytes("specs.cue", src, LoadModeFailFast)
	assert.Len(t, errs, 1)
}

func TestCompileBytesSyntaxError(t *testing.T) {
	_, errs := CompileBytes("broken.cue", []byte(`traversal: {`), LoadModeCollectAll)
	require.Len(t, errs, 1)
}

func TestCompileBytesNoTraversals(t *testing.T) {
	result, errs := CompileBytes("empty.cue", []byte(`other: 1`), LoadModeCollectAll)
	require.NotNil(t, result)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no traversals")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cue"), []byte("package specs\n\ntraversal: first: { first: true }\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.cue"), []byte("package specs\n\ntraversal: last: { reverse: true, first: true }\n"), 0644))

	result, errs := LoadDir(dir, LoadModeCollectAll)
	require.Empty(t, errs)
	assert.Equal(t, 2, result.FileCount)
	assert.Len(t, result.Traversals, 2)

	last, ok := result.Lookup("last")
	require.True(t, ok)
	assert.True(t, last.Reverse)
}

func TestLoadDirMissing(t *testing.T) {
	_, errs := LoadDir(filepath.Join(t.TempDir(), "absent"), LoadModeCollectAll)
	require.Len(t, errs, 1)
	var le *LoadError
	require.ErrorAs(t, errs[0], &le)
	assert.Equal(t, "scan", le.Stage)
}

func TestLoadDirNoFiles(t *testing.T) {
	_, errs := LoadDir(t.TempDir(), LoadModeCollectAll)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no CUE files")
}
