package engine

import (
	"iter"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sweep/internal/ir"
)

func TestNormalize_Kinds(t *testing.T) {
	seq := iter.Seq[any](func(yield func(any) bool) {})

	tests := []struct {
		name string
		coll any
		want ir.Kind
	}{
		{"slice", []any{1, 2}, ir.KindSequence},
		{"list", NewList(1), ir.KindSequence},
		{"go map", map[string]any{"a": 1}, ir.KindMapping},
		{"object", ObjectOf("a", 1), ir.KindMapping},
		{"ordered map", NewOrderedMap(), ir.KindKeyStore},
		{"ordered set", NewOrderedSet(1), ir.KindKeyStore},
		{"iterator", seq, ir.KindSource},
		{"pair source", PairSource(func() (any, bool) { return nil, true }), ir.KindSource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := KindOf(tt.coll)
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestNormalize_Unsupported(t *testing.T) {
	for _, coll := range []any{nil, 42, "text", []int{1}} {
		_, _, err := Normalize(coll)
		require.Error(t, err)
		assert.True(t, IsConfigError(err), "%T should be a config error", coll)
	}
}

func TestMapOf_CanonicalKeyOrder(t *testing.T) {
	m := MapOf(map[string]any{"b": 2, "a": 1, "c": 3})

	assert.Equal(t, []string{"a", "b", "c"}, m.OwnKeys())
	assert.Nil(t, m.InheritedKeys())
	v, ok := m.Get("b")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestList_Mutation(t *testing.T) {
	l := NewList(1, 2, 3)

	require.NoError(t, l.Insert(0, 0))
	require.NoError(t, l.Set(3, 30))
	removed, err := l.Remove(1)
	require.NoError(t, err)
	l.Append(4)

	assert.Equal(t, 1, removed)
	assert.Equal(t, []any{0, 2, 30, 4}, l.Values())

	assert.ErrorIs(t, l.Insert(9, 0), ErrIndexOutOfBounds)
	assert.ErrorIs(t, l.Set(-1, 0), ErrIndexOutOfBounds)
	_, err = l.Remove(4)
	assert.ErrorIs(t, err, ErrIndexOutOfBounds)
}

func TestObject_OwnAndInherited(t *testing.T) {
	base := ObjectOf("a", 1, "b", 2)
	mid := NewObject(base)
	mid.Set("c", 3)
	obj := NewObject(mid)
	obj.Set("b", 20)
	obj.Set("d", 4)

	assert.Equal(t, []string{"b", "d"}, obj.OwnKeys())
	assert.Equal(t, []string{"c", "a"}, obj.InheritedKeys(), "nearest parent first, shadowed keys skipped")

	v, ok := obj.Get("b")
	require.True(t, ok)
	assert.Equal(t, 20, v)
	v, ok = obj.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.False(t, obj.HasOwn("a"))

	assert.True(t, obj.Delete("b"))
	assert.False(t, obj.Delete("a"), "inherited keys cannot be deleted")
	v, _ = obj.Get("b")
	assert.Equal(t, 2, v, "deleting an own key uncovers the inherited one")
}

func drainCursor(c Cursor) []any {
	var keys []any
	for {
		k, _, ok := c.Next()
		if !ok {
			return keys
		}
		keys = append(keys, k)
	}
}

func TestOrderedMap_SetKeepsPosition(t *testing.T) {
	m := NewOrderedMap()
	m.Set("x", 1)
	m.Set("y", 2)
	m.Set("x", 10)

	assert.Equal(t, []any{"x", "y"}, m.Keys())
	v, _ := m.Get("x")
	assert.Equal(t, 10, v)
	assert.Equal(t, 2, m.Len())
}

func TestOrderedMap_CursorToleratesMutation(t *testing.T) {
	t.Run("delete current entry", func(t *testing.T) {
		m := NewOrderedMap()
		for _, k := range []string{"a", "b", "c"} {
			m.Set(k, k)
		}
		c := m.Cursor()
		k, _, _ := c.Next()
		require.Equal(t, "a", k)
		m.Delete("a")

		assert.Equal(t, []any{"b", "c"}, drainCursor(c))
	})

	t.Run("delete ahead of cursor", func(t *testing.T) {
		m := NewOrderedMap()
		for _, k := range []string{"a", "b", "c"} {
			m.Set(k, k)
		}
		c := m.Cursor()
		c.Next()
		m.Delete("b")

		assert.Equal(t, []any{"c"}, drainCursor(c))
	})

	t.Run("append during walk", func(t *testing.T) {
		m := NewOrderedMap()
		m.Set("a", 1)
		c := m.Cursor()
		c.Next()
		m.Set("b", 2)

		assert.Equal(t, []any{"b"}, drainCursor(c))
	})

	t.Run("delete run of entries under cursor", func(t *testing.T) {
		m := NewOrderedMap()
		for _, k := range []string{"a", "b", "c", "d"} {
			m.Set(k, k)
		}
		c := m.Cursor()
		c.Next()
		c.Next()
		m.Delete("b")
		m.Delete("a")
		m.Set("e", "e")

		assert.Equal(t, []any{"c", "d", "e"}, drainCursor(c))
	})
}

func TestOrderedSet(t *testing.T) {
	s := NewOrderedSet(3, 1, 3, 2)

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []any{3, 1, 2}, s.Values())
	k, v, ok := s.Cursor().Next()
	require.True(t, ok)
	assert.Equal(t, k, v)
}

func TestPull_Protocols(t *testing.T) {
	t.Run("pair keeps falsy values", func(t *testing.T) {
		vals := []any{0, false, "", nil}
		i := 0
		src := PairSource(func() (any, bool) {
			if i == len(vals) {
				return nil, true
			}
			i++
			return vals[i-1], false
		})
		var got []any
		for {
			v, ok := pull(src)
			if !ok {
				break
			}
			got = append(got, v)
		}
		assert.Equal(t, vals, got)
	})

	t.Run("sentinel stops at first falsy value", func(t *testing.T) {
		vals := []any{1, "x", 0, 5}
		i := 0
		src := SentinelSource(func() any {
			i++
			return vals[i-1]
		})
		v, ok := pull(src)
		assert.True(t, ok)
		assert.Equal(t, 1, v)
		_, ok = pull(src)
		assert.True(t, ok)
		_, ok = pull(src)
		assert.False(t, ok)
	})
}

func TestIsFalsy(t *testing.T) {
	var nilPtr *int
	falsy := []any{nil, false, 0, int8(0), uint(0), 0.0, math.NaN(), "", nilPtr, []any(nil)}
	truthy := []any{true, 1, -1, 0.5, "0", []any{}, struct{}{}}

	for _, v := range falsy {
		assert.True(t, isFalsy(v), "%#v should be falsy", v)
	}
	for _, v := range truthy {
		assert.False(t, isFalsy(v), "%#v should be truthy", v)
	}
}

func TestSeqSource_RestartsAfterClose(t *testing.T) {
	src := SeqSource(func(yield func(any) bool) {
		for i := range 3 {
			if !yield(i) {
				return
			}
		}
	})

	v, ok := pull(src)
	require.True(t, ok)
	assert.Equal(t, 0, v)
	require.NoError(t, closeSource(src))

	v, ok = pull(src)
	require.True(t, ok)
	assert.Equal(t, 0, v, "closing resets the iterator")
	require.NoError(t, closeSource(src))
}
