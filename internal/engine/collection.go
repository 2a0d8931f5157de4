package engine

import (
	"fmt"
	"iter"
	"slices"

	"github.com/roach88/sweep/internal/ir"
)

// Sequence is an ordered, index-addressable collection. Its size may change
// between two calls of a live traversal.
type Sequence interface {
	Len() int
	At(i int) any
}

// Mapping is a key/value collection with a distinction between own keys
// and keys inherited through a parent chain.
type Mapping interface {
	// OwnKeys returns the mapping's own keys in enumeration order. The
	// returned slice must not be retained by the mapping.
	OwnKeys() []string
	// InheritedKeys returns keys reachable through the parent chain that
	// are not shadowed by an own key, nearest parent first.
	InheritedKeys() []string
	// Get resolves a key, own keys first.
	Get(key string) (any, bool)
}

// KeyStore has unique keys, a stable forward cursor and no reverse cursor.
type KeyStore interface {
	Len() int
	Cursor() Cursor
}

// Cursor walks a KeyStore forward. For set-like stores value == key.
type Cursor interface {
	Next() (key, value any, ok bool)
}

// Normalize determines the kind of coll and converts plain Go containers
// into the engine's collection interfaces:
//
//	[]any           -> Sequence
//	map[string]any  -> Mapping (keys in canonical order)
//	iter.Seq[any]   -> Source (pair protocol)
//
// Anything else must implement one of Source, KeyStore, Mapping or
// Sequence, checked in that order.
func Normalize(coll any) (ir.Kind, any, error) {
	switch c := coll.(type) {
	case nil:
		return "", nil, NewUnsupportedKindError(coll)
	case Source:
		return ir.KindSource, c, nil
	case KeyStore:
		return ir.KindKeyStore, c, nil
	case Mapping:
		return ir.KindMapping, c, nil
	case Sequence:
		return ir.KindSequence, c, nil
	case []any:
		return ir.KindSequence, SliceOf(c), nil
	case map[string]any:
		return ir.KindMapping, MapOf(c), nil
	case iter.Seq[any]:
		return ir.KindSource, SeqSource(c), nil
	default:
		return "", nil, NewUnsupportedKindError(coll)
	}
}

// KindOf reports the kind Normalize would assign to coll.
func KindOf(coll any) (ir.Kind, error) {
	k, _, err := Normalize(coll)
	return k, err
}

type sliceSequence []any

// SliceOf wraps a slice as a read-only Sequence. Use List when callbacks
// need to insert or remove elements.
func SliceOf(values []any) Sequence {
	return sliceSequence(values)
}

func (s sliceSequence) Len() int     { return len(s) }
func (s sliceSequence) At(i int) any { return s[i] }

type mapMapping struct {
	values map[string]any
	keys   []string
}

// MapOf wraps a Go map as a Mapping without inherited keys. Go maps have
// no enumeration order, so keys are visited in canonical (UTF-16) order.
func MapOf(values map[string]any) Mapping {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, ir.CompareKeys)
	return &mapMapping{values: values, keys: keys}
}

func (m *mapMapping) OwnKeys() []string       { return slices.Clone(m.keys) }
func (m *mapMapping) InheritedKeys() []string { return nil }

func (m *mapMapping) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// describe renders a collection for error messages.
func describe(coll any) string {
	if coll == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", coll)
}
