package ir

import "fmt"

// Kind is the structural category of the data behind a traversal.
type Kind string

const (
	// KindSequence is ordered and index-addressable; its size may change
	// while a traversal is running.
	KindSequence Kind = "sequence"

	// KindMapping is an unordered key/value collection that distinguishes
	// own keys from keys inherited through a parent chain.
	KindMapping Kind = "mapping"

	// KindKeyStore has unique keys and a stable forward cursor but no
	// native reverse cursor. Values are optionally paired with keys.
	KindKeyStore Kind = "keystore"

	// KindSource is a pull-based, possibly infinite external source.
	KindSource Kind = "source"
)

// Kinds lists every kind in a stable order.
var Kinds = []Kind{KindSequence, KindMapping, KindKeyStore, KindSource}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown collection kind %q: must be sequence, mapping, keystore, or source", s)
}

// Mutable reports whether elements of the kind can be written or deleted
// through the traversal.
func (k Kind) Mutable() bool {
	return k != KindSource
}
