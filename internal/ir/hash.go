package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix enables future algorithm migration.
const (
	DomainPlan = "sweep/plan/v" + PlanVersion
	DomainSpec = "sweep/spec/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes the plan-cache key for a kind and shape. Equal
// inputs always produce equal fingerprints; any differing shape field
// produces a different one.
func Fingerprint(kind Kind, shape Shape) string {
	obj := Object{
		"kind":  String(kind),
		"shape": shape.Object(),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		// Shape.Object only builds Value types, so this is unreachable.
		panic(fmt.Sprintf("Fingerprint: %v", err))
	}
	return hashWithDomain(DomainPlan, canonical)
}

// SpecHash identifies a declarative traversal spec. It fails when the spec
// carries values that have no canonical form, such as fractional numbers
// in a where clause.
func SpecHash(spec TraversalSpec) (string, error) {
	obj, err := spec.Object()
	if err != nil {
		return "", fmt.Errorf("SpecHash: %w", err)
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("SpecHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSpec, canonical), nil
}
