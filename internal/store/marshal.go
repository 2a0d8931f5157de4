package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/sweep/internal/ir"
)

// marshalShape converts a Shape to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON, the same bytes the fingerprint hashes.
func marshalShape(shape ir.Shape) (string, error) {
	data, err := ir.MarshalCanonical(shape.Object())
	if err != nil {
		return "", fmt.Errorf("marshal shape: %w", err)
	}
	return string(data), nil
}

// unmarshalShape parses canonical JSON TEXT back into a Shape.
func unmarshalShape(data string) (ir.Shape, error) {
	var shape ir.Shape
	if err := json.Unmarshal([]byte(data), &shape); err != nil {
		return ir.Shape{}, fmt.Errorf("unmarshal shape: %w", err)
	}
	return shape, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
