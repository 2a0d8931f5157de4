package ir

// Version constants for plan fingerprints and the engine.
const (
	// PlanVersion is bumped whenever the meaning of a Shape field changes,
	// which invalidates every fingerprint computed before.
	PlanVersion = "1"

	// EngineVersion is the sweep engine version.
	EngineVersion = "0.1.0"
)
