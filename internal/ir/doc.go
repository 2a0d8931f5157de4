// Package ir provides the canonical types shared by every sweep package:
// collection kinds, traversal shapes, priority tiers, the declarative
// TraversalSpec and the canonical encoding used for plan fingerprints.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types in fingerprinted data - window bounds and counters are ints
//   - Unset is the only negative value a shape may carry
//   - All JSON tags use snake_case
package ir
