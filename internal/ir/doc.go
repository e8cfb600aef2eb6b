// Package ir provides the foundational types shared by every statetree
// package: the sealed params payload, canonical JSON, content digests,
// transforms and the closed set of builder actions.
//
// ir imports nothing internal. Every other package imports ir, never the
// reverse, so it stays the bottom layer with no cycles.
//
// Key constraints:
//   - no float types in params; use int64 (fixed-point if needed)
//   - transforms are values and are never mutated once placed in a tree
//   - canonical JSON (RFC 8785) is the only serialization used for digests
package ir
