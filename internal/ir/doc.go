// Package ir provides the value types shared by every selq package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Literal is sealed: String, Int, Float, Bool
//   - Render is the single path from a Literal to query text; both
//     interpolation forms go through it
//   - Records are JSON objects stored in canonical form (sorted keys, NFC strings)
//   - Logical clocks (seq) order mutations, never wall-clock timestamps
package ir
