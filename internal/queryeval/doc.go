// Package queryeval evaluates compiled selections against JSON records in
// memory.
//
// It is the reference semantics every storage backend agrees with:
//
//   - A missing or null field, or a field whose JSON kind differs from the
//     literal's kind, makes a comparison false for every operator, != included.
//   - Integers and floats compare numerically with each other.
//   - Strings compare by code point after NFC normalization.
//   - Booleans order false < true.
//   - IN is true when any element compares equal.
//
// Ordering ranks kinds as missing < boolean < number < string < other JSON,
// then compares within a kind. Desc reverses a key. Records that tie on
// every key are ordered by id ascending (byte order).
package queryeval
