// Package interpolate expands query templates into fully literal query
// text before lexing.
//
// Two independent front ends share one renderer (ir.Render):
//
//	Quoted      "year >= {} AND year <= {}" + [1980, 1990]
//	Structural  "{artist} AND {>year}"     + {artist: "Prince", year: 1985}
//
// No caller string ever reaches the lexer unescaped: every substituted
// value is a Literal rendered by ir.Render, so embedded quotes and
// keywords stay inside their string literal.
//
// Failures are *InterpolationError and happen before any lexing.
package interpolate
