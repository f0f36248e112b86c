// Package queryparse turns selection source text into a queryir.Selection.
//
// The lexer is byte-oriented and tracks the byte offset of every token;
// keywords (AND OR IN ORDER BY ASC DESC TRUE FALSE) match case-insensitively
// while identifiers are case-sensitive. Dotted field paths lex as a single
// IDENT token. Strings are single-quoted with '' standing for one quote.
//
// The parser is precedence climbing over prefix/infix function tables.
// It does no field or type validation; that belongs to the evaluators.
//
// Errors are *LexError or *ParseError and carry the byte offset.
package queryparse
