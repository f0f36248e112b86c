// Package selection is the single entry point that turns query text into a
// compiled queryir.Selection.
//
// Three modes share one pipeline:
//
//	ModePlain       source -> lex -> parse
//	ModeQuoted      template + values -> interpolate.Quoted -> lex -> parse
//	ModeStructural  template + env    -> interpolate.Structural -> lex -> parse
//
// Compilation is pure. It performs no I/O and holds no shared state, so
// Compile is safe to call concurrently. Compiler adds an LRU cache keyed by
// the fully expanded query text and is also safe for concurrent use.
//
// Every failure is a *QueryError wrapping exactly one of
// *queryparse.LexError, *queryparse.ParseError or
// *interpolate.InterpolationError.
package selection
