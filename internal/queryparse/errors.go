package queryparse

import "fmt"

// LexError reports a malformed token: an unterminated string, a bad
// numeral, or a character outside the language.
type LexError struct {
	Offset int    // Byte offset of the offending token in the source
	Msg    string // What was wrong
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at offset %d: %s", e.Offset, e.Msg)
}

// ParseError reports a grammar violation. Expected names the construct
// the parser was looking for; Found is the token it got instead.
type ParseError struct {
	Expected string
	Found    Token
	Offset   int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: expected %s, found %s", e.Offset, e.Expected, e.Found.Describe())
}

func newParseError(expected string, found Token) *ParseError {
	return &ParseError{Expected: expected, Found: found, Offset: found.Pos}
}
