package selection

import (
	"errors"
	"fmt"

	"github.com/roach88/selq/internal/interpolate"
	"github.com/roach88/selq/internal/queryparse"
)

// QueryError is returned for any compilation failure.
type QueryError struct {
	Mode     Mode
	Template string // Text the caller supplied
	Source   string // Expanded query text; empty when interpolation failed
	Err      error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("compile %s query %q: %v", e.Mode, e.Template, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// IsLexError reports whether err carries a *queryparse.LexError.
func IsLexError(err error) bool {
	var target *queryparse.LexError
	return errors.As(err, &target)
}

// IsParseError reports whether err carries a *queryparse.ParseError.
func IsParseError(err error) bool {
	var target *queryparse.ParseError
	return errors.As(err, &target)
}

// IsInterpolationError reports whether err carries an
// *interpolate.InterpolationError.
func IsInterpolationError(err error) bool {
	var target *interpolate.InterpolationError
	return errors.As(err, &target)
}

// Offset returns the byte offset reported by the underlying error, or -1.
// Lex and parse offsets index the expanded source; interpolation offsets
// index the template.
func (e *QueryError) Offset() int {
	var lexErr *queryparse.LexError
	if errors.As(e.Err, &lexErr) {
		return lexErr.Offset
	}
	var parseErr *queryparse.ParseError
	if errors.As(e.Err, &parseErr) {
		return parseErr.Offset
	}
	var interpErr *interpolate.InterpolationError
	if errors.As(e.Err, &interpErr) {
		return interpErr.Offset
	}
	return -1
}
