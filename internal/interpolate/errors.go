package interpolate

import "fmt"

// ErrorKind categorizes interpolation failures.
type ErrorKind string

const (
	// ErrCountMismatch: positional placeholders and supplied values disagree.
	ErrCountMismatch ErrorKind = "COUNT_MISMATCH"

	// ErrUnboundName: a named placeholder has no binding.
	ErrUnboundName ErrorKind = "UNBOUND_NAME"

	// ErrBadOperator: a structural placeholder carries an unrecognized
	// operator prefix, or a prefix where only a value may go.
	ErrBadOperator ErrorKind = "BAD_OPERATOR"

	// ErrMalformed: unclosed brace, stray closing brace, or an invalid
	// placeholder name.
	ErrMalformed ErrorKind = "MALFORMED_PLACEHOLDER"

	// ErrUnrenderable: a bound value has no literal form (NaN, Inf).
	ErrUnrenderable ErrorKind = "UNRENDERABLE_VALUE"
)

// InterpolationError reports a template that cannot be expanded. It is
// raised before any lexing happens.
type InterpolationError struct {
	Kind   ErrorKind
	Name   string // Placeholder name or index, when one applies
	Offset int    // Byte offset of the placeholder in the template, -1 when not tied to one
	Want   int    // Placeholder count (ErrCountMismatch)
	Got    int    // Supplied value count (ErrCountMismatch)
	Msg    string
}

func (e *InterpolationError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("interpolation error at offset %d: %s", e.Offset, e.Msg)
	}
	return fmt.Sprintf("interpolation error: %s", e.Msg)
}

func countMismatch(want, got int, format string, args ...any) *InterpolationError {
	return &InterpolationError{
		Kind:   ErrCountMismatch,
		Offset: -1,
		Want:   want,
		Got:    got,
		Msg:    fmt.Sprintf(format, args...),
	}
}

func placeholderError(kind ErrorKind, name string, offset int, format string, args ...any) *InterpolationError {
	return &InterpolationError{
		Kind:   kind,
		Name:   name,
		Offset: offset,
		Msg:    fmt.Sprintf(format, args...),
	}
}
