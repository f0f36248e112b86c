package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the variant of a Literal.
type Kind int

const (
	KindString Kind = iota + 1
	KindInt
	KindFloat
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindBool:
		return "boolean"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Literal is a sealed interface over the scalar values a selection can carry.
// Only String, Int, Float, and Bool implement it.
//
// Literals are values, not references: copying a Literal copies its payload,
// so a compiled predicate never aliases the caller's bindings.
type Literal interface {
	literal() // Sealed - only these types implement it
	Kind() Kind
}

// String is a string literal.
type String string

func (String) literal()   {}
func (String) Kind() Kind { return KindString }

// Int is a 64-bit signed integer literal.
type Int int64

func (Int) literal()   {}
func (Int) Kind() Kind { return KindInt }

// Float is a 64-bit floating point literal.
type Float float64

func (Float) literal()   {}
func (Float) Kind() Kind { return KindFloat }

// Bool is a boolean literal.
type Bool bool

func (Bool) literal()   {}
func (Bool) Kind() Kind { return KindBool }

// NewString creates a String literal.
func NewString(s string) String {
	return String(s)
}

// NewInt creates an Int literal.
func NewInt(n int64) Int {
	return Int(n)
}

// NewFloat creates a Float literal.
func NewFloat(f float64) Float {
	return Float(f)
}

// NewBool creates a Bool literal.
func NewBool(b bool) Bool {
	return Bool(b)
}

// IsNumeric reports whether the literal is an Int or a Float.
func IsNumeric(l Literal) bool {
	switch l.(type) {
	case Int, Float:
		return true
	default:
		return false
	}
}

// Equal reports whether two literals have the same kind and payload.
// Int(1) and Float(1) are NOT equal here; numeric coercion is an
// evaluation concern, not an identity one.
func Equal(a, b Literal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a == b
}

// Render returns the escaped query-text form of a literal.
//
// Strings are wrapped in single quotes with embedded quotes doubled.
// Numbers and booleans are bare tokens. Floats always carry a decimal
// point so they lex back as floats. Lexing the rendered text yields a
// literal Equal to the input.
//
// Non-finite floats have no textual form and return an error.
func Render(l Literal) (string, error) {
	switch v := l.(type) {
	case String:
		return "'" + Escape(string(v)) + "'", nil
	case Int:
		return strconv.FormatInt(int64(v), 10), nil
	case Float:
		return renderFloat(float64(v))
	case Bool:
		if v {
			return "true", nil
		}
		return "false", nil
	case nil:
		return "", fmt.Errorf("cannot render nil literal")
	default:
		return "", fmt.Errorf("unknown literal type: %T", l)
	}
}

// MustRender is Render for literals known to be renderable.
// Panics on non-finite floats.
func MustRender(l Literal) string {
	s, err := Render(l)
	if err != nil {
		panic(err)
	}
	return s
}

// Escape doubles every single quote in s. The result is the body of a
// quoted string literal without the surrounding quotes.
func Escape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func renderFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("float %v has no literal form", f)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s, nil
}

// FromValue converts a native Go value into a Literal.
// Supports string, bool, every signed/unsigned integer type that fits
// int64, float32, float64, and Literal itself.
func FromValue(v any) (Literal, error) {
	switch val := v.(type) {
	case Literal:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", val)
		}
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", val)
		}
		return Int(val), nil
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case nil:
		return nil, fmt.Errorf("nil has no literal form")
	default:
		return nil, fmt.Errorf("unsupported literal type: %T", v)
	}
}

// ParseLiteral interprets command-line or config text as a literal.
// "true"/"false" become Bool, integer text becomes Int, text with a
// decimal point that parses as a float becomes Float, anything else is
// a String taken verbatim.
func ParseLiteral(s string) Literal {
	switch s {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(n)
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return Float(f)
		}
	}
	return String(s)
}

// Native returns the Go value carried by a literal, suitable for use as a
// database parameter or JSON encoding.
func Native(l Literal) any {
	switch v := l.(type) {
	case String:
		return string(v)
	case Int:
		return int64(v)
	case Float:
		return float64(v)
	case Bool:
		return bool(v)
	default:
		return nil
	}
}
