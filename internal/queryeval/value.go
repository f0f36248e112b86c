package queryeval

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/selq/internal/ir"
	"github.com/roach88/selq/internal/queryir"
)

// ValueKind classifies a resolved field. The order of the constants is the
// cross-kind sort order.
type ValueKind int

const (
	KindMissing ValueKind = iota // absent or JSON null
	KindBool
	KindNumber
	KindString
	KindOther // object or array
)

func (k ValueKind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindOther:
		return "json"
	default:
		return "unknown"
	}
}

// Value is a field resolved from a record document.
type Value struct {
	Kind  ValueKind
	Str   string
	Bool  bool
	Int   int64
	Float float64
	IsInt bool   // Number held exactly in Int
	Raw   string // Raw JSON text for KindOther
}

// Resolve looks up a field path in a JSON document.
func Resolve(doc []byte, path queryir.FieldPath) Value {
	if len(path) == 0 {
		return Value{Kind: KindMissing}
	}
	return fromResult(gjson.GetBytes(doc, gjsonPath(path)))
}

func fromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.True:
		return Value{Kind: KindBool, Bool: true}
	case gjson.False:
		return Value{Kind: KindBool, Bool: false}
	case gjson.String:
		return Value{Kind: KindString, Str: r.Str}
	case gjson.Number:
		if !strings.ContainsAny(r.Raw, ".eE") {
			if n, err := strconv.ParseInt(r.Raw, 10, 64); err == nil {
				return Value{Kind: KindNumber, Int: n, IsInt: true}
			}
		}
		return Value{Kind: KindNumber, Float: r.Num}
	case gjson.JSON:
		return Value{Kind: KindOther, Raw: r.Raw}
	default:
		return Value{Kind: KindMissing}
	}
}

// FromLiteral lifts a query literal into the resolved-value domain.
func FromLiteral(l ir.Literal) Value {
	switch v := l.(type) {
	case ir.String:
		return Value{Kind: KindString, Str: string(v)}
	case ir.Int:
		return Value{Kind: KindNumber, Int: int64(v), IsInt: true}
	case ir.Float:
		return Value{Kind: KindNumber, Float: float64(v)}
	case ir.Bool:
		return Value{Kind: KindBool, Bool: bool(v)}
	default:
		return Value{Kind: KindMissing}
	}
}

// gjsonPath joins path segments with gjson's separator, escaping every
// character gjson would read as path syntax.
func gjsonPath(path queryir.FieldPath) string {
	var sb strings.Builder
	for i, seg := range path {
		if i > 0 {
			sb.WriteByte('.')
		}
		for j := 0; j < len(seg); j++ {
			c := seg[j]
			if !isPlainPathByte(c) {
				sb.WriteByte('\\')
			}
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func isPlainPathByte(c byte) bool {
	return c == '_' || c == '-' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') || c >= 0x80
}

// compareSameKind orders two values of one kind. ok is false when the
// kinds differ or either side is missing.
func compareSameKind(a, b Value) (cmp int, ok bool) {
	if a.Kind != b.Kind || a.Kind == KindMissing {
		return 0, false
	}
	switch a.Kind {
	case KindBool:
		return compareBool(a.Bool, b.Bool), true
	case KindNumber:
		return compareNumber(a, b), true
	case KindString:
		return strings.Compare(norm.NFC.String(a.Str), norm.NFC.String(b.Str)), true
	default:
		return strings.Compare(a.Raw, b.Raw), true
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func compareNumber(a, b Value) int {
	if a.IsInt && b.IsInt {
		switch {
		case a.Int < b.Int:
			return -1
		case a.Int > b.Int:
			return 1
		default:
			return 0
		}
	}
	af, bf := a.number(), b.number()
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}

func (v Value) number() float64 {
	if v.IsInt {
		return float64(v.Int)
	}
	return v.Float
}

// CompareValues is the total order used for ORDER BY keys.
func CompareValues(a, b Value) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	if a.Kind == KindMissing {
		return 0
	}
	cmp, _ := compareSameKind(a, b)
	return cmp
}
