package queryir

import (
	"strings"

	"github.com/roach88/selq/internal/ir"
)

// Predicate represents a filter condition over the records of a collection.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in the evaluators (queryeval, querysql).
//
// Predicate types:
//   - Comparison: field <op> literal, or field IN (literal, ...)
//   - And: both sides must be true
//   - Or: either side must be true
//   - BoolLiteral: true (every record) or false (no record)
//
// Trees are immutable once built. Parsers and rewriters construct new
// nodes; nothing in this module mutates a node after construction.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
	String() string
}

// FieldPath is a dotted sequence of identifiers naming a possibly nested
// record field, e.g. metadata.genre. A valid path has at least one segment
// and no empty segments.
//
// Resolution against the actual record shape belongs to the evaluator.
type FieldPath []string

// Path splits a dotted string into a FieldPath. It does not validate;
// use FieldPath.Valid when the input is untrusted.
func Path(dotted string) FieldPath {
	return FieldPath(strings.Split(dotted, "."))
}

// String joins the segments with dots.
func (p FieldPath) String() string {
	return strings.Join(p, ".")
}

// Valid reports whether the path has at least one segment and none are empty.
func (p FieldPath) Valid() bool {
	if len(p) == 0 {
		return false
	}
	for _, seg := range p {
		if seg == "" {
			return false
		}
	}
	return true
}

// Equal reports whether two paths name the same field.
func (p FieldPath) Equal(other FieldPath) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Operator is a comparison operator.
type Operator string

const (
	OpEq Operator = "="
	OpNe Operator = "!="
	OpGt Operator = ">"
	OpLt Operator = "<"
	OpGe Operator = ">="
	OpLe Operator = "<="
	OpIn Operator = "IN"
)

// IsRelational reports whether the operator orders its operands.
func (o Operator) IsRelational() bool {
	switch o {
	case OpGt, OpLt, OpGe, OpLe:
		return true
	default:
		return false
	}
}

// Comparison tests one field against a literal.
//
// Semantics:
//
//	<field> <op> <value>
//	<field> IN (<values[0]>, <values[1]>, ...)
//
// For every operator except OpIn, Value holds the right-hand literal and
// Values is nil. For OpIn, Values holds a non-empty list and Value is nil.
//
// Example:
//
//	Comparison{Field: Path("year"), Op: OpGt, Value: ir.Int(1985)}
//
// The parser performs no field-existence or type checks; a comparison
// against a field a record lacks is simply false at evaluation time.
type Comparison struct {
	Field  FieldPath
	Op     Operator
	Value  ir.Literal   // Right-hand side for scalar operators
	Values []ir.Literal // Right-hand side for OpIn (non-empty)
}

func (Comparison) predicateNode() {}

func (c Comparison) String() string {
	if c.Op == OpIn {
		parts := make([]string, len(c.Values))
		for i, v := range c.Values {
			parts[i] = renderOrPlaceholder(v)
		}
		return c.Field.String() + " IN (" + strings.Join(parts, ", ") + ")"
	}
	return c.Field.String() + " " + string(c.Op) + " " + renderOrPlaceholder(c.Value)
}

// And is a binary conjunction. AND binds tighter than OR.
type And struct {
	Left  Predicate
	Right Predicate
}

func (And) predicateNode() {}

func (a And) String() string {
	return "(" + a.Left.String() + " AND " + a.Right.String() + ")"
}

// Or is a binary disjunction.
type Or struct {
	Left  Predicate
	Right Predicate
}

func (Or) predicateNode() {}

func (o Or) String() string {
	return "(" + o.Left.String() + " OR " + o.Right.String() + ")"
}

// BoolLiteral is a bare true/false predicate: true matches every record,
// false matches none. "true ORDER BY name" is how an ordering-only query
// is written.
type BoolLiteral struct {
	Value bool
}

func (BoolLiteral) predicateNode() {}

func (b BoolLiteral) String() string {
	if b.Value {
		return "true"
	}
	return "false"
}

// Direction is the sort direction of an ordering key.
type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "DESC"
	}
	return "ASC"
}

// OrderItem is a single ordering key.
type OrderItem struct {
	Field     FieldPath
	Direction Direction
}

// Ordering is the ordered list of sort keys from an ORDER BY clause.
// A nil Ordering means the query had no ORDER BY.
type Ordering []OrderItem

func (o Ordering) String() string {
	parts := make([]string, len(o))
	for i, item := range o {
		parts[i] = item.Field.String() + " " + item.Direction.String()
	}
	return strings.Join(parts, ", ")
}

// Selection is a compiled query: a predicate plus an optional ordering.
type Selection struct {
	Predicate Predicate
	Order     Ordering // nil when the query had no ORDER BY
}

// String renders the selection as re-parseable query text. Binary nodes
// are fully parenthesized so the text parses back to an identical tree.
func (s Selection) String() string {
	pred := "true"
	if s.Predicate != nil {
		pred = s.Predicate.String()
	}
	if len(s.Order) == 0 {
		return pred
	}
	return pred + " ORDER BY " + s.Order.String()
}

// HasOrder reports whether the selection carries an ORDER BY clause.
func (s Selection) HasOrder() bool {
	return s.Order != nil
}

// Clone returns a deep copy of the selection. Literals are values, so
// copying slices and paths is enough to detach the copy entirely.
func (s Selection) Clone() Selection {
	out := Selection{Predicate: ClonePredicate(s.Predicate)}
	if s.Order != nil {
		out.Order = make(Ordering, len(s.Order))
		for i, item := range s.Order {
			out.Order[i] = OrderItem{Field: clonePath(item.Field), Direction: item.Direction}
		}
	}
	return out
}

// ClonePredicate deep-copies a predicate tree. Pointer nodes come back as
// values.
func ClonePredicate(p Predicate) Predicate {
	switch pred := p.(type) {
	case nil:
		return nil
	case Comparison:
		return cloneComparison(pred)
	case *Comparison:
		return cloneComparison(*pred)
	case And:
		return And{Left: ClonePredicate(pred.Left), Right: ClonePredicate(pred.Right)}
	case *And:
		return And{Left: ClonePredicate(pred.Left), Right: ClonePredicate(pred.Right)}
	case Or:
		return Or{Left: ClonePredicate(pred.Left), Right: ClonePredicate(pred.Right)}
	case *Or:
		return Or{Left: ClonePredicate(pred.Left), Right: ClonePredicate(pred.Right)}
	case BoolLiteral:
		return pred
	case *BoolLiteral:
		return *pred
	default:
		return p
	}
}

func cloneComparison(c Comparison) Comparison {
	out := Comparison{Field: clonePath(c.Field), Op: c.Op, Value: c.Value}
	if c.Values != nil {
		out.Values = append([]ir.Literal(nil), c.Values...)
	}
	return out
}

func clonePath(p FieldPath) FieldPath {
	if p == nil {
		return nil
	}
	return append(FieldPath(nil), p...)
}

// renderOrPlaceholder renders a literal for String output. Unrenderable
// floats only arise from hand-built trees and print as a marker.
func renderOrPlaceholder(l ir.Literal) string {
	s, err := ir.Render(l)
	if err != nil {
		return "<invalid>"
	}
	return s
}

// Compare builds a scalar comparison on a dotted path.
func Compare(path string, op Operator, value ir.Literal) Comparison {
	return Comparison{Field: Path(path), Op: op, Value: value}
}

// In builds an IN comparison on a dotted path.
func In(path string, values ...ir.Literal) Comparison {
	return Comparison{Field: Path(path), Op: OpIn, Values: values}
}

// NewAnd folds predicates into a left-associative And chain.
// A single predicate is returned unchanged; none yields BoolLiteral{true}.
func NewAnd(preds ...Predicate) Predicate {
	return fold(preds, true, func(l, r Predicate) Predicate { return And{Left: l, Right: r} })
}

// NewOr folds predicates into a left-associative Or chain.
// A single predicate is returned unchanged; none yields BoolLiteral{false}.
func NewOr(preds ...Predicate) Predicate {
	return fold(preds, false, func(l, r Predicate) Predicate { return Or{Left: l, Right: r} })
}

func fold(preds []Predicate, empty bool, join func(l, r Predicate) Predicate) Predicate {
	if len(preds) == 0 {
		return BoolLiteral{Value: empty}
	}
	acc := preds[0]
	for _, p := range preds[1:] {
		acc = join(acc, p)
	}
	return acc
}
