package queryir

import (
	"fmt"

	"github.com/roach88/selq/internal/ir"
)

// ValidationResult contains the lint analysis of a selection.
//
// Lint findings never make a selection invalid; the evaluators accept
// every well-formed tree. Warnings flag constructs that are legal but
// almost certainly not what the author meant.
type ValidationResult struct {
	// Clean is true when no warnings were produced.
	Clean bool

	// Warnings lists the findings in tree order.
	Warnings []string
}

// Validate lints a selection.
//
// Rules:
//  1. Relational operators (>, <, >=, <=) on boolean literals
//  2. IN lists mixing literal kinds (Int and Float count as one kind)
//  3. IN lists containing the same literal twice
//  4. The same field used twice in ORDER BY
//  5. The id field compared against a non-string literal
//
// Structural problems (empty IN list, empty field path, nil predicate)
// are reported too; the parser never produces them, but hand-built
// trees can.
//
// Validate is a pure function with no side effects.
func Validate(sel Selection) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validatePredicate(sel.Predicate)
	v.validateOrdering(sel.Order)

	return ValidationResult{
		Clean:    len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

// addWarning appends a warning message.
func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

// validatePredicate recursively validates a predicate node.
func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		v.addWarning("nil predicate - use true to match every record")
	case Comparison:
		v.validateComparison(pred)
	case *Comparison:
		v.validateComparison(*pred)
	case And:
		v.validatePredicate(pred.Left)
		v.validatePredicate(pred.Right)
	case *And:
		v.validatePredicate(pred.Left)
		v.validatePredicate(pred.Right)
	case Or:
		v.validatePredicate(pred.Left)
		v.validatePredicate(pred.Right)
	case *Or:
		v.validatePredicate(pred.Left)
		v.validatePredicate(pred.Right)
	case BoolLiteral, *BoolLiteral:
		// Always fine
	default:
		v.addWarning("Unknown predicate type: %T", p)
	}
}

func (v *validator) validateComparison(c Comparison) {
	if !c.Field.Valid() {
		v.addWarning("Comparison has an empty field path")
		return
	}
	field := c.Field.String()

	if c.Op == OpIn {
		v.validateInList(field, c.Values)
		return
	}

	if c.Value == nil {
		v.addWarning("Field '%s' compared to nothing", field)
		return
	}

	// Rule 1
	if c.Op.IsRelational() && c.Value.Kind() == ir.KindBool {
		v.addWarning("Field '%s' uses %s on a boolean - only = and != are meaningful", field, c.Op)
	}

	// Rule 5
	if field == ir.IDField && c.Value.Kind() != ir.KindString {
		v.addWarning("Field 'id' compared to %s literal - record ids are strings", c.Value.Kind())
	}
}

func (v *validator) validateInList(field string, values []ir.Literal) {
	if len(values) == 0 {
		v.addWarning("Field '%s' has an empty IN list - matches nothing", field)
		return
	}

	// Rule 2
	first := kindClass(values[0])
	for _, val := range values[1:] {
		if kindClass(val) != first {
			v.addWarning("Field '%s' IN list mixes %s and %s literals", field, values[0].Kind(), val.Kind())
			break
		}
	}

	// Rule 3
	for i := range values {
		for j := i + 1; j < len(values); j++ {
			if ir.Equal(values[i], values[j]) {
				v.addWarning("Field '%s' IN list repeats %s", field, renderOrPlaceholder(values[i]))
			}
		}
	}
}

// validateOrdering checks rule 4.
func (v *validator) validateOrdering(order Ordering) {
	seen := make(map[string]bool, len(order))
	for _, item := range order {
		if !item.Field.Valid() {
			v.addWarning("ORDER BY has an empty field path")
			continue
		}
		key := item.Field.String()
		if seen[key] {
			v.addWarning("ORDER BY lists '%s' more than once - later keys never apply", key)
		}
		seen[key] = true
	}
}

// kindClass groups Int and Float together for mixed-kind detection.
func kindClass(l ir.Literal) ir.Kind {
	if ir.IsNumeric(l) {
		return ir.KindInt
	}
	if l == nil {
		return 0
	}
	return l.Kind()
}
