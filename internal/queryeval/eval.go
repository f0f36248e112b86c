package queryeval

import (
	"sort"

	"github.com/roach88/selq/internal/ir"
	"github.com/roach88/selq/internal/queryir"
)

// Match reports whether doc satisfies pred. A nil predicate matches
// everything.
func Match(pred queryir.Predicate, doc []byte) bool {
	switch p := pred.(type) {
	case nil:
		return true
	case queryir.BoolLiteral:
		return p.Value
	case *queryir.BoolLiteral:
		return p.Value
	case queryir.And:
		return Match(p.Left, doc) && Match(p.Right, doc)
	case *queryir.And:
		return Match(p.Left, doc) && Match(p.Right, doc)
	case queryir.Or:
		return Match(p.Left, doc) || Match(p.Right, doc)
	case *queryir.Or:
		return Match(p.Left, doc) || Match(p.Right, doc)
	case queryir.Comparison:
		return matchComparison(p, doc)
	case *queryir.Comparison:
		return matchComparison(*p, doc)
	default:
		return false
	}
}

func matchComparison(c queryir.Comparison, doc []byte) bool {
	field := Resolve(doc, c.Field)
	if field.Kind == KindMissing {
		return false
	}

	if c.Op == queryir.OpIn {
		for _, lit := range c.Values {
			if cmp, ok := compareSameKind(field, FromLiteral(lit)); ok && cmp == 0 {
				return true
			}
		}
		return false
	}

	cmp, ok := compareSameKind(field, FromLiteral(c.Value))
	if !ok {
		return false
	}
	return applyOperator(c.Op, cmp)
}

func applyOperator(op queryir.Operator, cmp int) bool {
	switch op {
	case queryir.OpEq:
		return cmp == 0
	case queryir.OpNe:
		return cmp != 0
	case queryir.OpGt:
		return cmp > 0
	case queryir.OpLt:
		return cmp < 0
	case queryir.OpGe:
		return cmp >= 0
	case queryir.OpLe:
		return cmp <= 0
	default:
		return false
	}
}

// CompareRecords orders two records by the ordering keys, then by id.
func CompareRecords(order queryir.Ordering, a, b ir.Record) int {
	for _, item := range order {
		cmp := CompareValues(Resolve(a.Data, item.Field), Resolve(b.Data, item.Field))
		if item.Direction == queryir.Desc {
			cmp = -cmp
		}
		if cmp != 0 {
			return cmp
		}
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	default:
		return 0
	}
}

// Sort orders records in place.
func Sort(order queryir.Ordering, records []ir.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return CompareRecords(order, records[i], records[j]) < 0
	})
}

// Filter returns the records matching sel, ordered by its ordering clause.
// The input slice is not modified.
func Filter(sel queryir.Selection, records []ir.Record) []ir.Record {
	out := make([]ir.Record, 0, len(records))
	for _, rec := range records {
		if Match(sel.Predicate, rec.Data) {
			out = append(out, rec)
		}
	}
	Sort(sel.Order, out)
	return out
}
