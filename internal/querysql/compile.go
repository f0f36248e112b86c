package querysql

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/selq/internal/queryir"
)

// DefaultTable is the records table both SQL stores create.
const DefaultTable = "records"

// SQLCompiler compiles selections to parameterized SQL over a records
// table with columns (collection, id, data).
//
// Every query ends its ORDER BY with the id tiebreaker, so results are
// deterministic. Values are always bound, never spliced into the SQL.
type SQLCompiler struct {
	Dialect Dialect
	Table   string
}

// NewSQLCompiler creates a compiler for the given dialect.
func NewSQLCompiler(d Dialect) *SQLCompiler {
	return &SQLCompiler{Dialect: d, Table: DefaultTable}
}

// Compile builds SELECT id, data, seq for the records of one collection that
// match sel, in sel's order. Returns (sql, params, error).
func (c *SQLCompiler) Compile(collection string, sel queryir.Selection) (string, []any, error) {
	where, err := c.Predicate(sel.Predicate)
	if err != nil {
		return "", nil, fmt.Errorf("compile predicate: %w", err)
	}

	q := sq.Select("id", "data", "seq").
		From(c.table()).
		Where(sq.Eq{"collection": collection}).
		Where(where).
		PlaceholderFormat(c.Dialect.placeholders())

	for _, item := range sel.Order {
		if !item.Field.Valid() {
			return "", nil, fmt.Errorf("invalid ORDER BY path %q", item.Field.String())
		}
		for _, term := range c.Dialect.orderTerms(item) {
			q = q.OrderByClause(term)
		}
	}
	q = q.OrderBy(c.Dialect.tiebreak())

	return q.ToSql()
}

// Where renders only the predicate, with the dialect's placeholders.
func (c *SQLCompiler) Where(pred queryir.Predicate) (string, []any, error) {
	s, err := c.Predicate(pred)
	if err != nil {
		return "", nil, err
	}
	sql, args, err := s.ToSql()
	if err != nil {
		return "", nil, err
	}
	sql, err = c.Dialect.placeholders().ReplacePlaceholders(sql)
	if err != nil {
		return "", nil, err
	}
	return sql, args, nil
}

// Predicate converts a predicate tree into a squirrel condition. A nil
// predicate is always true.
func (c *SQLCompiler) Predicate(p queryir.Predicate) (sq.Sqlizer, error) {
	switch pred := p.(type) {
	case nil:
		return sq.Expr("1 = 1"), nil
	case queryir.BoolLiteral:
		return boolSQL(pred.Value), nil
	case *queryir.BoolLiteral:
		return boolSQL(pred.Value), nil
	case queryir.And:
		return c.binary(pred.Left, pred.Right, true)
	case *queryir.And:
		return c.binary(pred.Left, pred.Right, true)
	case queryir.Or:
		return c.binary(pred.Left, pred.Right, false)
	case *queryir.Or:
		return c.binary(pred.Left, pred.Right, false)
	case queryir.Comparison:
		return c.comparison(pred)
	case *queryir.Comparison:
		return c.comparison(*pred)
	default:
		return nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) binary(left, right queryir.Predicate, and bool) (sq.Sqlizer, error) {
	l, err := c.Predicate(left)
	if err != nil {
		return nil, err
	}
	r, err := c.Predicate(right)
	if err != nil {
		return nil, err
	}
	if and {
		return sq.And{l, r}, nil
	}
	return sq.Or{l, r}, nil
}

func (c *SQLCompiler) comparison(cmp queryir.Comparison) (sq.Sqlizer, error) {
	if !cmp.Field.Valid() {
		return nil, fmt.Errorf("invalid field path %q", cmp.Field.String())
	}

	if cmp.Op != queryir.OpIn {
		if cmp.Value == nil {
			return nil, fmt.Errorf("comparison on %s has no value", cmp.Field.String())
		}
		return c.Dialect.comparison(cmp.Field, cmp.Op, cmp.Value)
	}

	if len(cmp.Values) == 0 {
		return nil, fmt.Errorf("IN on %s has an empty list", cmp.Field.String())
	}
	// Each element carries its own kind guard, so mixed lists stay exact.
	or := make(sq.Or, 0, len(cmp.Values))
	for _, lit := range cmp.Values {
		s, err := c.Dialect.comparison(cmp.Field, queryir.OpEq, lit)
		if err != nil {
			return nil, err
		}
		or = append(or, s)
	}
	return or, nil
}

func (c *SQLCompiler) table() string {
	if c.Table == "" {
		return DefaultTable
	}
	return c.Table
}

func boolSQL(v bool) sq.Sqlizer {
	if v {
		return sq.Expr("1 = 1")
	}
	return sq.Expr("1 = 0")
}
