package querysql

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/selq/internal/ir"
	"github.com/roach88/selq/internal/queryir"
)

// Dialect selects the SQL flavor the compiler emits.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite"
	case Postgres:
		return "postgres"
	default:
		return fmt.Sprintf("Dialect(%d)", int(d))
	}
}

// ParseDialect maps "sqlite" or "postgres" to a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	default:
		return SQLite, fmt.Errorf("unknown SQL dialect %q (want sqlite or postgres)", s)
	}
}

func (d Dialect) placeholders() sq.PlaceholderFormat {
	if d == Postgres {
		return sq.Dollar
	}
	return sq.Question
}

// pathArg is the bind parameter that addresses a field path.
// SQLite takes a JSON path string; PostgreSQL takes a text[] of keys.
func (d Dialect) pathArg(p queryir.FieldPath) any {
	if d == Postgres {
		return []string(p)
	}
	var sb strings.Builder
	sb.WriteByte('$')
	for _, seg := range p {
		sb.WriteString(`."`)
		sb.WriteString(seg)
		sb.WriteByte('"')
	}
	return sb.String()
}

// comparison renders one guarded comparison. The kind guard keeps missing
// fields and kind mismatches false for every operator.
func (d Dialect) comparison(p queryir.FieldPath, op queryir.Operator, lit ir.Literal) (sq.Sqlizer, error) {
	sqlOp, err := operatorSQL(op)
	if err != nil {
		return nil, err
	}
	path := d.pathArg(p)

	if d == Postgres {
		var typ, value string
		switch lit.(type) {
		case ir.String:
			typ, value = "string", `(data #>> ?::text[]) COLLATE "C"`
		case ir.Int, ir.Float:
			typ, value = "number", "(data #>> ?::text[])::numeric"
		case ir.Bool:
			typ, value = "boolean", "(data #>> ?::text[])::boolean"
		default:
			return nil, fmt.Errorf("unsupported literal type: %T", lit)
		}
		expr := fmt.Sprintf("CASE WHEN jsonb_typeof(data #> ?::text[]) = '%s' THEN %s %s ? ELSE false END", typ, value, sqlOp)
		return sq.Expr(expr, path, path, param(lit, d)), nil
	}

	var guard string
	switch lit.(type) {
	case ir.String:
		guard = "json_type(data, ?) = 'text'"
	case ir.Int, ir.Float:
		guard = "json_type(data, ?) IN ('integer', 'real')"
	case ir.Bool:
		guard = "json_type(data, ?) IN ('true', 'false')"
	default:
		return nil, fmt.Errorf("unsupported literal type: %T", lit)
	}
	expr := fmt.Sprintf("(%s AND json_extract(data, ?) %s ?)", guard, sqlOp)
	return sq.Expr(expr, path, path, param(lit, d)), nil
}

// orderTerms renders one ORDER BY key. Kinds rank missing < boolean <
// number < string < other, then values compare within a kind.
func (d Dialect) orderTerms(item queryir.OrderItem) []sq.Sqlizer {
	dir := "ASC"
	if item.Direction == queryir.Desc {
		dir = "DESC"
	}
	path := d.pathArg(item.Field)

	if d == Postgres {
		return []sq.Sqlizer{
			sq.Expr("CASE COALESCE(jsonb_typeof(data #> ?::text[]), 'null') WHEN 'null' THEN 0 WHEN 'boolean' THEN 1 WHEN 'number' THEN 2 WHEN 'string' THEN 3 ELSE 4 END "+dir, path),
			sq.Expr("CASE WHEN jsonb_typeof(data #> ?::text[]) = 'number' THEN (data #>> ?::text[])::numeric END "+dir, path, path),
			sq.Expr(`(CASE WHEN jsonb_typeof(data #> ?::text[]) <> 'number' THEN data #>> ?::text[] END) COLLATE "C" `+dir, path, path),
		}
	}
	return []sq.Sqlizer{
		sq.Expr("CASE COALESCE(json_type(data, ?), 'null') WHEN 'null' THEN 0 WHEN 'true' THEN 1 WHEN 'false' THEN 1 WHEN 'integer' THEN 2 WHEN 'real' THEN 2 WHEN 'text' THEN 3 ELSE 4 END "+dir, path),
		sq.Expr("json_extract(data, ?) "+dir, path),
	}
}

// tiebreak is the final ORDER BY key on every query.
func (d Dialect) tiebreak() string {
	if d == Postgres {
		return `id COLLATE "C" ASC`
	}
	return "id COLLATE BINARY ASC"
}

func operatorSQL(op queryir.Operator) (string, error) {
	switch op {
	case queryir.OpEq, queryir.OpNe, queryir.OpGt, queryir.OpLt, queryir.OpGe, queryir.OpLe:
		return string(op), nil
	default:
		return "", fmt.Errorf("operator %q has no scalar SQL form", op)
	}
}

// param converts a literal into a bind parameter. Strings are NFC
// normalized to match stored documents. SQLite stores JSON booleans as
// integers.
func param(lit ir.Literal, d Dialect) any {
	switch v := lit.(type) {
	case ir.String:
		return norm.NFC.String(string(v))
	case ir.Bool:
		if d == SQLite {
			if v {
				return int64(1)
			}
			return int64(0)
		}
		return bool(v)
	default:
		return ir.Native(lit)
	}
}
