package selection

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/selq/internal/interpolate"
	"github.com/roach88/selq/internal/ir"
	"github.com/roach88/selq/internal/queryir"
	"github.com/roach88/selq/internal/queryparse"
)

func TestCompile_Plain(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		expected queryir.Selection
	}{
		{
			name:   "escaped quotes",
			source: "name = 'Rock ''n'' Roll'",
			expected: queryir.Selection{
				Predicate: queryir.Compare("name", queryir.OpEq, ir.String("Rock 'n' Roll")),
			},
		},
		{
			name:   "AND binds tighter than OR",
			source: "a = 1 AND b = 2 OR c = 3",
			expected: queryir.Selection{
				Predicate: queryir.Or{
					Left: queryir.And{
						Left:  queryir.Compare("a", queryir.OpEq, ir.Int(1)),
						Right: queryir.Compare("b", queryir.OpEq, ir.Int(2)),
					},
					Right: queryir.Compare("c", queryir.OpEq, ir.Int(3)),
				},
			},
		},
		{
			name:   "ordering defaults to ascending",
			source: "true ORDER BY name",
			expected: queryir.Selection{
				Predicate: queryir.BoolLiteral{Value: true},
				Order:     queryir.Ordering{{Field: queryir.Path("name"), Direction: queryir.Asc}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compile(tt.source, ModePlain, Bindings{})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCompile_PlainIgnoresBindings(t *testing.T) {
	got, err := Compile("year > 1", ModePlain, Bindings{Values: []ir.Literal{ir.Int(9)}})
	require.NoError(t, err)
	assert.Equal(t, "year > 1", got.String())
}

func TestCompile_Positional(t *testing.T) {
	got, err := Compile("year >= {} AND year <= {}", ModeQuoted, Bindings{
		Values: []ir.Literal{ir.Int(1980), ir.Int(1990)},
	})
	require.NoError(t, err)

	expected := queryir.Selection{
		Predicate: queryir.And{
			Left:  queryir.Compare("year", queryir.OpGe, ir.Int(1980)),
			Right: queryir.Compare("year", queryir.OpLe, ir.Int(1990)),
		},
	}
	assert.Equal(t, expected, got)
}

func TestCompile_StructuralMatchesExplicit(t *testing.T) {
	named := map[string]ir.Literal{"artist": ir.String("Prince"), "year": ir.Int(1985)}

	sugar, err := Compile("{artist} AND {>year}", ModeStructural, Bindings{Named: named})
	require.NoError(t, err)

	explicit, err := Parse("artist = 'Prince' AND year > 1985")
	require.NoError(t, err)

	assert.Equal(t, explicit, sugar)
}

func TestCompile_StructuralPrecedenceFollowsExpandedText(t *testing.T) {
	named := map[string]ir.Literal{"a": ir.Int(1), "b": ir.Int(2), "c": ir.Int(3)}

	got, err := Compile("{a} OR {b} AND {>c}", ModeStructural, Bindings{Named: named})
	require.NoError(t, err)
	assert.Equal(t, "(a = 1 OR (b = 2 AND c > 3))", got.String())
}

func TestCompile_StructuralSignedValue(t *testing.T) {
	named := map[string]ir.Literal{"year": ir.Int(5)}

	got, err := Compile("year > -{year}", ModeStructural, Bindings{Named: named})
	require.NoError(t, err)
	assert.Equal(t, queryir.Compare("year", queryir.OpGt, ir.Int(-5)), got.Predicate)
}

func TestCompile_InvalidUTF8StringIsLexError(t *testing.T) {
	_, err := Compile("name = 'caf\xff'", ModePlain, Bindings{})
	require.Error(t, err)
	assert.True(t, IsLexError(err))
}

func TestCompile_LiteralRoundTrip(t *testing.T) {
	literals := []ir.Literal{
		ir.String(""),
		ir.String("it's"),
		ir.String("''"),
		ir.String("x' OR true OR 'y"),
		ir.String("café"),
		ir.Int(0),
		ir.Int(-42),
		ir.Int(math.MaxInt64),
		ir.Int(math.MinInt64),
		ir.Float(0.1),
		ir.Float(-3.25),
		ir.Float(100),
		ir.Float(1e21),
		ir.Bool(true),
		ir.Bool(false),
	}

	for _, lit := range literals {
		t.Run(ir.MustRender(lit), func(t *testing.T) {
			got, err := Compile("v = {}", ModeQuoted, Bindings{Values: []ir.Literal{lit}})
			require.NoError(t, err)

			cmp, ok := got.Predicate.(queryir.Comparison)
			require.True(t, ok, "want Comparison, got %T", got.Predicate)
			assert.Equal(t, lit, cmp.Value)
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		mode   Mode
		b      Bindings
		check  func(error) bool
	}{
		{"missing right-hand literal", "year >", ModePlain, Bindings{}, IsParseError},
		{"empty IN list", "year IN ()", ModePlain, Bindings{}, IsParseError},
		{"trailing comma in IN list", "year IN (1,)", ModePlain, Bindings{}, IsParseError},
		{"unterminated string", "name = 'abc", ModePlain, Bindings{}, IsLexError},
		{"one placeholder zero values", "year > {}", ModeQuoted, Bindings{}, IsInterpolationError},
		{"unbound structural name", "{artist}", ModeStructural, Bindings{}, IsInterpolationError},
		{"bad structural operator", "{=year}", ModeStructural, Bindings{Named: map[string]ir.Literal{"year": ir.Int(1)}}, IsInterpolationError},
		{"expanded text still has to parse", "year > {} {}", ModeQuoted, Bindings{Values: []ir.Literal{ir.Int(1), ir.Int(2)}}, IsParseError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compile(tt.source, tt.mode, tt.b)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error type: %v", err)
			assert.Nil(t, got.Predicate, "failure must not leave a partial predicate")

			var qe *QueryError
			require.True(t, errors.As(err, &qe))
			assert.Equal(t, tt.source, qe.Template)
			assert.Equal(t, tt.mode, qe.Mode)
		})
	}
}

func TestQueryError_Context(t *testing.T) {
	_, err := Compile("year > {} AND", ModeQuoted, Bindings{Values: []ir.Literal{ir.Int(5)}})
	require.Error(t, err)

	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "year > 5 AND", qe.Source)
	assert.Equal(t, 12, qe.Offset())

	var parseErr *queryparse.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, queryparse.EOF, parseErr.Found.Type)

	_, err = Compile("{artist}", ModeStructural, Bindings{})
	require.True(t, errors.As(err, &qe))
	assert.Empty(t, qe.Source)
	assert.Equal(t, 0, qe.Offset())

	var interpErr *interpolate.InterpolationError
	require.True(t, errors.As(err, &interpErr))
	assert.Equal(t, "artist", interpErr.Name)
}

func TestCompile_DetachedFromBindings(t *testing.T) {
	values := []ir.Literal{ir.Int(1), ir.Int(2)}
	got, err := Compile("year IN ({}, {})", ModeQuoted, Bindings{Values: values})
	require.NoError(t, err)

	values[0] = ir.Int(99)

	cmp := got.Predicate.(queryir.Comparison)
	assert.Equal(t, []ir.Literal{ir.Int(1), ir.Int(2)}, cmp.Values)
}

func TestFormatAndSugar(t *testing.T) {
	formatted, err := Format("year >= {} AND artist = {}", 1980, "Prince")
	require.NoError(t, err)
	assert.Equal(t, "(year >= 1980 AND artist = 'Prince')", formatted.String())

	sugared, err := Sugar("{artist} AND {<=bpm}", map[string]any{"artist": "Prince", "bpm": 120.5})
	require.NoError(t, err)
	assert.Equal(t, "(artist = 'Prince' AND bpm <= 120.5)", sugared.String())

	_, err = Format("x = {}", struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "argument 0")
}

func TestParseMode(t *testing.T) {
	for _, name := range []string{"plain", "quoted", "structural"} {
		mode, err := ParseMode(name)
		require.NoError(t, err)
		assert.Equal(t, name, mode.String())
	}

	mode, err := ParseMode("QUOTED")
	require.NoError(t, err)
	assert.Equal(t, ModeQuoted, mode)

	_, err = ParseMode("sql")
	require.Error(t, err)
}

func TestCompile_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sel, err := Format("year = {}", n)
			assert.NoError(t, err)
			assert.Equal(t, queryir.Compare("year", queryir.OpEq, ir.Int(int64(n))), sel.Predicate)
		}(i)
	}
	wg.Wait()
}
