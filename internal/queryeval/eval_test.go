package queryeval

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/selq/internal/ir"
	"github.com/roach88/selq/internal/queryir"
	"github.com/roach88/selq/internal/selection"
)

func album(id, name, artist string, year int, genre string, bpm float64) ir.Record {
	doc := map[string]any{
		"id":     id,
		"name":   name,
		"artist": artist,
		"year":   year,
		"metadata": map[string]any{
			"genre": genre,
			"bpm":   bpm,
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return ir.Record{Collection: "albums", ID: id, Data: data}
}

func albums() []ir.Record {
	return []ir.Record{
		album("a1", "Purple Rain", "Prince", 1984, "pop", 113.5),
		album("a2", "Sign o' the Times", "Prince", 1987, "funk", 96),
		album("a3", "Thriller", "Michael Jackson", 1982, "pop", 118),
		album("a4", "Nevermind", "Nirvana", 1991, "grunge", 117),
		album("a5", "Appetite for Destruction", "Guns N' Roses", 1987, "rock", 120.25),
	}
}

func ids(records []ir.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func mustParse(t *testing.T, q string) queryir.Selection {
	t.Helper()
	sel, err := selection.Parse(q)
	require.NoError(t, err)
	return sel
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{"true matches all in id order", "true", []string{"a1", "a2", "a3", "a4", "a5"}},
		{"false matches none", "false", []string{}},
		{"equality", "artist = 'Prince'", []string{"a1", "a2"}},
		{"escaped quote", "artist = 'Guns N'' Roses'", []string{"a5"}},
		{"range", "year >= 1984 AND year <= 1987", []string{"a1", "a2", "a5"}},
		{"nested field", "metadata.genre = 'pop'", []string{"a1", "a3"}},
		{"int literal against float field", "metadata.bpm = 96", []string{"a2"}},
		{"float literal against int field", "year < 1983.5", []string{"a3"}},
		{"in list", "metadata.genre IN ('rock', 'grunge')", []string{"a4", "a5"}},
		{"or", "year = 1982 OR artist = 'Nirvana'", []string{"a3", "a4"}},
		{"precedence", "artist = 'Prince' AND year = 1984 OR year = 1991", []string{"a1", "a4"}},
		{"not equal", "artist != 'Prince'", []string{"a3", "a4", "a5"}},
		{"missing field is false for !=", "label != 'x'", []string{}},
		{"kind mismatch is false", "year = '1984'", []string{}},
		{"kind mismatch is false for !=", "year != 'x'", []string{}},
		{"id is a field", "id = 'a3'", []string{"a3"}},
		{"order by year desc then id", "true ORDER BY year DESC", []string{"a4", "a2", "a5", "a1", "a3"}},
		{"multi-key ordering", "year > 1983 ORDER BY year DESC, name ASC", []string{"a4", "a5", "a2", "a1"}},
		{"order by nested float", "true ORDER BY metadata.bpm", []string{"a2", "a1", "a4", "a3", "a5"}},
		{"order by string", "true ORDER BY name", []string{"a5", "a4", "a1", "a2", "a3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(mustParse(t, tt.query), albums())
			assert.Equal(t, tt.expected, ids(got))
		})
	}
}

func TestMatch_Bool(t *testing.T) {
	doc := []byte(`{"id":"x","explicit":true,"live":false}`)

	assert.True(t, Match(mustParse(t, "explicit = true").Predicate, doc))
	assert.False(t, Match(mustParse(t, "explicit = false").Predicate, doc))
	assert.True(t, Match(mustParse(t, "live != true").Predicate, doc))
	assert.True(t, Match(mustParse(t, "live < true").Predicate, doc))
	assert.False(t, Match(mustParse(t, "explicit = 1").Predicate, doc))
}

func TestMatch_NullIsMissing(t *testing.T) {
	doc := []byte(`{"id":"x","label":null}`)

	assert.False(t, Match(mustParse(t, "label = 'x'").Predicate, doc))
	assert.False(t, Match(mustParse(t, "label != 'x'").Predicate, doc))
}

func TestMatch_NFC(t *testing.T) {
	// Decomposed e + combining acute in the document, composed in the query.
	doc := []byte("{\"id\":\"x\",\"name\":\"Cafe\u0301\"}")

	assert.True(t, Match(queryir.Compare("name", queryir.OpEq, ir.String("Caf\u00e9")), doc))
	assert.False(t, Match(queryir.Compare("name", queryir.OpGt, ir.String("Caf\u00e9")), doc))
}

func TestMatch_LargeIntegersStayExact(t *testing.T) {
	doc := []byte(`{"id":"x","n":9007199254740993}`)

	assert.True(t, Match(queryir.Compare("n", queryir.OpEq, ir.Int(9007199254740993)), doc))
	assert.False(t, Match(queryir.Compare("n", queryir.OpEq, ir.Int(9007199254740992)), doc))
}

func TestMatch_PointerNodes(t *testing.T) {
	doc := []byte(`{"id":"x","a":1,"b":2}`)
	pred := &queryir.Or{
		Left:  &queryir.Comparison{Field: queryir.Path("a"), Op: queryir.OpEq, Value: ir.Int(5)},
		Right: &queryir.And{Left: &queryir.BoolLiteral{Value: true}, Right: queryir.Compare("b", queryir.OpGt, ir.Int(1))},
	}

	assert.True(t, Match(pred, doc))
	assert.True(t, Match(nil, doc))
}

func TestResolve_EscapesPathSyntax(t *testing.T) {
	doc := []byte(`{"a":{"b":1},"a.b":2,"x*":3}`)

	assert.Equal(t, int64(1), Resolve(doc, queryir.FieldPath{"a", "b"}).Int)
	assert.Equal(t, int64(2), Resolve(doc, queryir.FieldPath{"a.b"}).Int)
	assert.Equal(t, int64(3), Resolve(doc, queryir.FieldPath{"x*"}).Int)
	assert.Equal(t, KindMissing, Resolve(doc, queryir.FieldPath{"nope"}).Kind)
}

func TestCompareValues_KindRank(t *testing.T) {
	ordered := []Value{
		{Kind: KindMissing},
		{Kind: KindBool, Bool: false},
		{Kind: KindBool, Bool: true},
		{Kind: KindNumber, Int: -3, IsInt: true},
		{Kind: KindNumber, Float: 2.5},
		{Kind: KindNumber, Int: 3, IsInt: true},
		{Kind: KindString, Str: "A"},
		{Kind: KindString, Str: "a"},
		{Kind: KindOther, Raw: `[1]`},
	}

	for i := 0; i+1 < len(ordered); i++ {
		assert.Equal(t, -1, CompareValues(ordered[i], ordered[i+1]), "index %d", i)
		assert.Equal(t, 1, CompareValues(ordered[i+1], ordered[i]), "index %d", i)
	}
	assert.Equal(t, 0, CompareValues(Value{Kind: KindNumber, Int: 2, IsInt: true}, Value{Kind: KindNumber, Float: 2}))
}

func TestSort_MissingFieldsFirst(t *testing.T) {
	records := []ir.Record{
		{ID: "b", Data: []byte(`{"id":"b","year":2000}`)},
		{ID: "a", Data: []byte(`{"id":"a"}`)},
		{ID: "c", Data: []byte(`{"id":"c","year":1990}`)},
	}

	Sort(mustParse(t, "true ORDER BY year").Order, records)
	assert.Equal(t, []string{"a", "c", "b"}, ids(records))

	Sort(mustParse(t, "true ORDER BY year DESC").Order, records)
	assert.Equal(t, []string{"b", "c", "a"}, ids(records))
}

func TestFilter_DoesNotModifyInput(t *testing.T) {
	in := albums()
	_ = Filter(mustParse(t, "true ORDER BY year DESC"), in)
	assert.Equal(t, []string{"a1", "a2", "a3", "a4", "a5"}, ids(in))
}
