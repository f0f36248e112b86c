package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiteralSealed(t *testing.T) {
	var _ Literal = String("test")
	var _ Literal = Int(42)
	var _ Literal = Float(1.5)
	var _ Literal = Bool(true)
}

func TestLiteralKind(t *testing.T) {
	assert.Equal(t, KindString, NewString("a").Kind())
	assert.Equal(t, KindInt, NewInt(1).Kind())
	assert.Equal(t, KindFloat, NewFloat(1).Kind())
	assert.Equal(t, KindBool, NewBool(true).Kind())
	assert.Equal(t, "integer", KindInt.String())
}

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		input    Literal
		expected string
	}{
		{"plain string", String("Prince"), "'Prince'"},
		{"empty string", String(""), "''"},
		{"embedded quote", String("Rock 'n' Roll"), "'Rock ''n'' Roll'"},
		{"only quotes", String("''"), "''''''"},
		{"keyword text stays quoted", String("x' OR true OR 'y"), "'x'' OR true OR ''y'"},
		{"int", Int(1985), "1985"},
		{"negative int", Int(-42), "-42"},
		{"min int64", Int(math.MinInt64), "-9223372036854775808"},
		{"float", Float(1.5), "1.5"},
		{"whole float keeps point", Float(120), "120.0"},
		{"negative float", Float(-0.25), "-0.25"},
		{"true", Bool(true), "true"},
		{"false", Bool(false), "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRender_NonFiniteFloat(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := Render(Float(f))
		require.Error(t, err)
	}

	_, err := Render(nil)
	require.Error(t, err)
}

func TestMustRender_Panics(t *testing.T) {
	assert.Panics(t, func() { MustRender(Float(math.NaN())) })
	assert.Equal(t, "7", MustRender(Int(7)))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(String("a"), String("a")))
	assert.False(t, Equal(String("a"), String("b")))
	assert.False(t, Equal(Int(1), Float(1)), "kinds differ")
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(Int(1), nil))
}

func TestFromValue(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected Literal
	}{
		{"string", "Prince", String("Prince")},
		{"int", 1985, Int(1985)},
		{"int32", int32(-3), Int(-3)},
		{"uint16", uint16(9), Int(9)},
		{"float64", 2.5, Float(2.5)},
		{"float32", float32(0.5), Float(0.5)},
		{"bool", true, Bool(true)},
		{"literal passthrough", Int(7), Int(7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromValue(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFromValue_Rejects(t *testing.T) {
	for _, v := range []any{nil, []int{1}, map[string]any{}, uint64(math.MaxUint64)} {
		_, err := FromValue(v)
		assert.Error(t, err, "%T should be rejected", v)
	}
}

func TestParseLiteral(t *testing.T) {
	assert.Equal(t, Bool(true), ParseLiteral("true"))
	assert.Equal(t, Bool(false), ParseLiteral("false"))
	assert.Equal(t, Int(1985), ParseLiteral("1985"))
	assert.Equal(t, Int(-4), ParseLiteral("-4"))
	assert.Equal(t, Float(99.5), ParseLiteral("99.5"))
	assert.Equal(t, String("Prince"), ParseLiteral("Prince"))
	assert.Equal(t, String("1.2.3"), ParseLiteral("1.2.3"))
	assert.Equal(t, String("True"), ParseLiteral("True"), "only lowercase booleans")
}

func TestNative(t *testing.T) {
	assert.Equal(t, "a", Native(String("a")))
	assert.Equal(t, int64(3), Native(Int(3)))
	assert.Equal(t, 0.5, Native(Float(0.5)))
	assert.Equal(t, true, Native(Bool(true)))
	assert.Nil(t, Native(nil))
}
