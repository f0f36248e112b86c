package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/selq/internal/ir"
	"github.com/roach88/selq/internal/selection"
)

func TestBindingOptions_Resolve(t *testing.T) {
	tests := []struct {
		name     string
		opts     BindingOptions
		mode     selection.Mode
		bindings selection.Bindings
	}{
		{
			name: "no bindings is plain",
			opts: BindingOptions{},
			mode: selection.ModePlain,
		},
		{
			name:     "args select quoted",
			opts:     BindingOptions{Args: []string{"1980", "Prince", "true", "2.5"}},
			mode:     selection.ModeQuoted,
			bindings: selection.Bindings{Values: []ir.Literal{ir.Int(1980), ir.String("Prince"), ir.Bool(true), ir.Float(2.5)}},
		},
		{
			name: "set alone selects structural",
			opts: BindingOptions{Set: []string{"artist=Prince", "year=1985"}},
			mode: selection.ModeStructural,
			bindings: selection.Bindings{Named: map[string]ir.Literal{
				"artist": ir.String("Prince"),
				"year":   ir.Int(1985),
			}},
		},
		{
			name:     "value keeps later equals signs",
			opts:     BindingOptions{Mode: "quoted", Set: []string{"expr=a=b"}},
			mode:     selection.ModeQuoted,
			bindings: selection.Bindings{Named: map[string]ir.Literal{"expr": ir.String("a=b")}},
		},
		{
			name:     "explicit mode wins",
			opts:     BindingOptions{Mode: "STRUCTURAL", Args: []string{"1"}},
			mode:     selection.ModeStructural,
			bindings: selection.Bindings{Values: []ir.Literal{ir.Int(1)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, bindings, err := tt.opts.Resolve()
			require.NoError(t, err)
			assert.Equal(t, tt.mode, mode)
			assert.Equal(t, tt.bindings, bindings)
		})
	}
}

func TestBindingOptions_ResolveErrors(t *testing.T) {
	tests := []struct {
		name    string
		opts    BindingOptions
		wantErr string
	}{
		{"missing equals", BindingOptions{Set: []string{"artist"}}, "want name=value"},
		{"empty name", BindingOptions{Set: []string{"=Prince"}}, "want name=value"},
		{"unknown mode", BindingOptions{Mode: "regex"}, "unknown interpolation mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.opts.Resolve()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
