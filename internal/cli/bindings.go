package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/selq/internal/ir"
	"github.com/roach88/selq/internal/selection"
)

// BindingOptions are the template flags shared by compile, fetch and
// watch.
type BindingOptions struct {
	Mode string
	Args []string // --arg, positional values
	Set  []string // --set name=value
}

func addBindingFlags(cmd *cobra.Command, b *BindingOptions) {
	cmd.Flags().StringVar(&b.Mode, "mode", "", "template mode (plain|quoted|structural); inferred from flags when empty")
	cmd.Flags().StringArrayVar(&b.Args, "arg", nil, "positional value for a quoted template (repeatable)")
	cmd.Flags().StringArrayVar(&b.Set, "set", nil, "named binding name=value (repeatable)")
}

// Resolve returns the template mode and bindings. Values are typed with
// ir.ParseLiteral: true/false, integers and decimals become literals of
// those kinds, anything else is a string.
//
// Without --mode, --arg selects quoted mode, --set alone selects
// structural mode, and no bindings select plain mode.
func (b BindingOptions) Resolve() (selection.Mode, selection.Bindings, error) {
	var bindings selection.Bindings

	for _, arg := range b.Args {
		bindings.Values = append(bindings.Values, ir.ParseLiteral(arg))
	}

	if len(b.Set) > 0 {
		bindings.Named = make(map[string]ir.Literal, len(b.Set))
		for _, kv := range b.Set {
			name, value, ok := strings.Cut(kv, "=")
			if !ok || strings.TrimSpace(name) == "" {
				return 0, selection.Bindings{}, fmt.Errorf("invalid --set %q: want name=value", kv)
			}
			bindings.Named[strings.TrimSpace(name)] = ir.ParseLiteral(value)
		}
	}

	if b.Mode != "" {
		mode, err := selection.ParseMode(b.Mode)
		if err != nil {
			return 0, selection.Bindings{}, err
		}
		return mode, bindings, nil
	}

	switch {
	case len(b.Args) > 0:
		return selection.ModeQuoted, bindings, nil
	case len(b.Set) > 0:
		return selection.ModeStructural, bindings, nil
	default:
		return selection.ModePlain, bindings, nil
	}
}
