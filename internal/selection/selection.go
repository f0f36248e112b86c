package selection

import (
	"fmt"
	"strings"

	"github.com/roach88/selq/internal/interpolate"
	"github.com/roach88/selq/internal/ir"
	"github.com/roach88/selq/internal/queryir"
	"github.com/roach88/selq/internal/queryparse"
)

// Mode selects how the compiler treats its input text.
type Mode int

const (
	ModePlain Mode = iota
	ModeQuoted
	ModeStructural
)

func (m Mode) String() string {
	switch m {
	case ModePlain:
		return "plain"
	case ModeQuoted:
		return "quoted"
	case ModeStructural:
		return "structural"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode maps a mode name (case-insensitive) to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "plain":
		return ModePlain, nil
	case "quoted":
		return ModeQuoted, nil
	case "structural":
		return ModeStructural, nil
	default:
		return ModePlain, fmt.Errorf("unknown interpolation mode %q (want plain, quoted or structural)", s)
	}
}

// Bindings carries the values a template may reference. Values feeds
// positional quoted placeholders; Named feeds {name} placeholders in both
// template forms. Plain mode ignores bindings.
type Bindings struct {
	Values []ir.Literal
	Named  map[string]ir.Literal
}

// Compile turns source (or a template) into a Selection.
//
// The returned selection shares no memory with b.
func Compile(source string, mode Mode, b Bindings) (queryir.Selection, error) {
	expanded, err := Expand(source, mode, b)
	if err != nil {
		return queryir.Selection{}, err
	}
	return parse(source, expanded, mode)
}

// Expand runs only the interpolation step and returns the fully literal
// query text that would be lexed.
func Expand(source string, mode Mode, b Bindings) (string, error) {
	var (
		expanded string
		err      error
	)
	switch mode {
	case ModePlain:
		expanded = source
	case ModeQuoted:
		expanded, err = interpolate.Quoted(source, b.Values, b.Named)
	case ModeStructural:
		expanded, err = interpolate.Structural(source, b.Named)
	default:
		err = fmt.Errorf("unknown interpolation mode %d", int(mode))
	}
	if err != nil {
		return "", &QueryError{Mode: mode, Template: source, Err: err}
	}
	return expanded, nil
}

func parse(template, expanded string, mode Mode) (queryir.Selection, error) {
	sel, err := queryparse.Parse(expanded)
	if err != nil {
		return queryir.Selection{}, &QueryError{Mode: mode, Template: template, Source: expanded, Err: err}
	}
	return sel, nil
}

// Parse compiles an already literal query.
func Parse(source string) (queryir.Selection, error) {
	return Compile(source, ModePlain, Bindings{})
}

// Format compiles a quoted template with positional Go values, converting
// each with ir.FromValue.
//
//	selection.Format("year >= {} AND artist = {}", 1980, "Prince")
func Format(template string, args ...any) (queryir.Selection, error) {
	values := make([]ir.Literal, len(args))
	for i, arg := range args {
		lit, err := ir.FromValue(arg)
		if err != nil {
			return queryir.Selection{}, fmt.Errorf("argument %d: %w", i, err)
		}
		values[i] = lit
	}
	return Compile(template, ModeQuoted, Bindings{Values: values})
}

// Sugar compiles a structural template against a Go environment.
//
//	selection.Sugar("{artist} AND {>year}", map[string]any{"artist": "Prince", "year": 1985})
func Sugar(template string, env map[string]any) (queryir.Selection, error) {
	named, err := Environment(env)
	if err != nil {
		return queryir.Selection{}, err
	}
	return Compile(template, ModeStructural, Bindings{Named: named})
}

// Environment converts a Go map into literal bindings.
func Environment(env map[string]any) (map[string]ir.Literal, error) {
	named := make(map[string]ir.Literal, len(env))
	for name, v := range env {
		lit, err := ir.FromValue(v)
		if err != nil {
			return nil, fmt.Errorf("binding %q: %w", name, err)
		}
		named[name] = lit
	}
	return named, nil
}
