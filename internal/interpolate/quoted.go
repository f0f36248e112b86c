package interpolate

import (
	"strconv"
	"strings"

	"github.com/roach88/selq/internal/ir"
)

// placeholder is one {...} occurrence in a quoted-form template.
type placeholder struct {
	key      string // "" for implicit positional, digits for explicit index, else a name
	offset   int    // Byte offset of the opening brace
	inQuote  bool   // The placeholder sits inside a single-quoted string
	textFrom int    // Template text preceding this placeholder starts here
}

// Quoted expands a format-style template.
//
// Placeholders:
//
//	{}      next positional value
//	{2}     positional value at index 2
//	{name}  value bound to name
//	{{ }}   literal braces
//
// Every value is rendered with ir.Render: strings are quoted with
// embedded quotes doubled, numbers and booleans are bare. A placeholder
// that already sits inside single quotes ('{}') receives the escaped
// string body without another pair of quotes.
//
// Every supplied positional value must be used and every positional
// placeholder must have a value; a mismatch is ErrCountMismatch. Named
// bindings may hold entries the template does not use.
func Quoted(template string, values []ir.Literal, named map[string]ir.Literal) (string, error) {
	holders, tail, err := scanQuoted(template)
	if err != nil {
		return "", err
	}

	if err := checkPositional(holders, len(values)); err != nil {
		return "", err
	}

	var out strings.Builder
	out.Grow(len(template) + 16*len(holders))

	implicit := 0
	for _, h := range holders {
		out.WriteString(unescapeBraces(template[h.textFrom:h.offset]))

		var lit ir.Literal
		switch {
		case h.key == "":
			lit = values[implicit]
			implicit++
		case isIndex(h.key):
			idx, _ := strconv.Atoi(h.key)
			lit = values[idx]
		default:
			bound, ok := named[h.key]
			if !ok {
				return "", placeholderError(ErrUnboundName, h.key, h.offset, "no binding for {%s}", h.key)
			}
			lit = bound
		}

		text, err := renderAt(lit, h.inQuote)
		if err != nil {
			return "", placeholderError(ErrUnrenderable, h.key, h.offset, "%v", err)
		}
		out.WriteString(text)
	}
	out.WriteString(unescapeBraces(template[tail:]))

	return out.String(), nil
}

// scanQuoted finds every placeholder, tracking whether it sits inside a
// single-quoted string. It returns the offset where the trailing text begins.
func scanQuoted(template string) ([]placeholder, int, error) {
	var holders []placeholder
	inQuote := false
	textFrom := 0

	for i := 0; i < len(template); {
		switch template[i] {
		case '\'':
			if inQuote && i+1 < len(template) && template[i+1] == '\'' {
				i += 2
				continue
			}
			inQuote = !inQuote
			i++
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				i += 2
				continue
			}
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				return nil, 0, placeholderError(ErrMalformed, "", i, "unclosed placeholder")
			}
			key := strings.TrimSpace(template[i+1 : i+1+end])
			if key != "" && !isIndex(key) && !isName(key) {
				return nil, 0, placeholderError(ErrMalformed, key, i, "invalid placeholder {%s}", key)
			}
			holders = append(holders, placeholder{key: key, offset: i, inQuote: inQuote, textFrom: textFrom})
			i += end + 2
			textFrom = i
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				i += 2
				continue
			}
			return nil, 0, placeholderError(ErrMalformed, "", i, "unmatched '}' (use }} for a literal brace)")
		default:
			i++
		}
	}

	return holders, textFrom, nil
}

// checkPositional verifies that positional placeholders and values line up.
func checkPositional(holders []placeholder, supplied int) error {
	used := make([]bool, supplied)
	implicit := 0
	explicit := false

	for _, h := range holders {
		switch {
		case h.key == "":
			if implicit < supplied {
				used[implicit] = true
			}
			implicit++
		case isIndex(h.key):
			explicit = true
			idx, err := strconv.Atoi(h.key)
			if err != nil || idx >= supplied {
				return countMismatch(idx+1, supplied, "placeholder {%s} refers past the %d supplied value(s)", h.key, supplied)
			}
			used[idx] = true
		}
	}

	if implicit > supplied {
		return countMismatch(implicit, supplied, "template has %d positional placeholder(s) but %d value(s) were supplied", implicit, supplied)
	}
	for i, u := range used {
		if !u {
			want := implicit
			if explicit {
				want = i
			}
			return countMismatch(want, supplied, "value %d of %d is never used by the template", i, supplied)
		}
	}
	return nil
}

// renderAt renders a literal for a placeholder position. Inside quotes the
// surrounding quotes already exist, so only the escaped body is emitted.
func renderAt(lit ir.Literal, inQuote bool) (string, error) {
	if !inQuote {
		return ir.Render(lit)
	}
	if s, ok := lit.(ir.String); ok {
		return ir.Escape(string(s)), nil
	}
	return ir.Render(lit)
}

func unescapeBraces(s string) string {
	if !strings.ContainsAny(s, "{}") {
		return s
	}
	s = strings.ReplaceAll(s, "{{", "{")
	return strings.ReplaceAll(s, "}}", "}")
}

func isIndex(s string) bool {
	if s == "" || len(s) > 6 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// isName accepts a dotted identifier: segments of [A-Za-z_][A-Za-z0-9_]*.
func isName(s string) bool {
	if s == "" {
		return false
	}
	for _, seg := range strings.Split(s, ".") {
		if seg == "" {
			return false
		}
		for i := 0; i < len(seg); i++ {
			c := seg[i]
			isLetter := c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
			if !isLetter && (i == 0 || c < '0' || c > '9') {
				return false
			}
		}
	}
	return true
}
