package interpolate

import (
	"strings"

	"github.com/roach88/selq/internal/ir"
)

// sugarOps are the operator prefixes a structural placeholder may carry.
var sugarOps = map[string]bool{
	">":  true,
	"<":  true,
	">=": true,
	"<=": true,
	"!=": true,
}

// prevKind is the class of the last significant template token, used to
// decide whether a placeholder stands for a clause or for a bare value.
type prevKind int

const (
	prevNone prevKind = iota
	prevOperator
	prevIn
	prevLParen
	prevComma
	prevOther
)

// Structural expands the unquoted template form.
//
//	{name}     ->  name = <value>
//	{>name}    ->  name > <value>     (also <, >=, <=, !=)
//	{{ }}      ->  literal braces
//
// A bare {name} that directly follows an explicit comparison operator
// (year > {year}) or sits inside an IN list (genre IN ({a}, {b})) expands
// to the value alone, so sugar and explicit operators mix freely. A minus
// sign directly before such a placeholder (year > -{year}) stays in value
// position and negates a numeric value.
// Everything else in the template passes through unchanged, and braces
// inside single-quoted strings are left alone.
//
// Expansion is textual: the result is parsed like any hand-written query,
// so AND/OR precedence applies to the expanded text exactly as written.
func Structural(template string, env map[string]ir.Literal) (string, error) {
	var out strings.Builder
	out.Grow(len(template) * 2)

	prev := prevNone
	inList := false

	for i := 0; i < len(template); {
		c := template[i]
		switch {
		case c == '\'':
			end := quotedEnd(template, i)
			out.WriteString(template[i:end])
			i = end
			prev = prevOther

		case c == '{' && i+1 < len(template) && template[i+1] == '{':
			out.WriteByte('{')
			i += 2

		case c == '}' && i+1 < len(template) && template[i+1] == '}':
			out.WriteByte('}')
			i += 2

		case c == '}':
			return "", placeholderError(ErrMalformed, "", i, "unmatched '}' (use }} for a literal brace)")

		case c == '{':
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				return "", placeholderError(ErrMalformed, "", i, "unclosed placeholder")
			}
			valuePos := prev == prevOperator || (inList && (prev == prevLParen || prev == prevComma))
			text, err := expandSugar(template[i+1:i+1+end], i, valuePos, env)
			if err != nil {
				return "", err
			}
			out.WriteString(text)
			i += end + 2
			prev = prevOther

		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			out.WriteByte(c)
			i++

		case c == '=' || c == '<' || c == '>' || c == '!':
			out.WriteByte(c)
			i++
			prev = prevOperator

		case c == '(':
			out.WriteByte(c)
			i++
			if prev == prevIn {
				inList = true
			}
			prev = prevLParen

		case c == ')':
			out.WriteByte(c)
			i++
			inList = false
			prev = prevOther

		case c == ',':
			out.WriteByte(c)
			i++
			prev = prevComma

		case c == '-' && i+1 < len(template) && template[i+1] == '{':
			// Sign on a value placeholder (year > -{x}); prev is unchanged.
			out.WriteByte(c)
			i++

		case isWordByte(c):
			start := i
			for i < len(template) && (isWordByte(template[i]) || template[i] == '.') {
				i++
			}
			word := template[start:i]
			out.WriteString(word)
			if strings.EqualFold(word, "IN") {
				prev = prevIn
			} else {
				prev = prevOther
			}

		default:
			out.WriteByte(c)
			i++
			prev = prevOther
		}
	}

	return out.String(), nil
}

// expandSugar expands the body of one structural placeholder.
func expandSugar(body string, offset int, valuePos bool, env map[string]ir.Literal) (string, error) {
	trimmed := strings.TrimSpace(body)

	opEnd := 0
	for opEnd < len(trimmed) && isOpByte(trimmed[opEnd]) {
		opEnd++
	}
	op := trimmed[:opEnd]
	name := strings.TrimSpace(trimmed[opEnd:])

	if name == "" {
		return "", placeholderError(ErrMalformed, "", offset, "placeholder {%s} names no binding", body)
	}
	if op != "" && !sugarOps[op] {
		return "", placeholderError(ErrBadOperator, name, offset, "unrecognized operator %q in {%s}", op, body)
	}
	if !isName(name) {
		return "", placeholderError(ErrMalformed, name, offset, "invalid binding name in {%s}", body)
	}
	if op != "" && valuePos {
		return "", placeholderError(ErrBadOperator, name, offset, "operator prefix in {%s} follows an explicit operator", body)
	}

	lit, ok := env[name]
	if !ok {
		return "", placeholderError(ErrUnboundName, name, offset, "no binding for {%s}", name)
	}

	rendered, err := ir.Render(lit)
	if err != nil {
		return "", placeholderError(ErrUnrenderable, name, offset, "%v", err)
	}

	if valuePos {
		return rendered, nil
	}
	if op == "" {
		op = "="
	}
	return name + " " + op + " " + rendered, nil
}

// quotedEnd returns the offset just past the single-quoted string that
// starts at i. An unterminated string runs to the end of the template;
// the lexer reports it.
func quotedEnd(template string, i int) int {
	j := i + 1
	for j < len(template) {
		if template[j] == '\'' {
			if j+1 < len(template) && template[j+1] == '\'' {
				j += 2
				continue
			}
			return j + 1
		}
		j++
	}
	return len(template)
}

func isWordByte(c byte) bool {
	return c == '_' || c == '-' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') || c >= 0x80
}

// isOpByte reports whether c can be part of an operator prefix. Anything
// that is not a name character or whitespace counts, so {~year} reports
// an unrecognized operator rather than a bad name.
func isOpByte(c byte) bool {
	return !isWordByte(c) && c != '.' && c != ' ' && c != '\t'
}
