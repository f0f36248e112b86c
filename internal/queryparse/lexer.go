package queryparse

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Lexer is a byte-oriented scanner for selection source text.
type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
}

// NewLexer creates a new Lexer.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) atEnd() bool {
	return l.position >= len(l.input)
}

// NextToken returns the next token from the input. After the input is
// exhausted every call returns an EOF token.
func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespace()

	start := l.position
	if l.atEnd() {
		return Token{Type: EOF, Pos: len(l.input)}, nil
	}

	switch l.ch {
	case '=':
		l.readChar()
		return Token{Type: EQ, Literal: "=", Pos: start}, nil
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Type: NotEQ, Literal: "!=", Pos: start}, nil
		}
		return Token{}, l.errorf(start, "unexpected character '!' (did you mean !=?)")
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Type: LTE, Literal: "<=", Pos: start}, nil
		}
		l.readChar()
		return Token{Type: LT, Literal: "<", Pos: start}, nil
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Type: GTE, Literal: ">=", Pos: start}, nil
		}
		l.readChar()
		return Token{Type: GT, Literal: ">", Pos: start}, nil
	case ',':
		l.readChar()
		return Token{Type: COMMA, Literal: ",", Pos: start}, nil
	case '(':
		l.readChar()
		return Token{Type: LPAREN, Literal: "(", Pos: start}, nil
	case ')':
		l.readChar()
		return Token{Type: RPAREN, Literal: ")", Pos: start}, nil
	case '\'':
		s, err := l.readString()
		if err != nil {
			return Token{}, err
		}
		return Token{Type: STRING, Literal: s, Pos: start}, nil
	case '-':
		if !isDigit(l.peekChar()) {
			return Token{}, l.errorf(start, "unexpected character '-'")
		}
		return l.readNumber()
	}

	switch {
	case isIdentStart(l.ch):
		return l.readIdentifier()
	case isDigit(l.ch):
		return l.readNumber()
	default:
		return Token{}, l.errorf(start, "unexpected character %q", rune(l.ch))
	}
}

// Tokenize lexes the whole input. The returned slice always ends with EOF.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) skipWhitespace() {
	for !l.atEnd() && (l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r') {
		l.readChar()
	}
}

// readIdentifier reads a dotted identifier. Keywords are only recognized
// for undotted identifiers.
func (l *Lexer) readIdentifier() (Token, error) {
	start := l.position
	for {
		for !l.atEnd() && isIdentPart(l.ch) {
			l.readChar()
		}
		if l.ch != '.' || l.atEnd() {
			break
		}
		if !isIdentStart(l.peekChar()) {
			return Token{}, l.errorf(l.position, "invalid field path %q: empty segment", l.input[start:l.position+1])
		}
		l.readChar() // skip '.'
	}

	literal := l.input[start:l.position]
	if strings.Contains(literal, ".") {
		return Token{Type: IDENT, Literal: literal, Pos: start}, nil
	}
	return Token{Type: LookupIdent(literal), Literal: literal, Pos: start}, nil
}

// readNumber reads an optionally signed integer or decimal literal.
// A decimal point makes it a FLOAT and must be followed by a digit.
func (l *Lexer) readNumber() (Token, error) {
	start := l.position
	if l.ch == '-' {
		l.readChar()
	}
	for !l.atEnd() && isDigit(l.ch) {
		l.readChar()
	}

	tokType := INT
	if !l.atEnd() && l.ch == '.' {
		if !isDigit(l.peekChar()) {
			return Token{}, l.errorf(start, "invalid numeric literal %q", l.input[start:l.position+1])
		}
		tokType = FLOAT
		l.readChar() // skip '.'
		for !l.atEnd() && isDigit(l.ch) {
			l.readChar()
		}
	}

	// 12abc, 1.2.3
	if !l.atEnd() && (isIdentPart(l.ch) || l.ch == '.') {
		end := l.position
		for end < len(l.input) && (isIdentPart(l.input[end]) || l.input[end] == '.') {
			end++
		}
		return Token{}, l.errorf(start, "invalid numeric literal %q", l.input[start:end])
	}

	literal := l.input[start:l.position]
	if tokType == INT {
		if _, err := strconv.ParseInt(literal, 10, 64); err != nil {
			return Token{}, l.errorf(start, "invalid numeric literal %q: out of int64 range", literal)
		}
	} else {
		f, err := strconv.ParseFloat(literal, 64)
		if err != nil || math.IsInf(f, 0) {
			return Token{}, l.errorf(start, "invalid numeric literal %q", literal)
		}
	}
	return Token{Type: tokType, Literal: literal, Pos: start}, nil
}

// readString reads a single-quoted string. A doubled quote inside the
// string stands for one quote character. The body must be valid UTF-8.
func (l *Lexer) readString() (string, error) {
	start := l.position
	var sb strings.Builder
	l.readChar() // skip opening quote
	for {
		if l.atEnd() {
			return "", l.errorf(start, "unterminated string literal")
		}
		if l.ch == '\'' {
			if l.peekChar() == '\'' {
				sb.WriteByte('\'')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing quote
			return sb.String(), nil
		}
		if l.ch >= utf8.RuneSelf {
			r, size := utf8.DecodeRuneInString(l.input[l.position:])
			if r == utf8.RuneError && size == 1 {
				return "", l.errorf(l.position, "invalid UTF-8 in string literal")
			}
			sb.WriteString(l.input[l.position : l.position+size])
			for ; size > 0; size-- {
				l.readChar()
			}
			continue
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}
}

func (l *Lexer) errorf(offset int, format string, args ...any) error {
	return &LexError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

func isIdentStart(ch byte) bool {
	return ch == '_' || ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch >= 0x80
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
