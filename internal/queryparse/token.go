package queryparse

import (
	"fmt"
	"strings"
)

// TokenType represents the type of a token.
type TokenType string

// Token is a lexical token. Pos is the byte offset of the token's first
// character in the source. For STRING tokens Literal holds the decoded
// value ('' already collapsed to ').
type Token struct {
	Type    TokenType
	Literal string
	Pos     int
}

const (
	EOF TokenType = "EOF"

	// Identifiers and literals
	IDENT  TokenType = "IDENT"  // year, metadata.genre
	STRING TokenType = "STRING" // 'Prince'
	INT    TokenType = "INT"    // 1985, -3
	FLOAT  TokenType = "FLOAT"  // 120.5

	// Operators and punctuation
	EQ     TokenType = "="
	NotEQ  TokenType = "!="
	LT     TokenType = "<"
	GT     TokenType = ">"
	LTE    TokenType = "<="
	GTE    TokenType = ">="
	COMMA  TokenType = ","
	LPAREN TokenType = "("
	RPAREN TokenType = ")"

	// Keywords
	AND   TokenType = "AND"
	OR    TokenType = "OR"
	IN    TokenType = "IN"
	ORDER TokenType = "ORDER"
	BY    TokenType = "BY"
	ASC   TokenType = "ASC"
	DESC  TokenType = "DESC"
	TRUE  TokenType = "TRUE"
	FALSE TokenType = "FALSE"
)

// keywords are matched case-insensitively; the lookup key is upper case.
var keywords = map[string]TokenType{
	"AND":   AND,
	"OR":    OR,
	"IN":    IN,
	"ORDER": ORDER,
	"BY":    BY,
	"ASC":   ASC,
	"DESC":  DESC,
	"TRUE":  TRUE,
	"FALSE": FALSE,
}

// LookupIdent returns the keyword type for ident, or IDENT when ident is
// not a keyword.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[strings.ToUpper(ident)]; ok {
		return tok
	}
	return IDENT
}

// Describe renders a token for error messages.
func (t Token) Describe() string {
	switch t.Type {
	case EOF:
		return "end of input"
	case IDENT:
		return fmt.Sprintf("identifier %s", t.Literal)
	case STRING:
		return fmt.Sprintf("string '%s'", strings.ReplaceAll(t.Literal, "'", "''"))
	case INT, FLOAT:
		return fmt.Sprintf("number %s", t.Literal)
	default:
		return fmt.Sprintf("%q", t.Literal)
	}
}
