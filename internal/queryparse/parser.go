package queryparse

import (
	"strconv"

	"github.com/roach88/selq/internal/ir"
	"github.com/roach88/selq/internal/queryir"
)

// Parser is a precedence-climbing parser over the Lexer's token stream.
//
// Grammar, highest precedence first:
//
//	primary    := comparison | "(" expression ")" | "true" | "false"
//	comparison := path op literal | path "IN" "(" literal ("," literal)* ")"
//	expression := primary (("AND" | "OR") primary)*     AND binds tighter
//	selection  := expression ("ORDER" "BY" path ("ASC"|"DESC")? ("," ...)*)? EOF
//
// The first error stops the parse; there is no recovery.
type Parser struct {
	l              *Lexer
	curToken       Token
	peekToken      Token
	prefixParseFns map[TokenType]prefixParseFn
	infixParseFns  map[TokenType]infixParseFn
}

type (
	prefixParseFn func() (queryir.Predicate, error)
	infixParseFn  func(queryir.Predicate) (queryir.Predicate, error)
)

// Precedence levels
const (
	_ int = iota
	LOWEST
	OR_PRECEDENCE  // OR
	AND_PRECEDENCE // AND
)

var precedences = map[TokenType]int{
	OR:  OR_PRECEDENCE,
	AND: AND_PRECEDENCE,
}

var comparisonOps = map[TokenType]queryir.Operator{
	EQ:    queryir.OpEq,
	NotEQ: queryir.OpNe,
	GT:    queryir.OpGt,
	LT:    queryir.OpLt,
	GTE:   queryir.OpGe,
	LTE:   queryir.OpLe,
}

// NewParser creates a Parser and primes the current and peek tokens.
func NewParser(l *Lexer) (*Parser, error) {
	p := &Parser{l: l}

	p.prefixParseFns = make(map[TokenType]prefixParseFn)
	p.registerPrefix(IDENT, p.parseComparison)
	p.registerPrefix(TRUE, p.parseBoolean)
	p.registerPrefix(FALSE, p.parseBoolean)
	p.registerPrefix(LPAREN, p.parseGroupedExpression)

	p.infixParseFns = make(map[TokenType]infixParseFn)
	p.registerInfix(AND, p.parseInfixExpression)
	p.registerInfix(OR, p.parseInfixExpression)

	// Read two tokens, so curToken and peekToken are both set
	if err := p.nextToken(); err != nil {
		return nil, err
	}
	if err := p.nextToken(); err != nil {
		return nil, err
	}

	return p, nil
}

// Parse parses a complete selection from source text.
func Parse(input string) (queryir.Selection, error) {
	p, err := NewParser(NewLexer(input))
	if err != nil {
		return queryir.Selection{}, err
	}
	return p.ParseSelection()
}

// ParseSelection parses an expression, an optional ORDER BY clause, and
// requires the input to end there.
func (p *Parser) ParseSelection() (queryir.Selection, error) {
	pred, err := p.parseExpression(LOWEST)
	if err != nil {
		return queryir.Selection{}, err
	}
	if err := p.nextToken(); err != nil {
		return queryir.Selection{}, err
	}

	sel := queryir.Selection{Predicate: pred}

	if p.curTokenIs(ORDER) {
		order, err := p.parseOrdering()
		if err != nil {
			return queryir.Selection{}, err
		}
		sel.Order = order
		if err := p.nextToken(); err != nil {
			return queryir.Selection{}, err
		}
	}

	if !p.curTokenIs(EOF) {
		expected := "AND, OR, ORDER BY or end of input"
		if sel.Order != nil {
			expected = "',' or end of input"
		}
		return queryir.Selection{}, newParseError(expected, p.curToken)
	}

	return sel, nil
}

func (p *Parser) registerPrefix(tokenType TokenType, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

func (p *Parser) registerInfix(tokenType TokenType, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}

func (p *Parser) nextToken() error {
	p.curToken = p.peekToken
	tok, err := p.l.NextToken()
	if err != nil {
		return err
	}
	p.peekToken = tok
	return nil
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expectPeek advances when the peek token has type t, and reports a
// ParseError naming expected otherwise.
func (p *Parser) expectPeek(t TokenType, expected string) error {
	if !p.peekTokenIs(t) {
		return newParseError(expected, p.peekToken)
	}
	return p.nextToken()
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return LOWEST
}

// parseExpression leaves curToken on the last token of the expression.
func (p *Parser) parseExpression(precedence int) (queryir.Predicate, error) {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		return nil, newParseError("field, '(', true or false", p.curToken)
	}

	left, err := prefix()
	if err != nil {
		return nil, err
	}

	for p.peekPrecedence() > precedence {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return left, nil
		}
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		left, err = infix(left)
		if err != nil {
			return nil, err
		}
	}

	return left, nil
}

// parseInfixExpression parses the right operand at the operator's own
// precedence, which makes AND and OR left-associative.
func (p *Parser) parseInfixExpression(left queryir.Predicate) (queryir.Predicate, error) {
	op := p.curToken.Type
	precedence := p.curPrecedence()
	if err := p.nextToken(); err != nil {
		return nil, err
	}

	right, err := p.parseExpression(precedence)
	if err != nil {
		return nil, err
	}

	if op == AND {
		return queryir.And{Left: left, Right: right}, nil
	}
	return queryir.Or{Left: left, Right: right}, nil
}

func (p *Parser) parseGroupedExpression() (queryir.Predicate, error) {
	if err := p.nextToken(); err != nil {
		return nil, err
	}

	pred, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}

	if err := p.expectPeek(RPAREN, "')'"); err != nil {
		return nil, err
	}
	return pred, nil
}

func (p *Parser) parseBoolean() (queryir.Predicate, error) {
	return queryir.BoolLiteral{Value: p.curTokenIs(TRUE)}, nil
}

// parseComparison parses path op literal or path IN (literal, ...).
func (p *Parser) parseComparison() (queryir.Predicate, error) {
	field := queryir.Path(p.curToken.Literal)

	if err := p.nextToken(); err != nil {
		return nil, err
	}

	if p.curTokenIs(IN) {
		values, err := p.parseLiteralList()
		if err != nil {
			return nil, err
		}
		return queryir.Comparison{Field: field, Op: queryir.OpIn, Values: values}, nil
	}

	op, ok := comparisonOps[p.curToken.Type]
	if !ok {
		return nil, newParseError("comparison operator after "+field.String(), p.curToken)
	}

	if err := p.nextToken(); err != nil {
		return nil, err
	}

	value, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return queryir.Comparison{Field: field, Op: op, Value: value}, nil
}

// parseLiteralList parses "(" literal ("," literal)* ")" with curToken on
// IN. Empty lists and trailing commas are rejected.
func (p *Parser) parseLiteralList() ([]ir.Literal, error) {
	if err := p.expectPeek(LPAREN, "'(' after IN"); err != nil {
		return nil, err
	}
	if err := p.nextToken(); err != nil {
		return nil, err
	}

	var values []ir.Literal
	for {
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		values = append(values, lit)

		if err := p.nextToken(); err != nil {
			return nil, err
		}
		switch p.curToken.Type {
		case RPAREN:
			return values, nil
		case COMMA:
			if err := p.nextToken(); err != nil {
				return nil, err
			}
		default:
			return nil, newParseError("',' or ')' in IN list", p.curToken)
		}
	}
}

// parseLiteral converts curToken into a Literal.
func (p *Parser) parseLiteral() (ir.Literal, error) {
	tok := p.curToken
	switch tok.Type {
	case STRING:
		return ir.String(tok.Literal), nil
	case INT:
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			return nil, &LexError{Offset: tok.Pos, Msg: "invalid numeric literal " + strconv.Quote(tok.Literal)}
		}
		return ir.Int(n), nil
	case FLOAT:
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return nil, &LexError{Offset: tok.Pos, Msg: "invalid numeric literal " + strconv.Quote(tok.Literal)}
		}
		return ir.Float(f), nil
	case TRUE:
		return ir.Bool(true), nil
	case FALSE:
		return ir.Bool(false), nil
	default:
		return nil, newParseError("literal", tok)
	}
}

// parseOrdering parses BY path (ASC|DESC)? ("," path (ASC|DESC)?)* with
// curToken on ORDER. It leaves curToken on the clause's last token.
func (p *Parser) parseOrdering() (queryir.Ordering, error) {
	if err := p.expectPeek(BY, "BY after ORDER"); err != nil {
		return nil, err
	}

	var order queryir.Ordering
	for {
		if err := p.expectPeek(IDENT, "field to order by"); err != nil {
			return nil, err
		}
		item := queryir.OrderItem{Field: queryir.Path(p.curToken.Literal), Direction: queryir.Asc}

		if p.peekTokenIs(ASC) || p.peekTokenIs(DESC) {
			if err := p.nextToken(); err != nil {
				return nil, err
			}
			if p.curTokenIs(DESC) {
				item.Direction = queryir.Desc
			}
		}
		order = append(order, item)

		if !p.peekTokenIs(COMMA) {
			return order, nil
		}
		if err := p.nextToken(); err != nil {
			return nil, err
		}
	}
}
