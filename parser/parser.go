// Package parser turns raw cell text into an expression tree.
//
// The grammar it accepts:
//
//	expression := "=" formula EOF
//	            | NUMBER EOF
//	            | anything else        (a Text holding the trimmed input)
//	formula    := term (op formula)*   (precedence climbing)
//	term       := "(" formula ")" | NUMBER | IDENT | <other token>
//	range      := "(" IDENT (":"|"-") IDENT ")"
//	op         := "+" | "-" | "*" | "/"
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"tally/cell"
	"tally/expr"
	"tally/lexer"
	"tally/token"
)

type parser struct {
	l *lexer.Lexer

	curToken  token.Token
	peekToken token.Token
}

// ParseExpression parses rawText into an owning expression tree with the
// raw text recorded on the root node.
func ParseExpression(rawText string) (expr.Expr, error) {
	p := &parser{l: lexer.New(rawText)}
	p.nextToken()
	p.nextToken()

	e, err := p.readExpression(rawText)
	if err != nil {
		return nil, err
	}
	e.SetRawText(rawText)
	return e, nil
}

func (p *parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *parser) errorf(tok token.Token, format string, args ...interface{}) error {
	return &ParseError{Message: fmt.Sprintf(format, args...), Token: tok}
}

// readExpression scans an overall cell expression: a formula when the
// text starts with "=", a number when it is a single numeric token, and
// a text string otherwise.
func (p *parser) readExpression(rawText string) (expr.Expr, error) {
	if p.curToken.Type == token.EQUALS {
		p.nextToken()
		e, err := p.readFormula(0)
		if err != nil {
			return nil, err
		}
		if p.curToken.Type != token.EOF {
			return nil, p.errorf(p.curToken, "unexpected token: %q", p.curToken.Literal)
		}
		return e, nil
	}
	if p.curToken.Type == token.NUMBER && p.peekToken.Type == token.EOF {
		value, err := strconv.ParseFloat(p.curToken.Literal, 64)
		if err != nil {
			return nil, p.errorf(p.curToken, "invalid number: %q", p.curToken.Literal)
		}
		return expr.NewNumber(value), nil
	}
	return expr.NewText(strings.TrimSpace(rawText)), nil
}

// readFormula reads subexpressions and operators until it peeks an
// operator whose precedence does not exceed prec. The un-consumed
// operator is left as the current token for the caller.
func (p *parser) readFormula(prec int) (expr.Expr, error) {
	e, err := p.readTerm()
	if err != nil {
		return nil, err
	}
	for {
		op := p.curToken
		tprec := token.Precedence(op)
		if tprec <= prec {
			return e, nil
		}
		p.nextToken()
		if p.curToken.Type == token.EOF {
			return nil, p.errorf(op, "invalid binary %s expression; missing right operand", op.Literal)
		}
		rhs, err := p.readFormula(tprec)
		if err != nil {
			return nil, err
		}
		e = expr.NewCompound(op.Literal, e, rhs)
	}
}

// readTerm scans a term: a parenthesized subexpression, a number, or an
// identifier naming either a range function or a cell.
func (p *parser) readTerm() (expr.Expr, error) {
	tok := p.curToken
	switch tok.Type {
	case token.LPAREN:
		p.nextToken()
		e, err := p.readFormula(0)
		if err != nil {
			return nil, err
		}
		if p.curToken.Type != token.RPAREN {
			return nil, p.errorf(p.curToken, "unclosed parenthesis")
		}
		p.nextToken()
		return e, nil
	case token.NUMBER:
		value, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return nil, p.errorf(tok, "invalid number: %q", tok.Literal)
		}
		p.nextToken()
		return expr.NewNumber(value), nil
	case token.IDENT:
		name := strings.ToUpper(tok.Literal)
		p.nextToken()
		if cell.IsKnownFunctionName(name) {
			rng, err := p.readRange()
			if err != nil {
				return nil, err
			}
			return expr.NewRangeFunc(name, rng), nil
		}
		if cell.IsValidName(name) {
			return expr.NewIdentifier(name), nil
		}
		return nil, p.errorf(tok, "invalid cell name or token: %q", tok.Literal)
	case token.EOF:
		return expr.NewText(""), nil
	default:
		p.nextToken()
		return expr.NewText(tok.Literal), nil
	}
}

// readRange scans a parenthesized range of cells, such as (A1:A7).
// The start and end names may be separated by ":" or "-".
func (p *parser) readRange() (cell.Range, error) {
	if p.curToken.Type != token.LPAREN {
		return cell.Range{}, p.errorf(p.curToken, "invalid range format; missing initial (")
	}
	p.nextToken()

	start := p.curToken
	if !cell.IsValidName(start.Literal) {
		return cell.Range{}, p.errorf(start, "invalid start cell name for range: %q", start.Literal)
	}
	p.nextToken()

	sep := p.curToken
	if sep.Type != token.COLON && sep.Type != token.MINUS {
		return cell.Range{}, p.errorf(sep, "invalid range format; missing : in middle")
	}
	p.nextToken()

	end := p.curToken
	if !cell.IsValidName(end.Literal) {
		return cell.Range{}, p.errorf(end, "invalid end cell name for range: %q", end.Literal)
	}
	p.nextToken()

	if p.curToken.Type != token.RPAREN {
		return cell.Range{}, p.errorf(p.curToken, "invalid range format; missing final )")
	}
	p.nextToken()

	rng, err := cell.NewRangeFromNames(start.Literal, end.Literal)
	if err != nil {
		return cell.Range{}, p.errorf(start, "invalid range: %v", err)
	}
	return rng, nil
}
