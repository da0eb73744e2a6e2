package query

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Parse compiles a predicate string like
//
//	source_endpoint == "10.0.0.1" and (proto == 'TCP' or val < 10)
//
// into an expression tree. Precedence, loosest first: or, and, not,
// comparison. String literals accept single or double quotes.
func Parse(input string) (Expr, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, fmt.Errorf("predicate: unexpected %q after expression", p.peek().text)
	}
	return expr, nil
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokNumber
	tokOp
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind tokenKind
	text string
}

func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			for j < len(input) && input[j] != quote {
				j++
			}
			if j >= len(input) {
				return nil, fmt.Errorf("predicate: unterminated string literal at offset %d", i)
			}
			toks = append(toks, token{tokString, input[i+1 : j]})
			i = j + 1
		case strings.ContainsRune("=!<>", rune(c)):
			if i+1 < len(input) && input[i+1] == '=' {
				toks = append(toks, token{tokOp, input[i : i+2]})
				i += 2
			} else if c == '<' || c == '>' {
				toks = append(toks, token{tokOp, string(c)})
				i++
			} else {
				return nil, fmt.Errorf("predicate: invalid operator at offset %d", i)
			}
		case c == '-' || c == '.' || unicode.IsDigit(rune(c)):
			j := i + 1
			for j < len(input) && (unicode.IsDigit(rune(input[j])) || input[j] == '.' || input[j] == 'e' ||
				input[j] == 'E' || input[j] == '+' || input[j] == '-') {
				j++
			}
			toks = append(toks, token{tokNumber, input[i:j]})
			i = j
		case unicode.IsLetter(rune(c)) || c == '_':
			j := i + 1
			for j < len(input) && (unicode.IsLetter(rune(input[j])) || unicode.IsDigit(rune(input[j])) ||
				input[j] == '_' || input[j] == '.') {
				j++
			}
			toks = append(toks, token{tokIdent, input[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("predicate: unexpected character %q at offset %d", c, i)
		}
	}
	return append(toks, token{tokEOF, ""}), nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }
func (p *parser) next() token { t := p.toks[p.pos]; p.pos++; return t }
func (p *parser) atEnd() bool { return p.peek().kind == tokEOF }

func (p *parser) keyword(kw string) bool {
	if p.peek().kind == tokIdent && p.peek().text == kw {
		p.pos++
		return true
	}
	return false
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.keyword("and") {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &And{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.keyword("not") {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Not{Expr: inner}, nil
	}
	if p.peek().kind == tokLParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("predicate: missing closing parenthesis")
		}
		p.next()
		return inner, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	field := p.next()
	if field.kind != tokIdent {
		return nil, fmt.Errorf("predicate: expected field name, got %q", field.text)
	}
	switch field.text {
	case "and", "or", "not":
		return nil, fmt.Errorf("predicate: %q is a reserved word", field.text)
	}

	opTok := p.next()
	if opTok.kind != tokOp {
		return nil, fmt.Errorf("predicate: expected comparison operator after %q", field.text)
	}
	op := Op(opTok.text)

	lit := p.next()
	var value any
	switch lit.kind {
	case tokString:
		value = lit.text
	case tokNumber:
		f, err := strconv.ParseFloat(lit.text, 64)
		if err != nil {
			return nil, fmt.Errorf("predicate: invalid number %q", lit.text)
		}
		value = f
	case tokIdent:
		switch lit.text {
		case "true":
			value = true
		case "false":
			value = false
		default:
			return nil, fmt.Errorf("predicate: expected literal, got identifier %q (quote string values)", lit.text)
		}
	default:
		return nil, fmt.Errorf("predicate: expected literal after operator, got %q", lit.text)
	}

	if _, isBool := value.(bool); isBool && op != OpEq && op != OpNe {
		return nil, fmt.Errorf("predicate: ordering operator %s not valid for booleans", op)
	}

	return &Comparison{Field: field.text, Op: op, Value: value}, nil
}
