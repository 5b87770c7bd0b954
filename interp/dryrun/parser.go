package dryrun

import (
	"strconv"
	"strings"
)

// expr is a compiled expression.
type expr func(s *scope) (any, error)

var keywords = map[string]bool{
	"and": true, "or": true, "not": true, "in": true, "is": true,
	"True": true, "False": true, "None": true,
	"if": true, "else": true, "elif": true, "for": true, "while": true,
	"def": true, "return": true, "class": true, "import": true, "from": true,
	"lambda": true, "with": true, "try": true, "except": true, "pass": true,
	"break": true, "continue": true, "global": true, "del": true, "yield": true,
}

type parser struct {
	tokens []token
	pos    int
}

func compile(src string) (expr, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	return compileTokens(tokens)
}

func compileTokens(tokens []token) (expr, error) {
	p := &parser{tokens: tokens}
	if p.peek().kind == tkEOF {
		return nil, syntaxError("empty expression")
	}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tkEOF {
		return nil, syntaxError("unexpected %q at position %d", t.text, t.pos)
	}
	return e, nil
}

func (p *parser) peek() token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return token{kind: tkEOF}
}

func (p *parser) advance() token {
	t := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

func (p *parser) isOp(op string) bool {
	t := p.peek()
	return t.kind == tkOp && t.text == op
}

func (p *parser) isKeyword(kw string) bool {
	t := p.peek()
	return t.kind == tkName && t.text == kw
}

func (p *parser) expect(op string) error {
	if !p.isOp(op) {
		t := p.peek()
		if t.kind == tkEOF {
			return syntaxError("expected %q at end of expression", op)
		}
		return syntaxError("expected %q at position %d", op, t.pos)
	}
	p.advance()
	return nil
}

func (p *parser) parseOr() (expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l := left
		left = func(s *scope) (any, error) {
			v, err := l(s)
			if err != nil || truthy(v) {
				return v, err
			}
			return right(s)
		}
	}
	return left, nil
}

func (p *parser) parseAnd() (expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		l := left
		left = func(s *scope) (any, error) {
			v, err := l(s)
			if err != nil || !truthy(v) {
				return v, err
			}
			return right(s)
		}
	}
	return left, nil
}

func (p *parser) parseNot() (expr, error) {
	if p.isKeyword("not") {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return func(s *scope) (any, error) {
			v, err := operand(s)
			if err != nil {
				return nil, err
			}
			return !truthy(v), nil
		}, nil
	}
	return p.parseComparison()
}

// comparisonOp reads a comparison operator, including "in" and "not in".
func (p *parser) comparisonOp() (string, bool) {
	t := p.peek()
	if t.kind == tkOp {
		switch t.text {
		case "==", "!=", "<", ">", "<=", ">=":
			p.advance()
			return t.text, true
		}
	}
	if p.isKeyword("in") {
		p.advance()
		return "in", true
	}
	if p.isKeyword("not") && p.pos+1 < len(p.tokens) {
		next := p.tokens[p.pos+1]
		if next.kind == tkName && next.text == "in" {
			p.pos += 2
			return "not in", true
		}
	}
	return "", false
}

// parseComparison supports chains such as 0 <= i < n.
func (p *parser) parseComparison() (expr, error) {
	first, err := p.parseArith()
	if err != nil {
		return nil, err
	}
	var ops []string
	var operands []expr
	for {
		op, ok := p.comparisonOp()
		if !ok {
			break
		}
		right, err := p.parseArith()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		operands = append(operands, right)
	}
	if len(ops) == 0 {
		return first, nil
	}
	return func(s *scope) (any, error) {
		left, err := first(s)
		if err != nil {
			return nil, err
		}
		for i, op := range ops {
			right, err := operands[i](s)
			if err != nil {
				return nil, err
			}
			ok, err := compare(op, left, right)
			if err != nil {
				return nil, err
			}
			if !ok {
				return false, nil
			}
			left = right
		}
		return true, nil
	}, nil
}

func (p *parser) parseArith() (expr, error) {
	return p.parseBinary(p.parseTerm, "+", "-")
}

func (p *parser) parseTerm() (expr, error) {
	return p.parseBinary(p.parseUnary, "*", "/", "//", "%")
}

func (p *parser) parseBinary(next func() (expr, error), ops ...string) (expr, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tkOp || !contains(ops, t.text) {
			return left, nil
		}
		p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = binaryExpr(t.text, left, right)
	}
}

func binaryExpr(op string, left, right expr) expr {
	return func(s *scope) (any, error) {
		a, err := left(s)
		if err != nil {
			return nil, err
		}
		b, err := right(s)
		if err != nil {
			return nil, err
		}
		return binary(op, a, b)
	}
}

func (p *parser) parseUnary() (expr, error) {
	if p.isOp("-") || p.isOp("+") {
		op := p.advance().text
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return func(s *scope) (any, error) {
			v, err := operand(s)
			if err != nil {
				return nil, err
			}
			return unary(op, v)
		}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (expr, error) {
	base, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if p.isOp("**") {
		p.advance()
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return binaryExpr("**", base, exp), nil
	}
	return base, nil
}

func (p *parser) parsePostfix() (expr, error) {
	nameTok := p.peek()
	e, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isOp("("):
			args, err := p.parseList(")")
			if err != nil {
				return nil, err
			}
			if nameTok.kind != tkName || keywords[nameTok.text] {
				return nil, syntaxError("only builtin functions can be called")
			}
			e = callExpr(nameTok.text, args)
			nameTok = token{}
		case p.isOp("["):
			p.advance()
			index, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			e = indexExpr(e, index)
			nameTok = token{}
		default:
			return e, nil
		}
	}
}

// parseList consumes "(" or "[" through the matching close and returns the
// comma separated elements.
func (p *parser) parseList(closing string) ([]expr, error) {
	p.advance()
	var items []expr
	for !p.isOp(closing) {
		item, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.isOp(",") {
			p.advance()
			continue
		}
		if !p.isOp(closing) {
			return nil, p.expect(closing)
		}
	}
	p.advance()
	return items, nil
}

func (p *parser) parseAtom() (expr, error) {
	t := p.peek()
	switch t.kind {
	case tkNumber:
		p.advance()
		v, err := parseNumber(t.text)
		if err != nil {
			return nil, err
		}
		return constant(v), nil

	case tkString:
		var sb strings.Builder
		for p.peek().kind == tkString {
			sb.WriteString(p.advance().text)
		}
		return constant(sb.String()), nil

	case tkName:
		switch t.text {
		case "True":
			p.advance()
			return constant(true), nil
		case "False":
			p.advance()
			return constant(false), nil
		case "None":
			p.advance()
			return constant(nil), nil
		}
		if keywords[t.text] {
			return nil, syntaxError("unexpected keyword %q", t.text)
		}
		p.advance()
		name := t.text
		return func(s *scope) (any, error) { return s.lookup(name) }, nil

	case tkOp:
		switch t.text {
		case "(":
			p.advance()
			inner, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return inner, nil
		case "[":
			items, err := p.parseList("]")
			if err != nil {
				return nil, err
			}
			return listExpr(items), nil
		}
	case tkEOF:
		return nil, syntaxError("unexpected end of expression")
	}
	return nil, syntaxError("unexpected %q at position %d", t.text, t.pos)
}

func constant(v any) expr {
	return func(*scope) (any, error) { return v, nil }
}

func listExpr(items []expr) expr {
	return func(s *scope) (any, error) {
		out := make([]any, 0, len(items))
		for _, item := range items {
			v, err := item(s)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
}

func indexExpr(target, index expr) expr {
	return func(s *scope) (any, error) {
		t, err := target(s)
		if err != nil {
			return nil, err
		}
		i, err := index(s)
		if err != nil {
			return nil, err
		}
		return subscript(t, i)
	}
}

func callExpr(name string, args []expr) expr {
	return func(s *scope) (any, error) {
		fn, ok := builtins[name]
		if !ok {
			if v, defined := s.vars[name]; defined {
				return nil, typeError("'%s' object is not callable", typeName(v))
			}
			return nil, nameError(name)
		}
		values := make([]any, 0, len(args))
		for _, a := range args {
			v, err := a(s)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return fn(s, values)
	}
}

func parseNumber(text string) (any, error) {
	if !strings.ContainsAny(text, ".eE") {
		i, err := strconv.ParseInt(text, 10, 64)
		if err == nil {
			return i, nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, syntaxError("invalid number %q", text)
	}
	return f, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
