// Copyright 2025 The Amalgamate Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package cpp

import (
	"fmt"
	"strconv"
	"strings"
)

// Expr is a parsed #if/#elif condition.
type Expr interface {
	String() string
}

// Int is an integer literal.
type Int struct {
	V int64
}

func (e *Int) String() string { return strconv.FormatInt(e.V, 10) }

// Ident is a bare identifier. Without a policy entry it is Unknown.
type Ident struct {
	Name string
}

func (e *Ident) String() string { return e.Name }

// Defined is defined(X) or defined X.
type Defined struct {
	Name string
}

func (e *Defined) String() string { return "defined(" + e.Name + ")" }

// Unary is !x, -x or +x.
type Unary struct {
	Op byte
	X  Expr
}

func (e *Unary) String() string { return string(e.Op) + e.X.String() }

// Binary is a binary operation. Op is one of && || == != < > <= >= + -.
type Binary struct {
	Op   string
	X, Y Expr
}

func (e *Binary) String() string {
	return "(" + e.X.String() + " " + e.Op + " " + e.Y.String() + ")"
}

// DefinedIdent reports whether e is exactly defined(X) or !defined(X),
// so a rewritten condition can be rendered as #ifdef/#ifndef.
func DefinedIdent(e Expr) (name string, negated, ok bool) {
	switch e := e.(type) {
	case *Defined:
		return e.Name, false, true
	case *Unary:
		if e.Op != '!' {
			return "", false, false
		}
		if d, ok := e.X.(*Defined); ok {
			return d.Name, true, true
		}
	}
	return "", false, false
}

type token struct {
	kind byte   // 'i' int, 'n' name, 'o' operator, 0 end
	text string
	v    int64
}

var operators = []string{"&&", "||", "==", "!=", "<=", ">=", "<", ">", "!", "+", "-", "(", ")"}

func tokenize(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c >= '0' && c <= '9':
			j := i
			for j < len(src) && (isIdentChar(src[j]) || src[j] == '.') {
				j++
			}
			text := src[i:j]
			// Integer suffixes are legal in cpp expressions.
			trimmed := strings.TrimRight(text, "uUlL")
			v, err := strconv.ParseInt(trimmed, 0, 64)
			if err != nil {
				return nil, fmt.Errorf("bad integer %q", text)
			}
			toks = append(toks, token{kind: 'i', text: text, v: v})
			i = j
		case isIdentStart(c):
			j := i
			for j < len(src) && isIdentChar(src[j]) {
				j++
			}
			toks = append(toks, token{kind: 'n', text: src[i:j]})
			i = j
		default:
			op := ""
			for _, o := range operators {
				if strings.HasPrefix(src[i:], o) {
					op = o
					break
				}
			}
			if op == "" {
				return nil, fmt.Errorf("bad token at %q", src[i:])
			}
			toks = append(toks, token{kind: 'o', text: op})
			i += len(op)
		}
	}
	toks = append(toks, token{})
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
}

// Parse parses src as a cpp constant expression over the supported subset:
// integer literals, defined(X), bare identifiers, !, unary +/-, && || ==
// != < > <= >= + - and parentheses.
func Parse(src string) (Expr, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != 0 {
		return nil, fmt.Errorf("unexpected %q", p.cur().text)
	}
	return e, nil
}

func (p *parser) cur() token { return p.toks[p.pos] }

func (p *parser) eat(op string) bool {
	if p.cur().kind == 'o' && p.cur().text == op {
		p.pos++
		return true
	}
	return false
}

func (p *parser) or() (Expr, error) {
	e, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.eat("||") {
		y, err := p.and()
		if err != nil {
			return nil, err
		}
		e = &Binary{Op: "||", X: e, Y: y}
	}
	return e, nil
}

func (p *parser) and() (Expr, error) {
	e, err := p.equality()
	if err != nil {
		return nil, err
	}
	for p.eat("&&") {
		y, err := p.equality()
		if err != nil {
			return nil, err
		}
		e = &Binary{Op: "&&", X: e, Y: y}
	}
	return e, nil
}

func (p *parser) equality() (Expr, error) {
	e, err := p.relational()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch {
		case p.eat("=="):
			op = "=="
		case p.eat("!="):
			op = "!="
		default:
			return e, nil
		}
		y, err := p.relational()
		if err != nil {
			return nil, err
		}
		e = &Binary{Op: op, X: e, Y: y}
	}
}

func (p *parser) relational() (Expr, error) {
	e, err := p.additive()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch {
		case p.eat("<="):
			op = "<="
		case p.eat(">="):
			op = ">="
		case p.eat("<"):
			op = "<"
		case p.eat(">"):
			op = ">"
		default:
			return e, nil
		}
		y, err := p.additive()
		if err != nil {
			return nil, err
		}
		e = &Binary{Op: op, X: e, Y: y}
	}
}

func (p *parser) additive() (Expr, error) {
	e, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch {
		case p.eat("+"):
			op = "+"
		case p.eat("-"):
			op = "-"
		default:
			return e, nil
		}
		y, err := p.unary()
		if err != nil {
			return nil, err
		}
		e = &Binary{Op: op, X: e, Y: y}
	}
}

func (p *parser) unary() (Expr, error) {
	for _, op := range []string{"!", "-", "+"} {
		if p.eat(op) {
			x, err := p.unary()
			if err != nil {
				return nil, err
			}
			return &Unary{Op: op[0], X: x}, nil
		}
	}
	return p.primary()
}

func (p *parser) primary() (Expr, error) {
	t := p.cur()
	switch t.kind {
	case 'i':
		p.pos++
		return &Int{V: t.v}, nil
	case 'n':
		p.pos++
		if t.text != "defined" {
			return &Ident{Name: t.text}, nil
		}
		// defined(X) or defined X
		if p.eat("(") {
			name := p.cur()
			if name.kind != 'n' {
				return nil, fmt.Errorf("defined: want identifier, got %q", name.text)
			}
			p.pos++
			if !p.eat(")") {
				return nil, fmt.Errorf("defined(%s: missing )", name.text)
			}
			return &Defined{Name: name.text}, nil
		}
		name := p.cur()
		if name.kind != 'n' {
			return nil, fmt.Errorf("defined: want identifier, got %q", name.text)
		}
		p.pos++
		return &Defined{Name: name.text}, nil
	case 'o':
		if t.text == "(" {
			p.pos++
			e, err := p.or()
			if err != nil {
				return nil, err
			}
			if !p.eat(")") {
				return nil, fmt.Errorf("missing )")
			}
			return e, nil
		}
	}
	return nil, fmt.Errorf("unexpected %q", t.text)
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}
