// Copyright 2025 The Amalgamate Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package cpp

import (
	"context"

	log "github.com/golang/glog"

	"github.com/singleheader/amalgamate/o11y/clog"
	"github.com/singleheader/amalgamate/scan"
)

// Part is one element of a file body: either a plain line or a nested
// conditional construct.
type Part struct {
	Line scan.Line
	Cond *Node // non-nil for an #if/#elif/#else/#endif construct
}

// Node is a whole conditional construct. Arms appear in source order;
// an #else arm has a nil Expr.
type Node struct {
	Arms  []*Arm
	Endif scan.Line // zero when the construct was unterminated
}

// Arm is one branch of a conditional construct.
type Arm struct {
	Line scan.Line
	Expr Expr  // nil for #else, or when the condition failed to parse
	Err  error // condition parse error, reported as a warning
	Else bool
	Body []Part
}

// Build arranges lines into a part sequence, nesting conditionals.
// Conditions of #if/#elif arms are parsed here; #ifdef X and #ifndef X
// are sugared to defined(X) and !defined(X). Unbalanced directives never
// fail the build: stray #elif/#else/#endif pass through as plain lines,
// and an unterminated #if is closed at end of input.
func Build(ctx context.Context, lines []scan.Line) []Part {
	root := []Part{}
	// stack of open nodes; parts are appended to the top arm's body.
	var stack []*Node
	top := func() *Node { return stack[len(stack)-1] }
	appendPart := func(p Part) {
		if len(stack) == 0 {
			root = append(root, p)
			return
		}
		n := top()
		arm := n.Arms[len(n.Arms)-1]
		arm.Body = append(arm.Body, p)
	}

	for _, l := range lines {
		if l.Kind != scan.KindDirective {
			appendPart(Part{Line: l})
			continue
		}
		d := l.Dir
		switch d.Kind {
		case scan.DirIf, scan.DirIfdef, scan.DirIfndef:
			arm := &Arm{Line: l}
			arm.Expr, arm.Err = armCond(d)
			stack = append(stack, &Node{Arms: []*Arm{arm}})
		case scan.DirElif:
			if len(stack) == 0 || top().sealed() {
				clog.Warningf(ctx, "%s:%d: #elif without #if", l.Path, l.Lineno)
				appendPart(Part{Line: l})
				continue
			}
			arm := &Arm{Line: l}
			arm.Expr, arm.Err = armCond(d)
			top().Arms = append(top().Arms, arm)
		case scan.DirElse:
			if len(stack) == 0 || top().sealed() {
				clog.Warningf(ctx, "%s:%d: #else without #if", l.Path, l.Lineno)
				appendPart(Part{Line: l})
				continue
			}
			top().Arms = append(top().Arms, &Arm{Line: l, Else: true})
		case scan.DirEndif:
			if len(stack) == 0 {
				clog.Warningf(ctx, "%s:%d: #endif without #if", l.Path, l.Lineno)
				appendPart(Part{Line: l})
				continue
			}
			n := top()
			n.Endif = l
			stack = stack[:len(stack)-1]
			appendPart(Part{Cond: n})
		default:
			appendPart(Part{Line: l})
		}
	}

	// Unterminated constructs: close them at end of input.
	for len(stack) > 0 {
		n := top()
		l := n.Arms[0].Line
		clog.Warningf(ctx, "%s:%d: unterminated %s", l.Path, l.Lineno, l.Dir.Name)
		stack = stack[:len(stack)-1]
		appendPart(Part{Cond: n})
	}
	if log.V(2) {
		clog.Infof(ctx, "built %d top-level parts", len(root))
	}
	return root
}

// sealed reports whether the node already has an #else arm, after which
// further #elif/#else belong to a malformed source.
func (n *Node) sealed() bool {
	return n.Arms[len(n.Arms)-1].Else
}

func armCond(d *scan.Directive) (Expr, error) {
	switch d.Kind {
	case scan.DirIfdef:
		return &Defined{Name: d.Ident}, nil
	case scan.DirIfndef:
		return &Unary{Op: '!', X: &Defined{Name: d.Ident}}, nil
	}
	return Parse(d.Args)
}
