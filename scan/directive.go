// Copyright 2025 The Amalgamate Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scan

import (
	"context"
	"strings"

	log "github.com/golang/glog"

	"github.com/singleheader/amalgamate/o11y/clog"
)

// DirKind classifies a preprocessor directive.
type DirKind int

const (
	DirOther DirKind = iota
	DirInclude
	DirIf
	DirIfdef
	DirIfndef
	DirElif
	DirElse
	DirEndif
	DirDefine
	DirUndef
	DirPragma // #pragma ACME only; other pragmas stay DirOther
)

// Directive is a parsed preprocessor directive line.
type Directive struct {
	Kind    DirKind
	Indent  string // whitespace before '#', preserved on emission
	Name    string // directive name as written
	Args    string // payload after the name, comments stripped, trimmed
	Trailer string // trailing comment including one leading space, or ""

	// Include payload.
	Spec   string // with delimiters: `<x.h>` or `"x.h"`
	File   string // inner path
	System bool   // angle-bracket form

	// Pragma ACME payload.
	Verb  string
	Value string

	// define/undef/ifdef/ifndef payload.
	Ident string
	Body  string // define replacement body, may be empty
}

// parseDirective classifies a '#' line. text is the logical line, code is
// text with comment bytes blanked, spans are the comment regions.
func parseDirective(ctx context.Context, text, code string, spans []span) *Directive {
	d := &Directive{Kind: DirOther}

	i := strings.IndexByte(code, '#')
	d.Indent = text[:i]
	rest := strings.TrimLeft(code[i+1:], " \t")
	nameStart := len(code) - len(rest)
	j := 0
	for j < len(rest) && (isIdentByte(rest[j]) || rest[j] == '_') {
		j++
	}
	d.Name = rest[:j]
	d.Args = strings.TrimSpace(rest[j:])

	// A comment that runs to the end of the line is kept as a trailer so
	// rewritten directives can preserve it.
	if n := len(spans); n > 0 {
		last := spans[n-1]
		if last.start > nameStart && strings.TrimSpace(code[last.end:]) == "" {
			d.Trailer = " " + strings.TrimSpace(text[last.start:last.end])
		}
	}

	switch d.Name {
	case "include":
		d.Kind = DirInclude
		if !parseIncludeSpec(d) {
			d.Kind = DirOther
		}
	case "if":
		d.Kind = DirIf
	case "elif":
		d.Kind = DirElif
	case "else":
		d.Kind = DirElse
	case "endif":
		d.Kind = DirEndif
	case "ifdef", "ifndef":
		if d.Name == "ifdef" {
			d.Kind = DirIfdef
		} else {
			d.Kind = DirIfndef
		}
		d.Ident = firstToken(d.Args)
	case "define":
		d.Kind = DirDefine
		d.Ident = firstToken(d.Args)
		d.Body = strings.TrimSpace(strings.TrimPrefix(d.Args, d.Ident))
	case "undef":
		d.Kind = DirUndef
		d.Ident = firstToken(d.Args)
	case "pragma":
		fields := strings.Fields(d.Args)
		if len(fields) == 0 || fields[0] != "ACME" {
			break
		}
		d.Kind = DirPragma
		if len(fields) > 1 {
			d.Verb = fields[1]
			d.Value = strings.TrimSpace(strings.Join(fields[2:], " "))
		}
	default:
		if log.V(2) {
			clog.Infof(ctx, "pass through directive %q", d.Name)
		}
	}
	return d
}

// parseIncludeSpec extracts the include spec from the directive payload so
// the inner path keeps its exact spelling.
func parseIncludeSpec(d *Directive) bool {
	args := d.Args
	if args == "" {
		return false
	}
	var close byte
	switch args[0] {
	case '<':
		close = '>'
		d.System = true
	case '"':
		close = '"'
	default:
		// #include MACRO and other forms pass through unexpanded.
		return false
	}
	i := strings.IndexByte(args[1:], close)
	if i < 0 {
		return false
	}
	d.File = args[1 : 1+i]
	d.Spec = args[:i+2]
	return true
}

// IncludeText renders the canonical directive for the include, without
// indentation or trailing comments. Hoisted includes are emitted this way.
func (d *Directive) IncludeText() string {
	return "#include " + d.Spec
}

func firstToken(s string) string {
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s
	}
	return s[:i]
}

func isIdentByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
