// Copyright 2025 The Amalgamate Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package scan reads C/C++ header sources into classified logical lines.
//
// The scanner recognizes just enough of the language to not misread
// preprocessor directives: it joins backslash continuations, tracks block
// comments across lines, and ignores comment openers inside string and
// character literals. It never fails on malformed input; anything it does
// not understand is classified as Code and passed through verbatim.
package scan

import (
	"context"
	"strings"

	log "github.com/golang/glog"

	"github.com/singleheader/amalgamate/o11y/clog"
)

// Kind classifies a logical line.
type Kind int

const (
	KindBlank Kind = iota
	KindCode
	KindComment
	KindDirective
	KindPlaceholder
)

// Placeholder names recognized inside comments.
const (
	PlaceholderIncludes  = "includes"
	PlaceholderCopyright = "copyright"
)

// Line is one logical source line. Text preserves the original bytes
// (including backslash-newline joins) so unmodified lines can be emitted
// verbatim.
type Line struct {
	Text   string
	Path   string
	Lineno int

	Kind Kind
	Dir  *Directive // set when Kind == KindDirective
	Ph   string     // set when Kind == KindPlaceholder

	// Comment structure, used by the comment/copyright post-processor.
	Block  bool // part of a /* */ block comment
	Opens  bool // opens a block comment that continues past this line
	Closes bool // closes a block comment opened on an earlier line
	Doc    bool // doc comment: /** block or /// line

	// Trailing comment on a Code line. -1 when there is none.
	TrailerStart int
	TrailerDoc   bool
}

// StripTrailer returns the line text without its trailing comment,
// with trailing whitespace removed.
func (l Line) StripTrailer() string {
	if l.TrailerStart < 0 {
		return l.Text
	}
	return strings.TrimRight(l.Text[:l.TrailerStart], " \t")
}

type scanner struct {
	inBlock  bool
	blockDoc bool
}

// File scans buf into logical lines. Line endings are normalized to \n.
// It never returns an error; unknown constructs become Code lines.
func File(ctx context.Context, path string, buf []byte) []Line {
	s := &scanner{}
	text := strings.ReplaceAll(string(buf), "\r\n", "\n")
	phys := strings.Split(text, "\n")
	// Drop the empty slot a trailing newline produces.
	if n := len(phys); n > 0 && phys[n-1] == "" {
		phys = phys[:n-1]
	}

	var lines []Line
	for i := 0; i < len(phys); i++ {
		lineno := i + 1
		raw := phys[i]
		// Join physical lines ending in a backslash into one logical line.
		for strings.HasSuffix(raw, `\`) && i+1 < len(phys) {
			i++
			raw += "\n" + phys[i]
		}
		l := s.line(ctx, raw)
		l.Path = path
		l.Lineno = lineno
		if log.V(3) {
			clog.Infof(ctx, "scan %s:%d kind=%d %q", path, lineno, l.Kind, raw)
		}
		lines = append(lines, l)
	}
	return lines
}

// logical returns the line text with continuation backslashes replaced by
// spaces, for parsing. Emission still uses the original Text.
func logical(text string) string {
	return strings.ReplaceAll(text, "\\\n", " ")
}

func (s *scanner) line(ctx context.Context, raw string) Line {
	l := Line{Text: raw, TrailerStart: -1}
	text := logical(raw)

	if s.inBlock {
		l.Kind = KindComment
		l.Block = true
		l.Doc = s.blockDoc
		i := strings.Index(text, "*/")
		if i >= 0 {
			l.Closes = true
			s.inBlock = false
			s.blockDoc = false
			// Anything after the close is rare enough to pass through as
			// part of the comment line.
		}
		if ph := placeholderIn(text); ph != "" {
			l.Kind = KindPlaceholder
			l.Ph = ph
		}
		return l
	}

	code, spans, opens := lex(text)
	codeTrim := strings.TrimSpace(code)

	switch {
	case codeTrim == "" && len(spans) == 0 && !opens:
		l.Kind = KindBlank
		return l
	case codeTrim == "":
		// Pure comment line.
		l.Kind = KindComment
		trim := strings.TrimSpace(text)
		l.Doc = isDocOpen(trim)
		if opens {
			l.Opens = true
			l.Block = true
			s.inBlock = true
			s.blockDoc = l.Doc
		} else if strings.HasPrefix(trim, "/*") {
			l.Block = true
		}
		if ph := placeholderIn(commentText(text, spans)); ph != "" {
			l.Kind = KindPlaceholder
			l.Ph = ph
		}
		return l
	case codeTrim[0] == '#':
		l.Kind = KindDirective
		l.Dir = parseDirective(ctx, text, code, spans)
		if opens {
			s.inBlock = true
			s.blockDoc = false
		}
		return l
	}

	l.Kind = KindCode
	if opens {
		// Code followed by an unclosed block comment; the remainder of the
		// comment arrives as Comment lines.
		s.inBlock = true
		s.blockDoc = false
	}
	if n := len(spans); n > 0 && !opens {
		last := spans[n-1]
		if strings.TrimSpace(text[last.end:]) == "" && strings.TrimSpace(text[:last.start]) != "" {
			l.TrailerStart = last.start
			l.TrailerDoc = isDocOpen(text[last.start:last.end])
		}
	}
	return l
}

// span is a comment region [start, end) within a logical line.
type span struct {
	start, end int
}

// lex splits a logical line into code and comment spans. It returns the
// line with comment bytes blanked out, the comment spans, and whether the
// line opens a block comment that does not close on the same line.
// Comment openers inside string and character literals are ignored;
// strings honor backslash escapes.
func lex(text string) (code string, spans []span, opens bool) {
	buf := []byte(text)
	var quote byte // '"' or '\'' while inside a literal
	for i := 0; i < len(buf); i++ {
		c := buf[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '/':
			if i+1 >= len(buf) {
				break
			}
			switch buf[i+1] {
			case '/':
				spans = append(spans, span{i, len(buf)})
				blank(buf, i, len(buf))
				return string(buf), spans, false
			case '*':
				j := strings.Index(text[i+2:], "*/")
				if j < 0 {
					spans = append(spans, span{i, len(buf)})
					blank(buf, i, len(buf))
					return string(buf), spans, true
				}
				end := i + 2 + j + 2
				spans = append(spans, span{i, end})
				blank(buf, i, end)
				i = end - 1
			}
		}
	}
	return string(buf), spans, false
}

func blank(buf []byte, start, end int) {
	for i := start; i < end; i++ {
		if buf[i] != '\n' {
			buf[i] = ' '
		}
	}
}

func commentText(text string, spans []span) string {
	var sb strings.Builder
	for _, sp := range spans {
		sb.WriteString(text[sp.start:sp.end])
	}
	return sb.String()
}

func placeholderIn(s string) string {
	switch {
	case strings.Contains(s, "{{includes}}"):
		return PlaceholderIncludes
	case strings.Contains(s, "{{copyright}}"):
		return PlaceholderCopyright
	}
	return ""
}

func isDocOpen(s string) bool {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "///") {
		return true
	}
	if strings.HasPrefix(s, "/**") && !strings.HasPrefix(s, "/**/") {
		return true
	}
	return false
}
