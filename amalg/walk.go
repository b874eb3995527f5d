// Copyright 2025 The Amalgamate Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package amalg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	glog "github.com/golang/glog"

	"github.com/singleheader/amalgamate/cpp"
	"github.com/singleheader/amalgamate/o11y/clog"
	"github.com/singleheader/amalgamate/policy"
	"github.com/singleheader/amalgamate/scan"
)

// walker assembles the output of one source file. Nested includes get
// their own walker; conditional arms are walked with a captured output
// buffer so a construct can be rendered after all arms are decided.
type walker struct {
	a    *Amalgamator
	path string
	dir  string
	root bool

	out []outLine

	// Pending block comment. Comment lines are buffered until the block
	// closes so copyright blocks can be recognized and dropped whole.
	buf []scan.Line
}

func (w *walker) emit(text string) {
	w.out = append(w.out, outLine{text: text})
}

func (w *walker) parts(ctx context.Context, parts []cpp.Part) error {
	for _, p := range parts {
		if p.Cond != nil {
			w.flush()
			if err := w.cond(ctx, p.Cond); err != nil {
				return err
			}
			continue
		}
		if err := w.line(ctx, p.Line); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) line(ctx context.Context, l scan.Line) error {
	// Block comments are buffered; everything else flushes them first.
	if l.Kind == scan.KindComment || l.Kind == scan.KindPlaceholder {
		if l.Block || len(w.buf) > 0 {
			w.buf = append(w.buf, l)
			if l.Closes || (!l.Opens && len(w.buf) == 1) {
				w.flush()
			}
			return nil
		}
		w.lineComment(l)
		return nil
	}
	w.flush()

	switch l.Kind {
	case scan.KindBlank:
		w.emit("")
		return nil
	case scan.KindDirective:
		return w.directive(ctx, l)
	}
	// Code.
	if !w.a.policy.Comments && l.TrailerStart >= 0 && !l.TrailerDoc {
		w.emit(l.StripTrailer())
		return nil
	}
	w.emit(l.Text)
	return nil
}

// lineComment handles a standalone // comment (or a one-line placeholder
// inside one).
func (w *walker) lineComment(l scan.Line) {
	if l.Kind == scan.KindPlaceholder {
		w.placeholder(l)
		return
	}
	if w.a.policy.Comments || l.Doc {
		w.emit(l.Text)
	}
}

func (w *walker) placeholder(l scan.Line) {
	if !w.root {
		// Hoist and copyright points are defined by the root file only.
		if glog.V(1) {
			clog.Infof(context.Background(), "ignore placeholder %s in %s", l.Ph, l.Path)
		}
		w.emit(l.Text)
		return
	}
	w.out = append(w.out, outLine{text: l.Text, ph: l.Ph})
}

func (w *walker) directive(ctx context.Context, l scan.Line) error {
	d := l.Dir
	switch d.Kind {
	case scan.DirInclude:
		return w.include(ctx, l)
	case scan.DirDefine:
		if w.a.policy.Forced(d.Ident) {
			return nil
		}
		if d.Body == "" && d.Ident != "" && !w.a.policy.MarkDefined(d.Ident) {
			// Bare #define seen before and not forgotten.
			return nil
		}
		w.emit(l.Text)
		return nil
	case scan.DirUndef:
		if w.a.policy.Forced(d.Ident) {
			return nil
		}
		w.emit(l.Text)
		return nil
	case scan.DirPragma:
		err := w.a.policy.Apply(ctx, d.Verb, d.Value)
		switch {
		case errors.Is(err, policy.ErrUnknownVerb):
			w.a.warnf(l.Path, l.Lineno, "%v", err)
			return nil
		case err != nil:
			return fmt.Errorf("%s:%d: %w", l.Path, l.Lineno, err)
		}
		return nil
	}
	w.emit(l.Text)
	return nil
}

// flush decides the fate of a buffered comment block: copyright blocks
// are harvested and dropped, doc blocks always survive, other blocks
// survive only while comments are on. The root block holding the
// {{copyright}} placeholder is kept for the merge pass.
func (w *walker) flush() {
	buf := w.buf
	w.buf = nil
	if len(buf) == 0 {
		return
	}

	harvested := w.a.copyrights.scanBlock(buf)
	hasPlaceholder := false
	for _, l := range buf {
		if l.Kind == scan.KindPlaceholder {
			hasPlaceholder = true
		}
	}

	if len(harvested) > 0 && !hasPlaceholder {
		// A copyright block from a consumed header; its notices live on
		// in the merged list.
		return
	}
	if !w.a.policy.Comments && !buf[0].Doc && !hasPlaceholder {
		return
	}
	for i, l := range buf {
		if l.Kind == scan.KindPlaceholder {
			w.placeholder(l)
			continue
		}
		if harvested[i] {
			continue
		}
		w.emit(l.Text)
	}
}

// cond simplifies and renders one conditional construct. Arms are
// processed in document order so pragmas inside an earlier arm steer the
// evaluation of later conditions. An inner construct never promotes the
// state of its enclosing arm.
func (w *walker) cond(ctx context.Context, n *cpp.Node) error {
	type result struct {
		arm  *cpp.Arm
		st   cpp.Value
		body []outLine
	}
	var kept []result
	anyTrue := false
	allFalse := true
	sawUnknown := false
	for _, arm := range n.Arms {
		var st cpp.Value
		switch {
		case anyTrue:
			// Arms after a decisive arm are unreachable.
			st = cpp.False
		case arm.Else:
			switch {
			case allFalse:
				st = cpp.True
			case sawUnknown:
				st = cpp.Unknown
			default:
				st = cpp.False
			}
		case arm.Err != nil:
			w.a.warnf(arm.Line.Path, arm.Line.Lineno, "cannot evaluate condition %q: %v", arm.Line.Dir.Args, arm.Err)
			st = cpp.Unknown
		default:
			st = cpp.Eval(arm.Expr, w.a.policy)
		}
		if glog.V(2) {
			clog.Infof(ctx, "%s:%d: arm %s -> %s", arm.Line.Path, arm.Line.Lineno, arm.Line.Dir.Name, st)
		}
		switch st {
		case cpp.False:
			// Dead arm: the body is neither walked nor emitted, so its
			// includes and pragmas never take effect.
			continue
		case cpp.True:
			anyTrue = true
		case cpp.Unknown:
			sawUnknown = true
			allFalse = false
		}
		body, err := w.capture(ctx, arm.Body)
		if err != nil {
			return err
		}
		kept = append(kept, result{arm: arm, st: st, body: body})
	}

	if len(kept) == 0 {
		return nil
	}
	// A decisive arm with only dead arms before it replaces the whole
	// construct.
	if kept[0].st == cpp.True {
		w.out = append(w.out, kept[0].body...)
		return nil
	}
	// Delete the construct when nothing is left inside it.
	empty := true
	for _, k := range kept {
		for _, l := range k.body {
			if strings.TrimSpace(l.text) != "" {
				empty = false
			}
		}
	}
	if empty {
		return nil
	}

	single := len(kept) == 1
	for i, k := range kept {
		w.emit(w.renderArm(k.arm, k.st, i == 0, single))
		w.out = append(w.out, k.body...)
	}
	if n.Endif.Text != "" {
		w.emit(n.Endif.Text)
	} else {
		w.emit(kept[0].arm.Line.Dir.Indent + "#endif")
	}
	return nil
}

// renderArm rewrites the directive line of a kept arm. The first kept arm
// always renders as an #if form; a decisive or #else arm after unknown
// arms renders as #else. A lone defined(X) / !defined(X) condition is
// normalized to #ifdef / #ifndef for readability.
func (w *walker) renderArm(arm *cpp.Arm, st cpp.Value, first, single bool) string {
	d := arm.Line.Dir
	if !first {
		if arm.Else || st == cpp.True {
			return d.Indent + "#else" + d.Trailer
		}
		return arm.Line.Text // surviving #elif, verbatim
	}
	if single && !arm.Else {
		if name, neg, ok := cpp.DefinedIdent(arm.Expr); ok {
			if neg {
				return d.Indent + "#ifndef " + name + d.Trailer
			}
			return d.Indent + "#ifdef " + name + d.Trailer
		}
	}
	switch d.Kind {
	case scan.DirIf, scan.DirIfdef, scan.DirIfndef:
		return arm.Line.Text
	}
	// An #elif promoted to the head of the construct.
	return d.Indent + "#if " + d.Args + d.Trailer
}

// capture walks parts into a detached buffer.
func (w *walker) capture(ctx context.Context, parts []cpp.Part) ([]outLine, error) {
	saved := w.out
	w.out = nil
	err := w.parts(ctx, parts)
	w.flush()
	body := w.out
	w.out = saved
	return body, err
}
