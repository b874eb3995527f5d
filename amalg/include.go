// Copyright 2025 The Amalgamate Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package amalg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	glog "github.com/golang/glog"

	"github.com/singleheader/amalgamate/cpp"
	"github.com/singleheader/amalgamate/o11y/clog"
	"github.com/singleheader/amalgamate/scan"
)

// include resolves one #include directive against the policy: no-expand
// specs and system includes are emitted (the latter hoisted and
// deduplicated), everything else is recursively inlined in place.
func (w *walker) include(ctx context.Context, l scan.Line) error {
	d := l.Dir
	inner := d.File
	if w.a.policy.NoExpand(inner) {
		w.emit(l.Text)
		return nil
	}

	forgotten := w.a.policy.TakeForget(inner)

	if d.System && !w.a.policy.LocalPrefix(inner) {
		if !w.a.policy.MarkEmitted(d.Spec) {
			if glog.V(1) {
				clog.Infof(ctx, "%s:%d: drop duplicate %s", l.Path, l.Lineno, d.Spec)
			}
			return nil
		}
		if forgotten || !w.a.hoist {
			// Forgotten includes come back verbatim at their position; so
			// do all system includes when the root has no hoist point.
			if !w.a.hoist && !forgotten && !w.a.warnedNoHoist {
				w.a.warnedNoHoist = true
				w.a.warnf(l.Path, l.Lineno, "no {{includes}} placeholder, system includes stay at their original positions")
			}
			w.emit(l.Text)
			return nil
		}
		w.a.hoisted = append(w.a.hoisted, outLine{text: d.IncludeText()})
		return nil
	}

	resolved := w.resolve(d)
	if resolved == "" {
		return fmt.Errorf("%s:%d: cannot resolve %s in %q: %w",
			l.Path, l.Lineno, d.Spec, append([]string{w.dir}, w.a.policy.Paths...), ErrNotFound)
	}
	canonical, err := filepath.Abs(resolved)
	if err != nil {
		return err
	}
	canonical = filepath.Clean(canonical)

	if forgotten {
		w.a.policy.ForgetParsed(canonical)
	}
	if w.a.inProgress[canonical] {
		if canonical == w.a.rootPath {
			return fmt.Errorf("%s:%d: %s includes the root file: %w", l.Path, l.Lineno, d.Spec, ErrCycle)
		}
		w.a.warnf(l.Path, l.Lineno, "cyclic include of %s, skipping", d.Spec)
		return nil
	}
	if !w.a.policy.MarkParsed(canonical) {
		if glog.V(1) {
			clog.Infof(ctx, "%s:%d: %s already inlined", l.Path, l.Lineno, d.Spec)
		}
		return nil
	}
	return w.inline(ctx, l, canonical)
}

// resolve searches for the include target: the directory of the including
// file first (quoted form only), then the policy search paths in order.
func (w *walker) resolve(d *scan.Directive) string {
	var dirs []string
	if !d.System {
		dirs = append(dirs, w.dir)
	}
	dirs = append(dirs, w.a.policy.Paths...)
	for _, dir := range dirs {
		p := filepath.Join(dir, filepath.FromSlash(d.File))
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return ""
}

// inline parses the resolved file and splices its surviving body at the
// include position, with the include guard elided.
func (w *walker) inline(ctx context.Context, l scan.Line, canonical string) error {
	buf, err := os.ReadFile(canonical)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if glog.V(1) {
		clog.Infof(ctx, "%s:%d: inline %s", l.Path, l.Lineno, canonical)
	}
	w.a.consumed = append(w.a.consumed, canonical)

	ctx = clog.WithPos(ctx, canonical, 0)
	parts := cpp.Build(ctx, scan.File(ctx, canonical, buf))
	parts, guard := elideGuard(parts)
	if guard != "" {
		w.a.policy.MarkDefined(guard)
		if glog.V(1) {
			clog.Infof(ctx, "elided include guard %s", guard)
		}
	}

	w.a.inProgress[canonical] = true
	sub := &walker{a: w.a, path: canonical, dir: filepath.Dir(canonical)}
	err = sub.parts(ctx, parts)
	sub.flush()
	delete(w.a.inProgress, canonical)
	if err != nil {
		return err
	}

	body := trimBlank(sub.out)
	w.out = append(w.out, body...)
	return nil
}

// elideGuard removes a well-formed include guard: a single conditional
// covering the whole file, of the form #ifndef G / #define G / ... /
// #endif, allowing blank and comment lines around the endpoints. It
// returns the guard identifier, or "" when the file has no guard.
func elideGuard(parts []cpp.Part) ([]cpp.Part, string) {
	idx := -1
	for i, p := range parts {
		if p.Cond != nil {
			if idx >= 0 {
				return parts, "" // more than one top-level conditional
			}
			idx = i
			continue
		}
		if !incidental(p.Line) {
			return parts, ""
		}
	}
	if idx < 0 {
		return parts, ""
	}
	n := parts[idx].Cond
	if len(n.Arms) != 1 {
		return parts, ""
	}
	arm := n.Arms[0]
	name, neg, ok := cpp.DefinedIdent(arm.Expr)
	if !ok || !neg {
		return parts, ""
	}
	// The first meaningful line of the body must define the guard.
	body := arm.Body
	for len(body) > 0 && body[0].Cond == nil && incidental(body[0].Line) {
		body = body[1:]
	}
	if len(body) == 0 || body[0].Cond != nil {
		return parts, ""
	}
	d := body[0].Line.Dir
	if body[0].Line.Kind != scan.KindDirective || d.Kind != scan.DirDefine || d.Ident != name {
		return parts, ""
	}
	body = body[1:]

	var out []cpp.Part
	out = append(out, parts[:idx]...)
	out = append(out, body...)
	out = append(out, parts[idx+1:]...)
	return out, name
}

// incidental reports whether a line may surround an include guard without
// breaking it.
func incidental(l scan.Line) bool {
	switch l.Kind {
	case scan.KindBlank, scan.KindComment, scan.KindPlaceholder:
		return true
	}
	return false
}

func trimBlank(out []outLine) []outLine {
	for len(out) > 0 && strings.TrimSpace(out[len(out)-1].text) == "" {
		out = out[:len(out)-1]
	}
	for len(out) > 0 && strings.TrimSpace(out[0].text) == "" {
		out = out[1:]
	}
	return out
}
