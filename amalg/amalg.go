// Copyright 2025 The Amalgamate Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package amalg drives one amalgamation run: it traverses the include
// graph from a root header, prunes provably dead preprocessor branches,
// hoists surviving system includes, merges copyright notices and emits a
// single consolidated header.
//
// The run is single threaded and fully synchronous. All mutable state
// (the policy, the emitted-include sets, the copyright table) is owned by
// the driver and passed by reference through the traversal.
package amalg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	glog "github.com/golang/glog"

	"github.com/singleheader/amalgamate/cpp"
	"github.com/singleheader/amalgamate/o11y/clog"
	"github.com/singleheader/amalgamate/policy"
	"github.com/singleheader/amalgamate/scan"
)

// Error kinds, mapped to exit codes by the caller.
var (
	// ErrNotFound is an unreadable input or an unresolved local include.
	ErrNotFound = errors.New("file not found")
	// ErrOutput is an I/O failure writing the output.
	ErrOutput = errors.New("cannot write output")
	// ErrCycle is a cyclic inclusion that re-enters the root file.
	// Other cycles are recoverable: the second inclusion is skipped.
	ErrCycle = errors.New("cyclic include")
)

// outLine is one line of assembled output. ph marks placeholder lines of
// the root file that the post passes substitute.
type outLine struct {
	text string
	ph   string
}

// Amalgamator owns the state of one run.
type Amalgamator struct {
	policy *policy.Policy
	diag   *log.Logger

	rootPath   string // canonical path of the root file
	hoist      bool   // root carries an {{includes}} placeholder
	hoisted    []outLine
	inProgress map[string]bool
	consumed   []string // canonical paths in first-consumed order
	copyrights *copyrightSet

	warnedNoHoist bool
}

// New returns an amalgamator over the given policy. diag receives the
// user-facing warning stream; nil uses a default stderr logger.
func New(p *policy.Policy, diag *log.Logger) *Amalgamator {
	if diag == nil {
		diag = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
	}
	a := &Amalgamator{
		policy:     p,
		diag:       diag,
		inProgress: make(map[string]bool),
		copyrights: newCopyrightSet(),
	}
	p.Warnf = func(format string, args ...any) {
		diag.Warnf(format, args...)
	}
	return a
}

func (a *Amalgamator) warnf(path string, lineno int, format string, args ...any) {
	a.diag.Warnf("%s:%d: %s", path, lineno, fmt.Sprintf(format, args...))
}

// Run amalgamates the header at input and writes the result to output.
// An empty output writes to stdout.
func (a *Amalgamator) Run(ctx context.Context, input, output string) error {
	root, err := filepath.Abs(input)
	if err != nil {
		return err
	}
	root = filepath.Clean(root)
	buf, err := os.ReadFile(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	a.rootPath = root
	if a.policy.BaseDir == "" {
		a.policy.BaseDir = filepath.Dir(root)
	}

	lines := scan.File(clog.WithPos(ctx, input, 0), root, buf)
	for _, l := range lines {
		if l.Kind == scan.KindPlaceholder && l.Ph == scan.PlaceholderIncludes {
			a.hoist = true
			break
		}
	}
	if glog.V(1) {
		clog.Infof(ctx, "amalgamate %s lines:%d hoist:%t", input, len(lines), a.hoist)
	}

	a.inProgress[root] = true
	a.policy.MarkParsed(root)
	a.consumed = append(a.consumed, root)
	w := &walker{a: a, path: root, dir: filepath.Dir(root), root: true}
	if err := w.parts(ctx, cpp.Build(ctx, lines)); err != nil {
		return err
	}
	w.flush()
	delete(a.inProgress, root)

	out := w.out
	out = a.placeIncludes(ctx, out)
	out = a.placeCopyrights(ctx, out)
	out, err = a.expandRevisions(ctx, out)
	if err != nil {
		return err
	}
	out, err = a.expandStats(ctx, out)
	if err != nil {
		return err
	}
	return a.write(ctx, output, render(out))
}

// write emits the final text. A failed write removes the partial output.
func (a *Amalgamator) write(ctx context.Context, output, text string) error {
	if output == "" {
		_, err := os.Stdout.WriteString(text)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrOutput, err)
		}
		return nil
	}
	if err := os.WriteFile(output, []byte(text), 0644); err != nil {
		os.Remove(output)
		return fmt.Errorf("%w: %v", ErrOutput, err)
	}
	if glog.V(1) {
		clog.Infof(ctx, "wrote %d bytes to %s", len(text), output)
	}
	return nil
}

// render joins assembled lines, collapsing runs of more than two blank
// lines and trimming blanks at both ends. No other whitespace rewriting
// occurs.
func render(out []outLine) string {
	var sb strings.Builder
	blanks := 0
	wrote := false
	for _, l := range out {
		if strings.TrimSpace(l.text) == "" {
			blanks++
			continue
		}
		if wrote {
			for i := 0; i < blanks && i < 2; i++ {
				sb.WriteByte('\n')
			}
		}
		blanks = 0
		sb.WriteString(l.text)
		sb.WriteByte('\n')
		wrote = true
	}
	return sb.String()
}
