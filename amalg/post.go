// Copyright 2025 The Amalgamate Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package amalg

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	glog "github.com/golang/glog"

	"github.com/singleheader/amalgamate/o11y/clog"
	"github.com/singleheader/amalgamate/scan"
)

// placeIncludes substitutes the hoisted system includes for the first
// {{includes}} placeholder of the root file. If the placeholder got
// pruned away, the includes go to the top of the output instead.
func (a *Amalgamator) placeIncludes(ctx context.Context, out []outLine) []outLine {
	placed := false
	var res []outLine
	for _, l := range out {
		if l.ph != scan.PlaceholderIncludes {
			res = append(res, l)
			continue
		}
		if placed {
			a.diag.Warnf("extra {{includes}} placeholder dropped")
			continue
		}
		placed = true
		res = append(res, a.hoisted...)
	}
	if !placed && len(a.hoisted) > 0 {
		a.diag.Warnf("{{includes}} placeholder did not survive, hoisted includes go first")
		res = append(append([]outLine{}, a.hoisted...), res...)
	}
	if glog.V(1) {
		clog.Infof(ctx, "placed %d hoisted includes", len(a.hoisted))
	}
	return res
}

// placeCopyrights substitutes the merged notice list for the first
// {{copyright}} placeholder. Without a placeholder the collected notices
// are dropped with a warning; without notices the line stays as is.
func (a *Amalgamator) placeCopyrights(ctx context.Context, out []outLine) []outLine {
	if a.copyrights.empty() {
		return out
	}
	placed := false
	var res []outLine
	for _, l := range out {
		if l.ph != scan.PlaceholderCopyright || placed {
			res = append(res, l)
			continue
		}
		placed = true
		for _, text := range a.copyrights.lines() {
			res = append(res, outLine{text: text})
		}
	}
	if !placed {
		a.diag.Warnf("no {{copyright}} placeholder found, ignoring collected copyright notices")
	}
	return res
}

// expandRevisions replaces {{revision}} and {{revision:path}} markers
// with the output of the configured command, run in the directory of the
// first consumed file matching the path selector. The command runs only
// when a marker is present.
func (a *Amalgamator) expandRevisions(ctx context.Context, out []outLine) ([]outLine, error) {
	cmds := a.policy.Revision
	if _, ok := cmds["*"]; !ok {
		cmds["*"] = "git describe --dirty --always"
	}
	for sel, command := range cmds {
		marker := "{{revision}}"
		if sel != "*" {
			marker = "{{revision:" + sel + "}}"
		}
		value := ""
		for i, l := range out {
			if !strings.Contains(l.text, marker) {
				continue
			}
			if value == "" {
				dir, err := a.revisionDir(sel)
				if err != nil {
					a.diag.Warnf("%s not expanded: %v", marker, err)
					break
				}
				value, err = runShell(ctx, command, dir, "")
				if err != nil {
					a.diag.Warnf("%s not expanded: %q: %v", marker, command, err)
					break
				}
			}
			out[i].text = strings.ReplaceAll(l.text, marker, value)
		}
	}
	return out, nil
}

// revisionDir finds the working directory for a revision command: the
// root file's directory for `*`, otherwise the directory of the first
// consumed file whose path contains the selector.
func (a *Amalgamator) revisionDir(sel string) (string, error) {
	if sel == "*" {
		return filepath.Dir(a.rootPath), nil
	}
	for _, p := range a.consumed {
		if strings.Contains(p, sel) {
			return filepath.Dir(p), nil
		}
	}
	return "", fmt.Errorf("no consumed file matches %q", sel)
}

// expandStats replaces {{stats:id}} markers with the output of the
// configured command, fed the assembled text on stdin.
func (a *Amalgamator) expandStats(ctx context.Context, out []outLine) ([]outLine, error) {
	for id, command := range a.policy.Stats {
		marker := "{{stats:" + id + "}}"
		value := ""
		for i, l := range out {
			if !strings.Contains(l.text, marker) {
				continue
			}
			if value == "" {
				var err error
				value, err = runShell(ctx, command, filepath.Dir(a.rootPath), render(out))
				if err != nil {
					a.diag.Warnf("%s not expanded: %q: %v", marker, command, err)
					break
				}
			}
			out[i].text = strings.ReplaceAll(l.text, marker, value)
		}
	}
	return out, nil
}

func runShell(ctx context.Context, command, dir, stdin string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	b, err := cmd.Output()
	if err != nil {
		return "", err
	}
	v := strings.TrimSpace(string(b))
	if v == "" {
		return "", fmt.Errorf("empty output")
	}
	return v, nil
}
