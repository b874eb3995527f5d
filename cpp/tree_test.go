// Copyright 2025 The Amalgamate Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package cpp

import (
	"context"
	"testing"

	"github.com/singleheader/amalgamate/scan"
)

func build(t *testing.T, src string) []Part {
	t.Helper()
	ctx := context.Background()
	return Build(ctx, scan.File(ctx, "test.h", []byte(src)))
}

func TestBuildNesting(t *testing.T) {
	parts := build(t, `before
#ifdef A
a1
#if defined(B) && defined(C)
b
#elif defined(D)
d
#else
e
#endif
a2
#endif
after
`)
	if len(parts) != 3 {
		t.Fatalf("got %d top-level parts, want 3", len(parts))
	}
	if parts[0].Line.Text != "before" || parts[2].Line.Text != "after" {
		t.Errorf("surrounding lines misplaced: %q, %q", parts[0].Line.Text, parts[2].Line.Text)
	}
	outer := parts[1].Cond
	if outer == nil {
		t.Fatal("middle part is not a conditional")
	}
	if len(outer.Arms) != 1 {
		t.Fatalf("outer arms: got %d, want 1", len(outer.Arms))
	}
	if got := outer.Arms[0].Expr.String(); got != "defined(A)" {
		t.Errorf("outer condition: got %s", got)
	}
	body := outer.Arms[0].Body
	if len(body) != 3 {
		t.Fatalf("outer body: got %d parts, want 3", len(body))
	}
	inner := body[1].Cond
	if inner == nil {
		t.Fatal("nested conditional not nested")
	}
	if len(inner.Arms) != 3 {
		t.Fatalf("inner arms: got %d, want 3", len(inner.Arms))
	}
	if !inner.Arms[2].Else {
		t.Errorf("third inner arm is not #else")
	}
	if inner.Endif.Text != "#endif" {
		t.Errorf("inner endif: got %q", inner.Endif.Text)
	}
}

func TestBuildIfndefSugar(t *testing.T) {
	parts := build(t, "#ifndef G\n#endif\n")
	if len(parts) != 1 || parts[0].Cond == nil {
		t.Fatalf("got %+v, want one conditional", parts)
	}
	if got := parts[0].Cond.Arms[0].Expr.String(); got != "!defined(G)" {
		t.Errorf("condition: got %s, want !defined(G)", got)
	}
}

func TestBuildStrayDirectives(t *testing.T) {
	// Unbalanced #endif and #else pass through as plain lines.
	parts := build(t, "#endif\n#else\ncode\n")
	for i, p := range parts {
		if p.Cond != nil {
			t.Errorf("part %d became a conditional", i)
		}
	}
	if len(parts) != 3 {
		t.Errorf("got %d parts, want 3", len(parts))
	}
}

func TestBuildUnterminated(t *testing.T) {
	parts := build(t, "#ifdef A\ncode\n")
	if len(parts) != 1 || parts[0].Cond == nil {
		t.Fatalf("got %+v, want one conditional", parts)
	}
	n := parts[0].Cond
	if n.Endif.Text != "" {
		t.Errorf("synthesized endif text: got %q, want empty", n.Endif.Text)
	}
	if len(n.Arms[0].Body) != 1 {
		t.Errorf("body: got %d parts, want 1", len(n.Arms[0].Body))
	}
}

func TestBuildBadCondition(t *testing.T) {
	parts := build(t, "#if FOO ~ BAR\ncode\n#endif\n")
	arm := parts[0].Cond.Arms[0]
	if arm.Err == nil {
		t.Errorf("bad condition: Err not set")
	}
	if arm.Expr != nil {
		t.Errorf("bad condition: Expr = %s, want nil", arm.Expr)
	}
}
