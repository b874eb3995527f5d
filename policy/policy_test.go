// Copyright 2025 The Amalgamate Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package policy

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/singleheader/amalgamate/cpp"
)

func TestEnableDisable(t *testing.T) {
	ctx := context.Background()
	p := New()
	if err := p.Apply(ctx, "enable", "FOO"); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if err := p.Apply(ctx, "disable", "BAR"); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if got := p.Defined("FOO"); got != cpp.True {
		t.Errorf("Defined(FOO) = %s, want TRUE", got)
	}
	if got := p.Defined("BAR"); got != cpp.False {
		t.Errorf("Defined(BAR) = %s, want FALSE", got)
	}
	if got := p.Defined("BAZ"); got != cpp.Unknown {
		t.Errorf("Defined(BAZ) = %s, want UNKNOWN", got)
	}
	if v, st := p.Lookup("FOO"); v != 1 || st != cpp.True {
		t.Errorf("Lookup(FOO) = %d,%s, want 1,TRUE", v, st)
	}
	if !p.Forced("FOO") || !p.Forced("BAR") || p.Forced("BAZ") {
		t.Errorf("Forced: FOO=%t BAR=%t BAZ=%t", p.Forced("FOO"), p.Forced("BAR"), p.Forced("BAZ"))
	}

	// The last pragma wins.
	if err := p.Apply(ctx, "disable", "FOO"); err != nil {
		t.Fatalf("disable FOO: %v", err)
	}
	if got := p.Defined("FOO"); got != cpp.False {
		t.Errorf("Defined(FOO) after disable = %s, want FALSE", got)
	}
}

func TestEnableValue(t *testing.T) {
	p := New()
	p.Enable("VERSION", 3)
	if v, st := p.Lookup("VERSION"); v != 3 || st != cpp.True {
		t.Errorf("Lookup(VERSION) = %d,%s, want 3,TRUE", v, st)
	}
}

func TestComments(t *testing.T) {
	ctx := context.Background()
	p := New()
	if !p.Comments {
		t.Fatal("comments default off")
	}
	if err := p.Apply(ctx, "comments", "off"); err != nil || p.Comments {
		t.Errorf("comments off: err=%v comments=%t", err, p.Comments)
	}
	if err := p.Apply(ctx, "comments", "on"); err != nil || !p.Comments {
		t.Errorf("comments on: err=%v comments=%t", err, p.Comments)
	}
	err := p.Apply(ctx, "comments", "maybe")
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("comments maybe: err=%v, want ErrMalformed", err)
	}
}

func TestPath(t *testing.T) {
	ctx := context.Background()
	p := New()
	p.BaseDir = filepath.FromSlash("/src/lib")
	if err := p.Apply(ctx, "path", "sub"); err != nil {
		t.Fatal(err)
	}
	if err := p.Apply(ctx, "path", filepath.FromSlash("/abs/dir")); err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.FromSlash("/src/lib/sub"), filepath.FromSlash("/abs/dir")}
	if diff := cmp.Diff(want, p.Paths); diff != "" {
		t.Errorf("Paths: diff -want +got:\n%s", diff)
	}
}

func TestLocalPrefix(t *testing.T) {
	ctx := context.Background()
	p := New()
	if err := p.Apply(ctx, "local", "Corrade"); err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		inner string
		want  bool
	}{
		{"Corrade/Utility/Debug.h", true},
		{"Corrade", true},
		{"CorradeX/Other.h", false},
		{"vector", false},
	} {
		if got := p.LocalPrefix(tc.inner); got != tc.want {
			t.Errorf("LocalPrefix(%q) = %t, want %t", tc.inner, got, tc.want)
		}
	}
}

func TestNoExpand(t *testing.T) {
	ctx := context.Background()
	p := New()
	if err := p.Apply(ctx, "noexpand", "noexpand.h"); err != nil {
		t.Fatal(err)
	}
	if err := p.Apply(ctx, "noexpand", "<spec.h>"); err != nil {
		t.Fatal(err)
	}
	if !p.NoExpand("noexpand.h") || !p.NoExpand("spec.h") {
		t.Errorf("NoExpand: %t %t, want true true", p.NoExpand("noexpand.h"), p.NoExpand("spec.h"))
	}
}

func TestForgetInclude(t *testing.T) {
	ctx := context.Background()
	p := New()
	var warnings []string
	p.Warnf = func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	if !p.MarkEmitted("<string>") {
		t.Fatal("first MarkEmitted = false")
	}
	if p.MarkEmitted("<string>") {
		t.Fatal("duplicate MarkEmitted = true")
	}
	if err := p.Apply(ctx, "forget", "<string>"); err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 0 {
		t.Fatalf("forget of emitted include warned: %q", warnings)
	}
	if !p.TakeForget("string") {
		t.Error("TakeForget after forget = false")
	}
	if p.TakeForget("string") {
		t.Error("TakeForget consumed twice")
	}
	if !p.MarkEmitted("<string>") {
		t.Error("MarkEmitted after forget = false")
	}

	// A second forget with no include in between warns.
	if err := p.Apply(ctx, "forget", "<vector>"); err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 1 {
		t.Errorf("forget of unemitted include: %d warnings, want 1", len(warnings))
	}
}

func TestForgetIdentifier(t *testing.T) {
	ctx := context.Background()
	p := New()
	var warnings []string
	p.Warnf = func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	if !p.MarkDefined("CORRADE_ASSERT") {
		t.Fatal("first MarkDefined = false")
	}
	if p.MarkDefined("CORRADE_ASSERT") {
		t.Fatal("duplicate MarkDefined = true")
	}
	if err := p.Apply(ctx, "forget", "CORRADE_ASSERT"); err != nil {
		t.Fatal(err)
	}
	if !p.MarkDefined("CORRADE_ASSERT") {
		t.Error("MarkDefined after forget = false")
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %q", warnings)
	}

	if err := p.Apply(ctx, "forget", "NEVER_DEFINED"); err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 1 {
		t.Errorf("forget of undefined identifier: %d warnings, want 1", len(warnings))
	}
}

func TestForgetParsed(t *testing.T) {
	p := New()
	if !p.MarkParsed("/a/b.h") {
		t.Fatal("first MarkParsed = false")
	}
	if p.MarkParsed("/a/b.h") {
		t.Fatal("duplicate MarkParsed = true")
	}
	p.ForgetParsed("/a/b.h")
	if !p.MarkParsed("/a/b.h") {
		t.Error("MarkParsed after ForgetParsed = false")
	}
}

func TestApplyErrors(t *testing.T) {
	ctx := context.Background()
	p := New()
	if err := p.Apply(ctx, "frobnicate", "x"); !errors.Is(err, ErrUnknownVerb) {
		t.Errorf("unknown verb: err=%v, want ErrUnknownVerb", err)
	}
	for _, tc := range []struct{ verb, value string }{
		{"", ""},
		{"enable", ""},
		{"disable", ""},
		{"path", ""},
		{"local", ""},
		{"noexpand", ""},
		{"forget", ""},
		{"revision", "*"},
		{"stats", "loc"},
	} {
		if err := p.Apply(ctx, tc.verb, tc.value); !errors.Is(err, ErrMalformed) {
			t.Errorf("Apply(%q, %q): err=%v, want ErrMalformed", tc.verb, tc.value, err)
		}
	}
}

func TestRevisionAndStats(t *testing.T) {
	ctx := context.Background()
	p := New()
	if err := p.Apply(ctx, "revision", "* git describe --dirty --always"); err != nil {
		t.Fatal(err)
	}
	if err := p.Apply(ctx, "revision", "magnum git describe"); err != nil {
		t.Fatal(err)
	}
	if err := p.Apply(ctx, "stats", "loc wc -l"); err != nil {
		t.Fatal(err)
	}
	if got := p.Revision["*"]; got != "git describe --dirty --always" {
		t.Errorf("Revision[*] = %q", got)
	}
	if got := p.Revision["magnum"]; got != "git describe" {
		t.Errorf("Revision[magnum] = %q", got)
	}
	if got := p.Stats["loc"]; got != "wc -l" {
		t.Errorf("Stats[loc] = %q", got)
	}
}
