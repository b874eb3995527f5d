// Copyright 2025 The Amalgamate Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/singleheader/amalgamate/cpp"
	"github.com/singleheader/amalgamate/policy"
)

func TestLoadSettings(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, ".amalgamate.yaml"), []byte(`paths:
  - src
  - include
defines:
  BUILD_STATIC: 1
  VERSION: 3
undefines:
  - DOXYGEN
comments: false
`), 0644)
	if err != nil {
		t.Fatal(err)
	}

	s, err := loadSettings("", filepath.Join(dir, "in.h"))
	if err != nil {
		t.Fatal(err)
	}
	p := policy.New()
	s.apply(p)

	if diff := cmp.Diff([]string{"src", "include"}, p.Paths); diff != "" {
		t.Errorf("Paths: diff -want +got:\n%s", diff)
	}
	if got := p.Defined("BUILD_STATIC"); got != cpp.True {
		t.Errorf("Defined(BUILD_STATIC) = %s, want TRUE", got)
	}
	if v, st := p.Lookup("VERSION"); v != 3 || st != cpp.True {
		t.Errorf("Lookup(VERSION) = %d,%s, want 3,TRUE", v, st)
	}
	if got := p.Defined("DOXYGEN"); got != cpp.False {
		t.Errorf("Defined(DOXYGEN) = %s, want FALSE", got)
	}
	if p.Comments {
		t.Errorf("Comments = true, want false")
	}
}

func TestLoadSettingsMissing(t *testing.T) {
	dir := t.TempDir()
	s, err := loadSettings("", filepath.Join(dir, "in.h"))
	if err != nil {
		t.Fatalf("missing default settings: %v", err)
	}
	if s != nil {
		t.Fatalf("missing default settings: got %+v, want nil", s)
	}
	// A nil settings applies cleanly.
	p := policy.New()
	s.apply(p)
	if !p.Comments || len(p.Paths) != 0 {
		t.Errorf("nil apply changed policy: %+v", p)
	}

	if _, err := loadSettings(filepath.Join(dir, "nope.yaml"), "in.h"); err == nil {
		t.Errorf("explicit missing settings: want error")
	}
}
