// Copyright 2025 The Amalgamate Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package cpp

import (
	"testing"
)

// testEnv is a fixed environment: enabled maps identifiers to values,
// disabled forces them undefined, everything else is unknown.
type testEnv struct {
	enabled  map[string]int64
	disabled map[string]bool
}

func (e testEnv) Defined(name string) Value {
	if e.disabled[name] {
		return False
	}
	if _, ok := e.enabled[name]; ok {
		return True
	}
	return Unknown
}

func (e testEnv) Lookup(name string) (int64, Value) {
	if e.disabled[name] {
		return 0, False
	}
	if v, ok := e.enabled[name]; ok {
		return v, True
	}
	return 0, Unknown
}

func TestEval(t *testing.T) {
	env := testEnv{
		enabled:  map[string]int64{"ON": 1, "VERSION": 3, "ZERO": 0},
		disabled: map[string]bool{"OFF": true},
	}
	for _, tc := range []struct {
		src  string
		want Value
	}{
		{"1", True},
		{"0", False},
		{"defined(ON)", True},
		{"defined(OFF)", False},
		{"defined(MAYBE)", Unknown},
		{"!defined(OFF)", True},
		{"!defined(MAYBE)", Unknown},
		// A disabled identifier evaluates to 0, an unknown one stays
		// unknown.
		{"OFF", False},
		{"ON", True},
		{"ZERO", False},
		{"MAYBE", Unknown},
		{"VERSION >= 2", True},
		{"VERSION >= 4", False},
		{"VERSION == 3", True},
		{"VERSION != 3", False},
		{"VERSION + 1 > 3", True},
		{"VERSION - 3", False},
		{"MAYBE >= 2", Unknown},
		// Short circuits decide even with an unknown side.
		{"defined(OFF) && defined(MAYBE)", False},
		{"defined(MAYBE) && defined(OFF)", False},
		{"defined(ON) || defined(MAYBE)", True},
		{"defined(MAYBE) || defined(ON)", True},
		{"defined(ON) && defined(MAYBE)", Unknown},
		{"defined(MAYBE) || defined(OFF)", Unknown},
		{"(defined(ON) || defined(MAYBE)) && !defined(OFF)", True},
	} {
		e, err := Parse(tc.src)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.src, err)
		}
		if got := Eval(e, env); got != tc.want {
			t.Errorf("Eval(%q) = %s; want %s", tc.src, got, tc.want)
		}
	}
}
