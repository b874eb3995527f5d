// Copyright 2025 The Amalgamate Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package cpp partially evaluates the C preprocessor: it parses the
// constant-expression subset used in #if/#elif conditions, evaluates it
// under a three-valued lattice, and arranges #if/#elif/#else/#endif
// constructs into a tree for pruning.
//
// It is deliberately not a preprocessor. There is no macro expansion;
// identifiers with no policy entry stay Unknown so their branches survive
// verbatim.
package cpp

// Value is the three-valued result of evaluating a condition.
// Unknown keeps a branch verbatim; True and False allow pruning.
type Value int

const (
	False Value = iota
	True
	Unknown
)

func (v Value) String() string {
	switch v {
	case False:
		return "false"
	case True:
		return "true"
	}
	return "unknown"
}

// Env resolves identifiers during evaluation. It is implemented by the
// policy state.
type Env interface {
	// Defined reports whether defined(name) is known to hold.
	Defined(name string) Value
	// Lookup returns the value a bare identifier evaluates to.
	// The Value result is True when the value is known, False when the
	// identifier is known-undefined (value 0), Unknown otherwise.
	Lookup(name string) (int64, Value)
}
