// Copyright 2025 The Amalgamate Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package cpp

// Eval evaluates e under env and returns the three-valued truth of the
// condition. Any Unknown operand makes the result Unknown, except where a
// short-circuit operator is decided by its other side.
func Eval(e Expr, env Env) Value {
	v, known := eval(e, env)
	if !known {
		return Unknown
	}
	if v != 0 {
		return True
	}
	return False
}

// eval returns the numeric value and whether it is known.
func eval(e Expr, env Env) (int64, bool) {
	switch e := e.(type) {
	case *Int:
		return e.V, true
	case *Ident:
		v, st := env.Lookup(e.Name)
		switch st {
		case True:
			return v, true
		case False:
			return 0, true
		}
		return 0, false
	case *Defined:
		switch env.Defined(e.Name) {
		case True:
			return 1, true
		case False:
			return 0, true
		}
		return 0, false
	case *Unary:
		v, known := eval(e.X, env)
		if !known {
			return 0, false
		}
		switch e.Op {
		case '!':
			return b2i(v == 0), true
		case '-':
			return -v, true
		}
		return v, true
	case *Binary:
		return evalBinary(e, env)
	}
	return 0, false
}

func evalBinary(e *Binary, env Env) (int64, bool) {
	switch e.Op {
	case "&&":
		x, xknown := eval(e.X, env)
		if xknown && x == 0 {
			return 0, true
		}
		y, yknown := eval(e.Y, env)
		if yknown && y == 0 {
			return 0, true
		}
		if xknown && yknown {
			return 1, true
		}
		return 0, false
	case "||":
		x, xknown := eval(e.X, env)
		if xknown && x != 0 {
			return 1, true
		}
		y, yknown := eval(e.Y, env)
		if yknown && y != 0 {
			return 1, true
		}
		if xknown && yknown {
			return 0, true
		}
		return 0, false
	}

	x, xknown := eval(e.X, env)
	y, yknown := eval(e.Y, env)
	if !xknown || !yknown {
		return 0, false
	}
	switch e.Op {
	case "==":
		return b2i(x == y), true
	case "!=":
		return b2i(x != y), true
	case "<":
		return b2i(x < y), true
	case ">":
		return b2i(x > y), true
	case "<=":
		return b2i(x <= y), true
	case ">=":
		return b2i(x >= y), true
	case "+":
		return x + y, true
	case "-":
		return x - y, true
	}
	return 0, false
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
