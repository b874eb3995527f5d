// Copyright 2025 The Amalgamate Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package policy holds the user-controlled state that steers an
// amalgamation run: forced identifiers, include search paths, local
// prefixes, no-expand and forget lists, and the comment toggle.
//
// The state is mutated by #pragma ACME directives at the exact position
// they appear and by CLI flags before the run starts. Effects persist
// forward through the rest of the traversal; there is no rollback.
package policy

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/golang/glog"

	"github.com/singleheader/amalgamate/cpp"
	"github.com/singleheader/amalgamate/o11y/clog"
)

// ErrUnknownVerb marks a #pragma ACME verb outside the recognized set.
// The caller reports it as a warning and drops the directive.
var ErrUnknownVerb = errors.New("unknown pragma ACME verb")

// ErrMalformed marks a #pragma ACME directive whose arguments do not
// satisfy the verb's grammar. This one is fatal.
var ErrMalformed = errors.New("malformed pragma ACME")

// Policy is the mutable policy record. One instance is owned by the
// driver for the whole run and passed by reference through the traversal.
type Policy struct {
	// BaseDir anchors relative `path` pragma arguments. It is the
	// directory of the root input file.
	BaseDir string

	// Comments reports whether non-doc comments survive into the output.
	Comments bool

	disabled map[string]bool
	enabled  map[string]int64

	// Paths is the include search path, in order.
	Paths []string

	localPrefixes []string
	noExpand      map[string]bool

	// One-time emission state. Emitted is keyed by the include spec as
	// written (`<x>` or `"x"`); definedOnce by identifier; Parsed by
	// canonical file path.
	emitted     map[string]bool
	definedOnce map[string]bool
	parsed      map[string]bool
	forget      map[string]bool

	// Revision and Stats map placeholder selectors to shell commands.
	Revision map[string]string
	Stats    map[string]string

	// Warnf receives user-facing warnings. The driver points it at the
	// diagnostic stream; it defaults to glog.
	Warnf func(format string, args ...any)
}

// New returns a policy with comments enabled and no forced identifiers.
func New() *Policy {
	return &Policy{
		Comments:    true,
		disabled:    make(map[string]bool),
		enabled:     make(map[string]int64),
		noExpand:    make(map[string]bool),
		emitted:     make(map[string]bool),
		definedOnce: make(map[string]bool),
		parsed:      make(map[string]bool),
		forget:      make(map[string]bool),
		Revision:    make(map[string]string),
		Stats:       make(map[string]string),
		Warnf: func(format string, args ...any) {
			log.WarningDepth(1, fmt.Sprintf(format, args...))
		},
	}
}

// Enable forces name to be defined with the given value.
func (p *Policy) Enable(name string, v int64) {
	p.enabled[name] = v
	delete(p.disabled, name)
}

// Disable forces name to be undefined.
func (p *Policy) Disable(name string) {
	p.disabled[name] = true
	delete(p.enabled, name)
}

// Forced reports whether name has a policy entry either way. #define and
// #undef lines naming a forced identifier are consumed.
func (p *Policy) Forced(name string) bool {
	return p.disabled[name] || hasKey(p.enabled, name)
}

// Defined implements cpp.Env.
func (p *Policy) Defined(name string) cpp.Value {
	switch {
	case p.disabled[name]:
		return cpp.False
	case hasKey(p.enabled, name):
		return cpp.True
	}
	return cpp.Unknown
}

// Lookup implements cpp.Env: the value of a bare identifier in an #if.
func (p *Policy) Lookup(name string) (int64, cpp.Value) {
	switch {
	case p.disabled[name]:
		return 0, cpp.False
	case hasKey(p.enabled, name):
		return p.enabled[name], cpp.True
	}
	return 0, cpp.Unknown
}

// LocalPrefix reports whether an angle-bracket include of the given inner
// path must be treated as local because of a `local` pragma. The prefix
// matches the leading path segments.
func (p *Policy) LocalPrefix(inner string) bool {
	for _, prefix := range p.localPrefixes {
		if inner == prefix || strings.HasPrefix(inner, prefix+"/") {
			return true
		}
	}
	return false
}

// NoExpand reports whether the include of inner is emitted verbatim and
// never opened.
func (p *Policy) NoExpand(inner string) bool {
	return p.noExpand[inner]
}

// MarkEmitted records that spec was written to the output. It reports
// whether this occurrence may be emitted (false: deduplicated).
func (p *Policy) MarkEmitted(spec string) bool {
	if p.emitted[spec] {
		return false
	}
	p.emitted[spec] = true
	return true
}

// MarkDefined records a #define of ident. It reports whether this
// occurrence may be emitted.
func (p *Policy) MarkDefined(ident string) bool {
	if p.definedOnce[ident] {
		return false
	}
	p.definedOnce[ident] = true
	return true
}

// MarkParsed records that the file at canonical path was inlined. It
// reports whether this inlining should proceed (false: already inlined
// and not forgotten).
func (p *Policy) MarkParsed(path string) bool {
	if p.parsed[path] {
		return false
	}
	p.parsed[path] = true
	return true
}

// TakeForget consumes a pending forget for the include of inner,
// permitting one re-inlining of the resolved file.
func (p *Policy) TakeForget(inner string) bool {
	if !p.forget[inner] {
		return false
	}
	delete(p.forget, inner)
	return true
}

// ForgetParsed clears the parsed-once flag of the file at canonical
// path, so the next include of it re-inlines the body.
func (p *Policy) ForgetParsed(path string) {
	delete(p.parsed, path)
}

// Apply interprets one #pragma ACME directive. Unknown verbs return
// ErrUnknownVerb (warning), grammar violations return ErrMalformed
// (fatal). The pragma itself is always consumed.
func (p *Policy) Apply(ctx context.Context, verb, value string) error {
	if log.V(1) {
		clog.Infof(ctx, "pragma ACME %s %s", verb, value)
	}
	switch verb {
	case "":
		return fmt.Errorf("%w: missing verb", ErrMalformed)
	case "enable":
		if value == "" {
			return fmt.Errorf("%w: enable needs an identifier", ErrMalformed)
		}
		p.Enable(value, 1)
	case "disable":
		if value == "" {
			return fmt.Errorf("%w: disable needs an identifier", ErrMalformed)
		}
		p.Disable(value)
	case "comments":
		switch value {
		case "on":
			p.Comments = true
		case "off":
			p.Comments = false
		default:
			return fmt.Errorf("%w: comments needs on or off, got %q", ErrMalformed, value)
		}
	case "path":
		if value == "" {
			return fmt.Errorf("%w: path needs a directory", ErrMalformed)
		}
		dir := value
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(p.BaseDir, dir)
		}
		p.Paths = append(p.Paths, dir)
	case "local":
		if value == "" {
			return fmt.Errorf("%w: local needs a prefix", ErrMalformed)
		}
		p.localPrefixes = append(p.localPrefixes, value)
	case "noexpand":
		if value == "" {
			return fmt.Errorf("%w: noexpand needs an include spec", ErrMalformed)
		}
		p.noExpand[innerPath(value)] = true
	case "forget":
		if value == "" {
			return fmt.Errorf("%w: forget needs an include spec or identifier", ErrMalformed)
		}
		p.applyForget(value)
	case "revision":
		path, command, ok := strings.Cut(value, " ")
		if !ok {
			return fmt.Errorf("%w: revision needs a path and a command", ErrMalformed)
		}
		p.Revision[path] = strings.TrimSpace(command)
	case "stats":
		id, command, ok := strings.Cut(value, " ")
		if !ok {
			return fmt.Errorf("%w: stats needs an id and a command", ErrMalformed)
		}
		p.Stats[id] = strings.TrimSpace(command)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownVerb, verb)
	}
	return nil
}

func (p *Policy) applyForget(value string) {
	if value[0] == '<' || value[0] == '"' {
		// Include spec: permit one more emission and one re-inlining.
		if !p.emitted[value] {
			p.Warnf("forget %s: include not emitted yet", value)
		}
		delete(p.emitted, value)
		p.forget[innerPath(value)] = true
		return
	}
	// Identifier: reset the already-defined flag.
	if !p.definedOnce[value] {
		p.Warnf("forget %s: identifier not defined yet", value)
	}
	delete(p.definedOnce, value)
}

// innerPath strips include spec delimiters: `<x.h>` and `"x.h"` both
// become x.h. Bare values are returned unchanged.
func innerPath(spec string) string {
	if len(spec) >= 2 && (spec[0] == '<' && spec[len(spec)-1] == '>' ||
		spec[0] == '"' && spec[len(spec)-1] == '"') {
		return spec[1 : len(spec)-1]
	}
	return spec
}

func hasKey(m map[string]int64, k string) bool {
	_, ok := m[k]
	return ok
}
