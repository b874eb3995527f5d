// Copyright 2025 The Amalgamate Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// version is the release version. It is overridden at build time via
// -ldflags="-X main.version=...". Dev builds fall back to module and vcs
// information.
var version = ""

func versionString() string {
	if version != "" {
		return "amalgamate " + version
	}
	buildinfo, ok := debug.ReadBuildInfo()
	if !ok {
		return "amalgamate (unknown)"
	}
	v := buildinfo.Main.Version
	if v == "" || v == "(devel)" {
		v = vcsInfo(buildinfo)
	}
	return "amalgamate " + v
}

func moduleInfo(m *debug.Module) string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("path:%s version:%s sum:%s", m.Path, m.Version, m.Sum)
}

func vcsInfo(buildinfo *debug.BuildInfo) string {
	m := make(map[string]string)
	for _, bs := range buildinfo.Settings {
		if strings.HasPrefix(bs.Key, "vcs.") {
			m[bs.Key] = bs.Value
		}
	}
	if m["vcs.revision"] == "" {
		return "(devel)"
	}
	s := m["vcs.revision"]
	if len(s) > 12 {
		s = s[:12]
	}
	if m["vcs.modified"] == "true" {
		s += "-dirty"
	}
	return s
}
