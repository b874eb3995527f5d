// Copyright 2025 The Amalgamate Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/singleheader/amalgamate/policy"
)

// settings is the optional per-project configuration, read from
// .amalgamate.yaml next to the input file or from the -config path. The
// file sets the same policy knobs as the CLI flags; flags win on
// conflict because they are applied after it.
type settings struct {
	// Paths is prepended to the include search path, in order.
	Paths []string `yaml:"paths"`
	// Defines maps identifiers to their forced values.
	Defines map[string]int64 `yaml:"defines"`
	// Undefines lists identifiers forced to be undefined.
	Undefines []string `yaml:"undefines"`
	// Comments toggles the initial comment policy. Unset keeps the
	// default (on).
	Comments *bool `yaml:"comments"`
}

// loadSettings reads the settings file. A missing default file is not an
// error; a missing explicit -config path is.
func loadSettings(path, input string) (*settings, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(filepath.Dir(input), ".amalgamate.yaml")
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && !explicit {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}
	var s settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal settings %s: %w", path, err)
	}
	return &s, nil
}

// apply copies the settings into the policy. Safe to call on a nil
// receiver.
func (s *settings) apply(p *policy.Policy) {
	if s == nil {
		return
	}
	p.Paths = append(p.Paths, s.Paths...)
	for name, v := range s.Defines {
		p.Enable(name, v)
	}
	for _, name := range s.Undefines {
		p.Disable(name)
	}
	if s.Comments != nil {
		p.Comments = *s.Comments
	}
}
