// Copyright 2025 The Amalgamate Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package amalg

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/singleheader/amalgamate/scan"
)

// copyrightRx splits a notice line into the text before the marker and
// the payload after it. The payload must start with a four digit year.
var copyrightRx = regexp.MustCompile(`^(.*?)Copyright © (\d{4}.*)$`)

// yearRx matches one element of the year list: a year or a year range.
var yearRx = regexp.MustCompile(`^(\d{4})(?:\s*-\s*(\d{4}))?$`)

// copyrightEntry is one contributor's merged notice. The prefix keeps the
// comment decoration of the first occurrence so the rendered line fits
// back into the root file's copyright block.
type copyrightEntry struct {
	prefix  string
	years   map[int]bool
	name    string
	contact string
}

func (e *copyrightEntry) render() string {
	ys := make([]int, 0, len(e.years))
	for y := range e.years {
		ys = append(ys, y)
	}
	sort.Ints(ys)
	parts := make([]string, len(ys))
	for i, y := range ys {
		parts[i] = strconv.Itoa(y)
	}
	return fmt.Sprintf("%sCopyright © %s %s <%s>", e.prefix, strings.Join(parts, ", "), e.name, e.contact)
}

// copyrightSet collects notices from every consumed file, in first-seen
// order, merging entries of the same contributor by year union.
type copyrightSet struct {
	order   []*copyrightEntry
	byOwner map[string]*copyrightEntry
}

func newCopyrightSet() *copyrightSet {
	return &copyrightSet{byOwner: make(map[string]*copyrightEntry)}
}

func (s *copyrightSet) empty() bool { return len(s.order) == 0 }

func (s *copyrightSet) lines() []string {
	out := make([]string, len(s.order))
	for i, e := range s.order {
		out[i] = e.render()
	}
	return out
}

// scanBlock inspects one buffered comment block and harvests its notice
// lines. A notice may continue over several lines: a line ending in a
// comma is joined with the following lines until one ends in `>`. The
// returned set holds the indices of harvested lines; the caller drops
// them from the emitted block.
func (s *copyrightSet) scanBlock(buf []scan.Line) map[int]bool {
	harvested := make(map[int]bool)
	pending := ""
	prefix := ""
	start := -1
	for i, l := range buf {
		text := strings.TrimRight(l.Text, " \t")
		if strings.HasSuffix(text, "*/") {
			// One-line copyright blocks keep the notice and the block
			// close on the same line.
			text = strings.TrimRight(strings.TrimSuffix(text, "*/"), " \t")
		}
		if pending != "" {
			harvested[i] = true
			pending += " " + strings.TrimSpace(text)
			if strings.HasSuffix(pending, ">") {
				s.add(prefix, pending)
				pending = ""
			}
			continue
		}
		m := copyrightRx.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		switch {
		case strings.HasSuffix(m[2], ">"):
			harvested[i] = true
			s.add(m[1], m[2])
		case strings.HasSuffix(m[2], ","):
			harvested[i] = true
			prefix, pending, start = m[1], m[2], i
		default:
			// A notice without a contact part is dropped but not merged.
			harvested[i] = true
		}
	}
	if pending != "" {
		// The block ended mid-notice; put the lines back.
		for i := start; i < len(buf); i++ {
			delete(harvested, i)
		}
	}
	return harvested
}

// add parses "years name <contact>" and merges it into the set.
func (s *copyrightSet) add(prefix, payload string) {
	open := strings.LastIndex(payload, "<")
	if open < 0 || !strings.HasSuffix(payload, ">") {
		return
	}
	contact := payload[open+1 : len(payload)-1]
	head := strings.TrimSpace(payload[:open])

	years := make(map[int]bool)
	var name string
	for len(head) > 0 {
		tok := head
		rest := ""
		if c := strings.Index(head, ","); c >= 0 {
			tok, rest = head[:c], strings.TrimSpace(head[c+1:])
		} else if sp := strings.IndexAny(head, " \t"); sp >= 0 {
			tok, rest = head[:sp], strings.TrimSpace(head[sp+1:])
		}
		m := yearRx.FindStringSubmatch(strings.TrimSpace(tok))
		if m == nil {
			name = head
			break
		}
		lo, _ := strconv.Atoi(m[1])
		hi := lo
		if m[2] != "" {
			hi, _ = strconv.Atoi(m[2])
		}
		for y := lo; y <= hi; y++ {
			years[y] = true
		}
		head = rest
	}
	if len(years) == 0 || name == "" {
		return
	}

	key := name + "\x00" + contact
	if e, ok := s.byOwner[key]; ok {
		for y := range years {
			e.years[y] = true
		}
		return
	}
	e := &copyrightEntry{prefix: prefix, years: years, name: name, contact: contact}
	s.byOwner[key] = e
	s.order = append(s.order, e)
}
