// Copyright 2025 The Amalgamate Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Amalgamate creates single-header C/C++ libraries from a top-level
// header: local includes are recursively inlined with their guards
// elided, preprocessor branches decided by the policy are pruned, system
// includes are hoisted to the {{includes}} placeholder and copyright
// notices of all consumed files are merged at {{copyright}}.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	glog "github.com/golang/glog"

	"github.com/singleheader/amalgamate/amalg"
	"github.com/singleheader/amalgamate/policy"
)

// multiFlag collects repeated occurrences of a flag.
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func main() {
	os.Exit(amalgamateMain(context.Background()))
}

func amalgamateMain(ctx context.Context) (code int) {
	// Flush the log on exit to not lose any messages.
	defer glog.Flush()

	// Print a stack trace when a panic occurs.
	defer func() {
		if r := recover(); r != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			glog.Errorf("panic: %v\n%s", r, buf)
			code = 1
		}
	}()

	var (
		includeDirs multiFlag
		defines     multiFlag
		undefines   multiFlag
	)
	flag.Var(&includeDirs, "I", "append `dir` to the include search path (repeatable)")
	flag.Var(&defines, "D", "treat `ID[=v]` as defined (repeatable)")
	flag.Var(&undefines, "U", "treat `ID` as undefined (repeatable)")
	noComments := flag.Bool("no-comments", false, "start with comments off")
	configPath := flag.String("config", "", "YAML settings `file` (default: <input dir>/.amalgamate.yaml)")
	showVersion := flag.Bool("version", false, "print version and exit")

	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "Usage: %s [options] <input.h> [<output.h>]\n", os.Args[0])
		fmt.Fprintf(out, "Writes to stdout when no output file is given.\n")
		fmt.Fprintf(out, "options:\n")
		flag.PrintDefaults()
	}
	flag.CommandLine.Init(os.Args[0], flag.ContinueOnError)
	if err := flag.CommandLine.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	if *showVersion {
		fmt.Println(versionString())
		return 0
	}
	if flag.NArg() < 1 || flag.NArg() > 2 {
		flag.Usage()
		return 1
	}
	input := flag.Arg(0)
	output := flag.Arg(1)

	logBuildInfo()

	diag := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
		Prefix:          "amalgamate",
	})

	p := policy.New()
	settings, err := loadSettings(*configPath, input)
	if err != nil {
		diag.Errorf("%v", err)
		return 1
	}
	settings.apply(p)
	p.Paths = append(p.Paths, includeDirs...)
	for _, d := range defines {
		name, value, ok := strings.Cut(d, "=")
		v := int64(1)
		if ok {
			v, err = strconv.ParseInt(value, 0, 64)
			if err != nil {
				diag.Errorf("bad -D %s: %v", d, err)
				return 1
			}
		}
		p.Enable(name, v)
	}
	for _, u := range undefines {
		p.Disable(u)
	}
	if *noComments {
		p.Comments = false
	}

	err = amalg.New(p, diag).Run(ctx, input, output)
	if err != nil {
		diag.Errorf("%v", err)
	}
	return exitCode(err)
}

// exitCode maps the run error to the documented process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, amalg.ErrNotFound):
		return 2
	case errors.Is(err, amalg.ErrOutput):
		return 3
	case errors.Is(err, amalg.ErrCycle):
		return 4
	case errors.Is(err, policy.ErrMalformed):
		return 5
	}
	return 1
}

// logBuildInfo prints build information to the log.
func logBuildInfo() {
	buildinfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	glog.Infof("main module: %s", moduleInfo(&buildinfo.Main))
	if glog.V(1) {
		for _, m := range buildinfo.Deps {
			glog.Infof("deps module: %s", moduleInfo(m))
		}
		for _, bs := range buildinfo.Settings {
			glog.Infof("build %s=%s", bs.Key, bs.Value)
		}
	}
}
