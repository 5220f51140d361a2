// Copyright 2026 The ringzero Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"ringzero.dev/ringzero/pkg/ktest"
	"ringzero.dev/ringzero/pkg/log"
	"ringzero.dev/ringzero/pkg/machine"
	"ringzero.dev/ringzero/ringzero/cmd/util"
	"ringzero.dev/ringzero/ringzero/config"
)

// defaultSuiteTimeout bounds a suite when no timeout is configured.
const defaultSuiteTimeout = 30 * time.Second

// Test implements subcommands.Command for the "test" command.
type Test struct {
	list     bool
	parallel int
	verbose  bool
}

// Name implements subcommands.Command.Name.
func (*Test) Name() string {
	return "test"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Test) Synopsis() string {
	return "run the in-kernel test suites"
}

// Usage implements subcommands.Command.Usage.
func (*Test) Usage() string {
	return `test [flags] [suite...] - runs the named suites, or all of them, each in its own machine.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (t *Test) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&t.list, "list", false, "list the suites and exit.")
	f.IntVar(&t.parallel, "parallel", runtime.NumCPU(), "number of suites to run at once.")
	f.BoolVar(&t.verbose, "v", false, "print every suite's serial output, not only failing ones.")
}

// suiteResult is the outcome of one suite.
type suiteResult struct {
	suite   ktest.Suite
	exit    machine.Exit
	err     error
	output  bytes.Buffer
	elapsed time.Duration
}

func (r *suiteResult) passed() bool {
	return r.err == nil && ktest.Passed(r.exit)
}

// Execute implements subcommands.Command.Execute.
func (t *Test) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	conf := args[0].(*config.Config)
	ws := args[1].(*unix.WaitStatus)

	if t.list {
		for _, s := range ktest.Suites() {
			fmt.Printf("%s\t%d tests\n", s.Name, len(s.Tests))
		}
		return subcommands.ExitSuccess
	}
	if t.parallel < 1 {
		util.Fatalf("-parallel must be at least 1, got %d", t.parallel)
	}

	suites, err := selectSuites(f.Args())
	if err != nil {
		util.Fatalf("%v", err)
	}

	timeout := conf.Timeout
	if timeout == 0 {
		timeout = defaultSuiteTimeout
	}
	results := make([]*suiteResult, len(suites))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.parallel)
	for i, s := range suites {
		s := s
		r := &suiteResult{suite: s}
		results[i] = r
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()
			start := time.Now()
			_, r.exit, r.err = ktest.Run(ctx, s, ktest.Config{
				Serial:        &r.output,
				BootStackSize: conf.BootStackSize,
			})
			r.elapsed = time.Since(start)
			log.Infof("Suite %s stopped after %v: %v (err: %v)", s.Name, r.elapsed, r.exit, r.err)
			return nil
		})
	}
	_ = g.Wait()

	failed := report(os.Stdout, results, t.verbose)
	if failed > 0 {
		fmt.Printf("FAIL: %d of %d suites\n", failed, len(results))
		*ws = unix.WaitStatus(1 << 8)
	} else {
		fmt.Printf("PASS: %d suites\n", len(results))
	}
	return subcommands.ExitSuccess
}

// selectSuites returns the suites named, or all of them.
func selectSuites(names []string) ([]ktest.Suite, error) {
	if len(names) == 0 {
		return ktest.Suites(), nil
	}
	var suites []ktest.Suite
	for _, name := range names {
		s, ok := ktest.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown suite %q", name)
		}
		suites = append(suites, s)
	}
	return suites, nil
}

// report prints results in order and returns how many suites failed.
func report(w io.Writer, results []*suiteResult, verbose bool) int {
	failed := 0
	for _, r := range results {
		verdict := "ok"
		if !r.passed() {
			verdict = "FAIL"
			failed++
		}
		fmt.Fprintf(w, "%-4s\t%s\t%v\t%.3fs\n", verdict, r.suite.Name, r.exit, r.elapsed.Seconds())
		if r.err != nil {
			fmt.Fprintf(w, "\terror: %v\n", r.err)
		}
		if verbose || !r.passed() {
			w.Write(r.output.Bytes())
		}
	}
	return failed
}
