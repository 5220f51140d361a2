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
// Package ktest runs tests inside the kernel.
//
// A suite boots a fresh machine, runs its tests on the kernel's processor
// and reports over the serial console:
//
//	Running 2 tests
//	lib::vga_simple...	[ok]
//	lib::breakpoint...	[failed]
//
//	Error: ...
//
// The machine then stops through the debug-exit device with
// debugexit.Success if every test passed, or debugexit.Failed at the first
// failure.
package ktest

import (
	"context"
	"fmt"
	"io"

	"ringzero.dev/ringzero/pkg/cpu"
	"ringzero.dev/ringzero/pkg/debugexit"
	"ringzero.dev/ringzero/pkg/kernel"
	"ringzero.dev/ringzero/pkg/log"
	"ringzero.dev/ringzero/pkg/machine"
	"ringzero.dev/ringzero/pkg/ring0"
)

// Test is one in-kernel test.
type Test struct {
	Name string
	Fn   func(k *kernel.Kernel) error
}

// Suite is a set of tests run in one machine.
type Suite struct {
	Name string

	// Options configures the kernel.
	Options kernel.Options

	// TimerHz is the machine's timer frequency.
	TimerHz uint

	// Init runs kernel.Init before the tests.
	Init bool

	// Tests are run in order.
	Tests []Test

	// Custom, if set, replaces the test runner. It returns the kernel's
	// main function and any memory it needs mapped besides the kernel's
	// own tables.
	Custom func(k *kernel.Kernel) (main func(), regions []ring0.Region)
}

// Config configures the machine a suite runs in.
type Config struct {
	// Serial receives the kernel's serial output.
	Serial io.Writer

	// Log receives machine diagnostics.
	Log log.Logger

	// BootStackSize overrides the machine's boot stack size.
	BootStackSize uint64
}

// Passed reports whether exit is the one a passing suite stops with.
func Passed(exit machine.Exit) bool {
	return exit.Status() == debugexit.Success.Status()
}

// Run boots a machine and runs s in it until the machine stops or ctx is
// done.
func Run(ctx context.Context, s Suite, cfg Config) (*machine.Machine, machine.Exit, error) {
	m, err := machine.New(machine.Config{
		TimerHz:       s.TimerHz,
		BootStackSize: cfg.BootStackSize,
		Serial:        cfg.Serial,
		Log:           cfg.Log,
	})
	if err != nil {
		return nil, machine.Exit{}, fmt.Errorf("creating machine for suite %s: %w", s.Name, err)
	}
	k := kernel.New(s.Options)
	regions := k.Regions()
	var main func()
	if s.Custom != nil {
		var extra []ring0.Region
		main, extra = s.Custom(k)
		regions = append(regions, extra...)
	} else {
		main = func() {
			if s.Init {
				k.Init()
			}
			RunTests(k, s.Tests)
		}
	}
	if err := m.Map(regions...); err != nil {
		return nil, machine.Exit{}, fmt.Errorf("mapping suite %s: %w", s.Name, err)
	}
	exit, err := m.Run(ctx, k.Entry(main))
	if err != nil {
		return m, exit, fmt.Errorf("running suite %s: %w", s.Name, err)
	}
	return m, exit, nil
}

// RunTests runs tests on k and exits the machine with the result. It does
// not return.
func RunTests(k *kernel.Kernel, tests []Test) {
	out := k.Serial()
	out.Printf("Running %d tests\n", len(tests))
	for _, t := range tests {
		out.Printf("%s...\t", t.Name)
		if err := runTest(k, t); err != nil {
			out.Printf("[failed]\n\nError: %v\n\n", err)
			k.Exit(debugexit.Failed)
		}
		out.Println("[ok]")
	}
	k.Exit(debugexit.Success)
}

// runTest runs t, turning a panic into a failure.
func runTest(k *kernel.Kernel, t Test) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if cpu.IsUnwind(r) {
			panic(r)
		}
		err = fmt.Errorf("panicked: %v", r)
	}()
	return t.Fn(k)
}
