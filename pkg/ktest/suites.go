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
package ktest

import (
	"fmt"

	"ringzero.dev/ringzero/pkg/cpu"
	"ringzero.dev/ringzero/pkg/debugexit"
	"ringzero.dev/ringzero/pkg/kernel"
	"ringzero.dev/ringzero/pkg/ring0"
	"ringzero.dev/ringzero/pkg/vga"
)

// Suites returns the built-in suites.
func Suites() []Suite {
	return []Suite{
		{
			Name:    "lib",
			TimerHz: 100,
			Init:    true,
			Tests: []Test{
				{"lib::vga_simple", vgaSimple},
				{"lib::vga_many", vgaMany},
				{"lib::vga_output", vgaOutput},
				{"lib::breakpoint", breakpoint},
				{"lib::timer", timerTicks},
			},
		},
		{
			Name: "basic_boot",
			Tests: []Test{
				{"basic_boot::println", vgaSimple},
			},
		},
		{
			Name:   "stack_overflow",
			Custom: stackOverflow,
		},
	}
}

// Lookup returns the built-in suite called name.
func Lookup(name string) (Suite, bool) {
	for _, s := range Suites() {
		if s.Name == name {
			return s, true
		}
	}
	return Suite{}, false
}

func vgaSimple(k *kernel.Kernel) error {
	k.Screen().Println("test_println_simple output")
	return nil
}

func vgaMany(k *kernel.Kernel) error {
	for i := 0; i < 200; i++ {
		k.Screen().Println("test_println_many output")
	}
	return nil
}

// vgaOutput checks that a printed line lands on the screen, one row above
// the bottom once its newline has scrolled it.
func vgaOutput(k *kernel.Kernel) error {
	const s = "Some test string that fits on a single line"
	k.Screen().Println(s)
	buf := k.CPU().DeviceMemory(vga.BufferAddr, vga.Width*vga.Height)
	for i := 0; i < len(s); i++ {
		if c := vga.ReadChar(buf, vga.Height-2, i); c.Char != s[i] {
			return fmt.Errorf("column %d: got %q, want %q", i, c.Char, s[i])
		}
	}
	return nil
}

func breakpoint(k *kernel.Kernel) error {
	k.CPU().Breakpoint()
	return nil
}

func timerTicks(k *kernel.Kernel) error {
	start := k.Ticks()
	for k.Ticks() < start+2 {
		k.CPU().Halt()
	}
	return nil
}

// stackOverflow overflows the kernel stack with a double fault handler on
// its own stack. The handler reports success; returning from the overflow
// is a failure.
func stackOverflow(k *kernel.Kernel) (func(), []ring0.Region) {
	idt := ring0.NewIDT()
	main := func() {
		serial := k.Serial()
		serial.Print("stack_overflow::stack_overflow...\t")

		d := k.Descriptors()
		d.Init()
		d.Load(k.CPU())
		idt.SetHandlerWithCode(ring0.DoubleFault, func(*ring0.Frame, uint64) {
			serial.Println("[ok]")
			k.Exit(debugexit.Success)
		}).SetStackIndex(ring0.DoubleFaultISTIndex)
		idt.Load(k.CPU())

		overflow(k.CPU())

		serial.Printf("[failed]\n\nError: %s\n\n", "execution continued after stack overflow")
		k.Exit(debugexit.Failed)
	}
	return main, idt.Regions()
}

// overflow recurses without bound. Each frame, with its return address, is
// one page, so the stack is used up exactly.
func overflow(c cpu.CPU) {
	c.Call(4096-8, func() {
		c.Touch()
		overflow(c)
	})
}
