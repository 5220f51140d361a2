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

// Package cpu defines the privileged instruction surface the kernel runs on.
//
// Every method corresponds to one instruction (or a short fixed sequence) and
// must be called from the goroutine that was handed the CPU. Instructions may
// not return: a halt with interrupts disabled, a write to the exit device or a
// triple fault ends execution by unwinding the calling goroutine with a value
// that implements Unwinder.
package cpu

import (
	"ringzero.dev/ringzero/pkg/ioport"
	"ringzero.dev/ringzero/pkg/mmio"
)

// CPU is a single x86-64 processor executing at CPL 0.
type CPU interface {
	ioport.IO

	// LoadGDT executes lgdt with the given pseudo-descriptor.
	LoadGDT(base uint64, limit uint16)

	// LoadIDT executes lidt with the given pseudo-descriptor.
	LoadIDT(base uint64, limit uint16)

	// LoadTaskRegister executes ltr. The selector must name an available
	// 64-bit TSS descriptor in the current GDT.
	LoadTaskRegister(sel uint16)

	// LoadCodeSegment reloads CS with sel by a far return.
	LoadCodeSegment(sel uint16)

	// EnableInterrupts executes sti.
	EnableInterrupts()

	// DisableInterrupts executes cli.
	DisableInterrupts()

	// InterruptsEnabled reports whether RFLAGS.IF is set.
	InterruptsEnabled() bool

	// Halt executes hlt. With interrupts enabled it returns after the next
	// interrupt has been handled. With interrupts disabled it never returns.
	Halt()

	// Breakpoint executes int3.
	Breakpoint()

	// DeviceMemory returns the device window of the given number of 16-bit
	// cells at physical address addr.
	DeviceMemory(addr uint64, cells int) mmio.Region

	// Call executes a call to fn whose frame needs frameSize bytes of stack.
	// The return address and the frame are charged to the current stack;
	// running out of stack faults at the call site.
	Call(frameSize uint64, fn func())

	// Touch reads the word at the top of the stack. It keeps a call frame
	// live, so recursion through Call cannot be folded away.
	Touch()
}

// Unwinder is implemented by the values a CPU panics with when execution
// ends. Code that recovers panics must re-panic these.
type Unwinder interface {
	Unwind()
}

// IsUnwind reports whether r, a value returned by recover, ends execution.
func IsUnwind(r any) bool {
	_, ok := r.(Unwinder)
	return ok
}

// HaltLoop halts forever. Interrupts, if enabled, are serviced between halts.
func HaltLoop(c CPU) {
	for {
		c.Halt()
	}
}

// WithoutInterrupts runs fn with interrupts disabled and restores the
// previous interrupt flag afterwards.
func WithoutInterrupts(c CPU, fn func()) {
	enabled := c.InterruptsEnabled()
	if enabled {
		c.DisableInterrupts()
	}
	fn()
	if enabled {
		c.EnableInterrupts()
	}
}
