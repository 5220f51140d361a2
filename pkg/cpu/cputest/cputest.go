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

// Package cputest provides a recording CPU for tests that do not need
// interrupt delivery.
package cputest

import (
	"fmt"

	"ringzero.dev/ringzero/pkg/cpu"
	"ringzero.dev/ringzero/pkg/ioport"
	"ringzero.dev/ringzero/pkg/mmio"
	"ringzero.dev/ringzero/pkg/sync"
)

// Halted is the value Fake panics with when it halts with interrupts
// disabled.
type Halted struct{}

// Unwind implements cpu.Unwinder.Unwind.
func (Halted) Unwind() {}

// Fake is a cpu.CPU that records privileged instructions as strings and port
// I/O through its embedded Recorder. Device memory is backed by plain
// buffers.
type Fake struct {
	ioport.Recorder

	mu      sync.Mutex
	ifSet   bool
	calls   []string
	devices map[uint64]mmio.Buffer
}

var _ cpu.CPU = (*Fake)(nil)

func (f *Fake) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

// Calls returns the recorded instructions.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// LoadGDT implements cpu.CPU.LoadGDT.
func (f *Fake) LoadGDT(base uint64, limit uint16) { f.record("lgdt %#x", limit) }

// LoadIDT implements cpu.CPU.LoadIDT.
func (f *Fake) LoadIDT(base uint64, limit uint16) { f.record("lidt %#x", limit) }

// LoadTaskRegister implements cpu.CPU.LoadTaskRegister.
func (f *Fake) LoadTaskRegister(sel uint16) { f.record("ltr %#x", sel) }

// LoadCodeSegment implements cpu.CPU.LoadCodeSegment.
func (f *Fake) LoadCodeSegment(sel uint16) { f.record("cs %#x", sel) }

// EnableInterrupts implements cpu.CPU.EnableInterrupts.
func (f *Fake) EnableInterrupts() {
	f.mu.Lock()
	f.ifSet = true
	f.mu.Unlock()
	f.record("sti")
}

// DisableInterrupts implements cpu.CPU.DisableInterrupts.
func (f *Fake) DisableInterrupts() {
	f.mu.Lock()
	f.ifSet = false
	f.mu.Unlock()
	f.record("cli")
}

// InterruptsEnabled implements cpu.CPU.InterruptsEnabled.
func (f *Fake) InterruptsEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ifSet
}

// Halt implements cpu.CPU.Halt. With interrupts enabled it returns at once,
// as if an interrupt arrived; otherwise it panics with Halted.
func (f *Fake) Halt() {
	f.record("hlt")
	if !f.InterruptsEnabled() {
		panic(Halted{})
	}
}

// Breakpoint implements cpu.CPU.Breakpoint.
func (f *Fake) Breakpoint() { f.record("int3") }

// DeviceMemory implements cpu.CPU.DeviceMemory. Repeated calls for the same
// address share one buffer.
func (f *Fake) DeviceMemory(addr uint64, cells int) mmio.Region {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.devices == nil {
		f.devices = make(map[uint64]mmio.Buffer)
	}
	b, ok := f.devices[addr]
	if !ok || len(b) < cells {
		b = mmio.NewBuffer(cells)
		f.devices[addr] = b
	}
	return b
}

// Call implements cpu.CPU.Call.
func (f *Fake) Call(frameSize uint64, fn func()) { fn() }

// Touch implements cpu.CPU.Touch.
func (f *Fake) Touch() {}
