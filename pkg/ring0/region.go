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

package ring0

import (
	"fmt"
	"unsafe"
)

// Region is a range of kernel memory the processor must be able to reach
// while delivering interrupts: descriptor tables, the TSS, interrupt stacks
// and entry code. All regions must be mapped before the kernel runs.
type Region struct {
	// Name identifies the region in diagnostics.
	Name string

	// Addr is the address the processor sees for Data[0].
	Addr uint64

	// Data is the backing memory. The processor reads and writes it
	// directly; it aliases the kernel's own structures.
	Data []byte

	// Exec, if set, marks the region as code. The processor calls it to
	// run the handler entered at rip with the saved frame and, for
	// vectors that push one, the error code.
	Exec func(rip uint64, frame *Frame, errorCode uint64) error
}

// End returns the first address past the region.
func (r Region) End() uint64 {
	return r.Addr + uint64(len(r.Data))
}

// Contains reports whether addr lies in the region.
func (r Region) Contains(addr uint64) bool {
	return addr >= r.Addr && addr < r.End()
}

func (r Region) String() string {
	kind := "data"
	if r.Exec != nil {
		kind = "code"
	}
	return fmt.Sprintf("%s [%#x, %#x) %s", r.Name, r.Addr, r.End(), kind)
}

// kernelAddr returns the address of the given kernel object.
//
// Kernel structures are identity mapped: the processor sees them at the
// address Go allocated them at.
func kernelAddr[T any](obj *T) uint64 {
	return uint64(uintptr(unsafe.Pointer(obj)))
}

// kernelBytes returns the memory backing obj.
func kernelBytes[T any](obj *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(obj)), unsafe.Sizeof(*obj))
}

// dataRegion returns the data region covering obj.
func dataRegion[T any](name string, obj *T) Region {
	return Region{Name: name, Addr: kernelAddr(obj), Data: kernelBytes(obj)}
}
