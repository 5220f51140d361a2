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
	"encoding/binary"
	"sync"

	"ringzero.dev/ringzero/pkg/cpu"
	"ringzero.dev/ringzero/pkg/log"
)

// Segment indices.
const (
	segNull  = 0
	segKcode = 1
	segKdata = 2
	segTss   = 3
	segTssHi = 4
	segLast  = 5
)

// Kernel selectors.
const (
	Kcode Selector = segKcode << 3
	Kdata Selector = segKdata << 3
	Tss   Selector = segTss << 3
)

const (
	// DoubleFaultISTIndex is the IST slot (0-based) holding the double
	// fault stack.
	DoubleFaultISTIndex = 0

	// DoubleFaultStackSize is the size of the double fault stack.
	DoubleFaultStackSize = 5 * 4096
)

// Descriptors is the processor's segment state: a GDT with the kernel code
// segment and a TSS whose IST provides a known-good stack for double faults.
//
// A Descriptors must not move once Init has run; the processor holds its
// address.
type Descriptors struct {
	gdt [segLast]SegmentDescriptor
	tss TaskState64

	// doubleFaultStack is the stack switched to for double faults. Its
	// top is stored in the TSS.
	doubleFaultStack [DoubleFaultStackSize]byte

	once sync.Once
}

// NewDescriptors allocates a Descriptors. Tables are built by Init.
func NewDescriptors() *Descriptors {
	return new(Descriptors)
}

// Init builds the tables. It may be called more than once; only the first
// call has any effect.
func (d *Descriptors) Init() {
	d.once.Do(d.init)
}

func (d *Descriptors) init() {
	// Null segment.
	d.gdt[segNull].setNull()

	// Kernel segments.
	d.gdt[segKcode] = KernelCodeSegment
	d.gdt[segKdata] = KernelDataSegment

	// The task segment, this spans two entries.
	tssBase, tssLimit, _ := d.TSS()
	d.gdt[segTss].setTSS(uint32(tssBase), uint32(tssLimit))
	d.gdt[segTssHi].setHi(uint32(tssBase >> 32))

	// The double fault stack grows down from its end.
	d.tss.SetIST(DoubleFaultISTIndex, d.StackTop())

	// Set the I/O bitmap base address beyond the last byte in the TSS
	// to block access to the entire I/O address range.
	d.tss.ioPerm = tssLimit + 1

	log.Debugf("GDT at %#x, TSS at %#x, double fault stack top %#x", kernelAddr(&d.gdt[0]), tssBase, d.StackTop())
}

// StackTop returns the top of the double fault stack.
func (d *Descriptors) StackTop() uint64 {
	return kernelAddr(&d.doubleFaultStack[0]) + uint64(len(d.doubleFaultStack))
}

// GDT returns the GDT base and limit.
func (d *Descriptors) GDT() (uint64, uint16) {
	return kernelAddr(&d.gdt[0]), uint16(8*segLast - 1)
}

// TSS returns the TSS base, limit and descriptor.
func (d *Descriptors) TSS() (uint64, uint16, *SegmentDescriptor) {
	return kernelAddr(&d.tss), uint16(binary.Size(&d.tss) - 1), &d.gdt[segTss]
}

// TaskState returns the TSS.
func (d *Descriptors) TaskState() *TaskState64 {
	return &d.tss
}

// Entry returns GDT slot i.
func (d *Descriptors) Entry(i int) SegmentDescriptor {
	return d.gdt[i]
}

// Entries returns the number of GDT slots.
func (d *Descriptors) Entries() int {
	return len(d.gdt)
}

// Load installs the GDT, reloads the code segment with Kcode and loads the
// task register with Tss.
//
// Precondition: Init has been called.
func (d *Descriptors) Load(c cpu.CPU) {
	base, limit := d.GDT()
	c.LoadGDT(base, limit)
	c.LoadCodeSegment(uint16(Kcode))
	c.LoadTaskRegister(uint16(Tss))
}

// Regions returns the memory the processor reads during delivery.
func (d *Descriptors) Regions() []Region {
	return []Region{
		dataRegion("gdt", &d.gdt),
		dataRegion("tss", &d.tss),
		dataRegion("double-fault-stack", &d.doubleFaultStack),
	}
}
