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
	"fmt"

	"ringzero.dev/ringzero/pkg/bits"
)

// Useful bits.
const (
	_RFLAGS_RESERVED = 1 << 1
	_RFLAGS_TF       = 1 << 8
	_RFLAGS_IF       = 1 << 9

	// KernelFlagsSet should always be set in the kernel.
	KernelFlagsSet = _RFLAGS_RESERVED

	// InterruptFlag is RFLAGS.IF.
	InterruptFlag = _RFLAGS_IF
)

// Selector is a segment Selector.
type Selector uint16

// Index returns the descriptor table index named by s.
func (s Selector) Index() int {
	return int(s >> 3)
}

// RPL returns the requested privilege level.
func (s Selector) RPL() int {
	return int(s & 3)
}

// LDT reports whether s refers to the local descriptor table.
func (s Selector) LDT() bool {
	return s&4 != 0
}

func (s Selector) String() string {
	return fmt.Sprintf("%#x", uint16(s))
}

// SegmentDescriptor is a segment descriptor.
type SegmentDescriptor struct {
	bits [2]uint32
}

// SegmentDescriptorFlags are typed flags within a descriptor.
type SegmentDescriptorFlags uint32

// SegmentDescriptorFlag declarations.
const (
	SegmentDescriptorAccess     SegmentDescriptorFlags = 1 << 8  // Access bit (always set).
	SegmentDescriptorWrite                             = 1 << 9  // Write permission.
	SegmentDescriptorExpandDown                        = 1 << 10 // Grows down, not used.
	SegmentDescriptorExecute                           = 1 << 11 // Execute permission.
	SegmentDescriptorSystem                            = 1 << 12 // Zero => system, 1 => user code/data.
	SegmentDescriptorPresent                           = 1 << 15 // Present.
	SegmentDescriptorAVL                               = 1 << 20 // Available.
	SegmentDescriptorLong                              = 1 << 21 // Long mode.
	SegmentDescriptorDB                                = 1 << 22 // 16 or 32-bit.
	SegmentDescriptorG                                 = 1 << 23 // Granularity: page or byte.
)

// System segment and gate types, as found in bits 8-11 of a descriptor with
// SegmentDescriptorSystem clear.
const (
	SystemTypeTSSAvailable = 0x9
	SystemTypeTSSBusy      = 0xb
	SystemTypeInterrupt    = 0xe
	SystemTypeTrap         = 0xf
)

// DecodeSegmentDescriptor returns the descriptor encoded by raw, as read from
// a descriptor table.
func DecodeSegmentDescriptor(raw uint64) SegmentDescriptor {
	return SegmentDescriptor{bits: [2]uint32{uint32(raw), uint32(raw >> 32)}}
}

// Raw returns the descriptor as it appears in a descriptor table.
func (d *SegmentDescriptor) Raw() uint64 {
	return uint64(d.bits[1])<<32 | uint64(d.bits[0])
}

// Base returns the descriptor's base linear address.
func (d *SegmentDescriptor) Base() uint32 {
	return d.bits[1]&0xFF000000 | (d.bits[1]&0x000000FF)<<16 | d.bits[0]>>16
}

// Limit returns the descriptor size.
func (d *SegmentDescriptor) Limit() uint32 {
	l := d.bits[0]&0xFFFF | d.bits[1]&0xF0000
	if d.bits[1]&uint32(SegmentDescriptorG) != 0 {
		l <<= 12
		l |= 0xFFF
	}
	return l
}

// Flags returns descriptor flags.
func (d *SegmentDescriptor) Flags() SegmentDescriptorFlags {
	return SegmentDescriptorFlags(d.bits[1] & 0x00F09F00)
}

// DPL returns the descriptor privilege level.
func (d *SegmentDescriptor) DPL() int {
	return int(bits.Field(d.bits[1], 13, 2))
}

// Type returns the four type bits. For system descriptors this is one of
// the SystemType constants.
func (d *SegmentDescriptor) Type() uint32 {
	return bits.Field(d.bits[1], 8, 4)
}

// Present reports whether the descriptor is marked present.
func (d *SegmentDescriptor) Present() bool {
	return bits.IsOn(d.Flags(), SegmentDescriptorPresent)
}

// IsSystem reports whether the descriptor is a system descriptor (TSS, LDT
// or gate) rather than code or data.
func (d *SegmentDescriptor) IsSystem() bool {
	return !bits.IsOn(d.Flags(), SegmentDescriptorSystem)
}

// IsCode64 reports whether the descriptor is a 64-bit code segment.
func (d *SegmentDescriptor) IsCode64() bool {
	f := d.Flags()
	return !d.IsSystem() &&
		bits.IsOn(f, SegmentDescriptorExecute|SegmentDescriptorLong) &&
		!bits.IsOn(f, SegmentDescriptorDB)
}

// SetBusy sets or clears the busy bit of a TSS descriptor.
func (d *SegmentDescriptor) SetBusy(busy bool) {
	t := uint32(SystemTypeTSSAvailable)
	if busy {
		t = SystemTypeTSSBusy
	}
	d.bits[1] = bits.SetField(d.bits[1], 8, 4, t)
}

func (d SegmentDescriptor) String() string {
	switch {
	case !d.Present():
		return "not present"
	case d.IsSystem():
		return fmt.Sprintf("system type=%#x base=%#x limit=%#x dpl=%d", d.Type(), d.Base(), d.Limit(), d.DPL())
	case bits.IsOn(d.Flags(), SegmentDescriptorExecute):
		return fmt.Sprintf("code long=%v dpl=%d", bits.IsOn(d.Flags(), SegmentDescriptorLong), d.DPL())
	default:
		return fmt.Sprintf("data base=%#x limit=%#x dpl=%d", d.Base(), d.Limit(), d.DPL())
	}
}

func (d *SegmentDescriptor) setNull() {
	d.bits[0] = 0
	d.bits[1] = 0
}

func (d *SegmentDescriptor) set(base, limit uint32, dpl int, flags SegmentDescriptorFlags) {
	flags |= SegmentDescriptorPresent
	if limit>>12 != 0 {
		limit >>= 12
		flags |= SegmentDescriptorG
	}
	d.bits[0] = base<<16 | limit&0xFFFF
	d.bits[1] = base&0xFF000000 | (base>>16)&0xFF | limit&0x000F0000 | uint32(flags) | uint32(dpl)<<13
}

func (d *SegmentDescriptor) setCode64(base, limit uint32, dpl int) {
	d.set(base, limit, dpl,
		SegmentDescriptorG|
			SegmentDescriptorLong|
			SegmentDescriptorExecute|
			SegmentDescriptorSystem)
}

func (d *SegmentDescriptor) setData(base, limit uint32, dpl int) {
	d.set(base, limit, dpl,
		SegmentDescriptorWrite|
			SegmentDescriptorSystem)
}

// setTSS sets a 64-bit available TSS descriptor. The high half of the base
// goes in the following slot, see setHi.
func (d *SegmentDescriptor) setTSS(base, limit uint32) {
	d.set(base, limit, 0,
		SegmentDescriptorAccess|
			SegmentDescriptorExecute)
}

// setHi is only used for the TSS segment, which is magically 64-bits.
func (d *SegmentDescriptor) setHi(base uint32) {
	d.bits[0] = base
	d.bits[1] = 0
}

// Gate64 is a 64-bit task, trap, or interrupt gate.
type Gate64 struct {
	bits [4]uint32
}

// gateSize is the size of a Gate64 in an IDT.
const gateSize = 16

// DecodeGate64 decodes the 16 bytes of an IDT entry.
func DecodeGate64(b []byte) Gate64 {
	var g Gate64
	for i := range g.bits {
		g.bits[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return g
}

func (g *Gate64) setInterrupt(cs Selector, rip uint64, dpl int, ist int) {
	g.bits[0] = uint32(cs)<<16 | uint32(rip)&0xFFFF
	g.bits[1] = uint32(rip)&0xFFFF0000 | uint32(SegmentDescriptorPresent) | uint32(dpl)<<13 | SystemTypeInterrupt<<8 | uint32(ist)&0x7
	g.bits[2] = uint32(rip >> 32)
	g.bits[3] = 0
}

func (g *Gate64) setTrap(cs Selector, rip uint64, dpl int, ist int) {
	g.setInterrupt(cs, rip, dpl, ist)
	g.bits[1] |= 1 << 8
}

// Offset returns the handler address.
func (g *Gate64) Offset() uint64 {
	return uint64(g.bits[2])<<32 | uint64(g.bits[1]&0xFFFF0000) | uint64(g.bits[0]&0xFFFF)
}

// Selector returns the handler code segment.
func (g *Gate64) Selector() Selector {
	return Selector(g.bits[0] >> 16)
}

// IST returns the gate's interrupt stack table field: zero for the current
// stack, otherwise the 1-based IST slot.
func (g *Gate64) IST() int {
	return int(g.bits[1] & 0x7)
}

// Type returns the gate type.
func (g *Gate64) Type() uint32 {
	return bits.Field(g.bits[1], 8, 4)
}

// DPL returns the gate's privilege level.
func (g *Gate64) DPL() int {
	return int(bits.Field(g.bits[1], 13, 2))
}

// Present reports whether the gate is present.
func (g *Gate64) Present() bool {
	return bits.IsOn(g.bits[1], uint32(SegmentDescriptorPresent))
}

// SetStackIndex makes the gate switch to the stack in TSS IST slot index
// (0-based) on delivery.
func (g *Gate64) SetStackIndex(index int) *Gate64 {
	if index < 0 || index >= ISTSlots {
		panic(fmt.Sprintf("IST index %d out of range", index))
	}
	g.bits[1] = bits.SetField(g.bits[1], 0, 3, uint32(index+1))
	return g
}

func (g Gate64) String() string {
	if !g.Present() {
		return "not present"
	}
	kind := "interrupt"
	if g.Type() == SystemTypeTrap {
		kind = "trap"
	}
	return fmt.Sprintf("%s cs=%v rip=%#x ist=%d dpl=%d", kind, g.Selector(), g.Offset(), g.IST(), g.DPL())
}

// ISTSlots is the number of interrupt stack table slots.
const ISTSlots = 7

// TaskState64 is a 64-bit task state structure.
type TaskState64 struct {
	_              uint32
	rsp0Lo, rsp0Hi uint32
	rsp1Lo, rsp1Hi uint32
	rsp2Lo, rsp2Hi uint32
	_              [2]uint32
	ist            [ISTSlots][2]uint32
	_              [2]uint32
	_              uint16
	ioPerm         uint16
}

// TSSISTOffset is the byte offset of IST slot 0 within a TaskState64.
const TSSISTOffset = 36

// SetIST sets the stack top for IST slot index (0-based).
func (t *TaskState64) SetIST(index int, addr uint64) {
	t.ist[index][0] = uint32(addr)
	t.ist[index][1] = uint32(addr >> 32)
}

// IST returns the stack top in IST slot index (0-based).
func (t *TaskState64) IST(index int) uint64 {
	return uint64(t.ist[index][1])<<32 | uint64(t.ist[index][0])
}

// RSP0 returns the ring 0 stack pointer.
func (t *TaskState64) RSP0() uint64 {
	return uint64(t.rsp0Hi)<<32 | uint64(t.rsp0Lo)
}

// IOPermBase returns the I/O permission bitmap offset.
func (t *TaskState64) IOPermBase() uint16 {
	return t.ioPerm
}

var (
	// KernelCodeSegment is the 64-bit kernel code segment.
	KernelCodeSegment SegmentDescriptor

	// KernelDataSegment is the kernel data segment.
	KernelDataSegment SegmentDescriptor
)

func init() {
	KernelCodeSegment.setCode64(0, 0, 0)
	KernelDataSegment.setData(0, 0xffffffff, 0)
}
