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

package machine

import (
	"encoding/binary"
	"fmt"

	"ringzero.dev/ringzero/pkg/ring0"
)

// Page fault error code bits.
const (
	pfPresent = 1 << 0
	pfWrite   = 1 << 1
	pfFetch   = 1 << 4
)

// event is an exception or interrupt to deliver.
type event struct {
	vector ring0.Vector

	// code is the error code, pushed if hasCode.
	code    uint64
	hasCode bool

	// external is set for interrupts from the interrupt controller.
	external bool

	// rip is the saved RIP: the faulting instruction for faults, the
	// next instruction for traps and interrupts.
	rip uint64

	// cr2 is the faulting address of a page fault.
	cr2 uint64
}

func (e event) String() string {
	if e.hasCode {
		return fmt.Sprintf("%v (%d) code %#x at RIP %#x", e.vector, uint8(e.vector), e.code, e.rip)
	}
	return fmt.Sprintf("%v (%d) at RIP %#x", e.vector, uint8(e.vector), e.rip)
}

// fault returns exception v with the given error code, if v pushes one.
func fault(v ring0.Vector, code uint64) *event {
	ev := &event{vector: v}
	if v.HasErrorCode() {
		ev.code, ev.hasCode = code, true
	}
	return ev
}

func pageFault(addr, code uint64) *event {
	ev := fault(ring0.PageFault, code)
	ev.cr2 = addr
	return ev
}

// interrupt delivers external interrupt v.
func (c *vCPU) interrupt(v uint8) {
	c.exception(event{vector: ring0.Vector(v), external: true, rip: c.regs.RIP})
}

// exception delivers ev and returns once its handler has returned. Faults
// raised while delivering are combined with ev: the pair either escalates
// to a double fault or the second is delivered in place of the first. A
// fault while delivering a double fault shuts the machine down.
func (c *vCPU) exception(ev event) {
	cur := ev
	for {
		if cur.vector == ring0.PageFault && !cur.external {
			c.regs.CR2 = cur.cr2
		}
		nested := c.deliver(cur)
		if nested == nil {
			return
		}
		nested.rip = cur.rip
		c.m.log.Infof("%v while delivering %v", *nested, cur)

		switch {
		case cur.vector == ring0.DoubleFault && !cur.external:
			c.tripleFault(cur, *nested)
		case !cur.external && ring0.Escalates(cur.vector, nested.vector):
			c.m.stats.escalations.Add(1)
			c.m.log.Warningf("Double fault: %v while delivering %v", nested.vector, cur.vector)
			cur = event{vector: ring0.DoubleFault, hasCode: true, rip: cur.rip}
		default:
			cur = *nested
		}
	}
}

func (c *vCPU) tripleFault(first, second event) {
	c.m.stats.tripleFaults.Add(1)
	c.m.log.Warningf("Triple fault: %v while delivering %v; shutting down", second, first)
	c.stop(Exit{Reason: ExitTripleFault}, nil)
}

// deliver runs ev's handler through the IDT. It returns the fault raised if
// delivery fails before the handler is entered.
func (c *vCPU) deliver(ev event) *event {
	v := ev.vector
	idtCode := uint64(v)<<3 | 2
	if ev.external {
		idtCode |= 1
	}

	// The gate.
	off := uint64(v) * 16
	if off+15 > uint64(c.regs.IDTR.Limit) {
		return fault(ring0.GeneralProtectionFault, idtCode)
	}
	raw, ok := c.m.mem.slice(c.regs.IDTR.Base+off, 16)
	if !ok {
		return pageFault(c.regs.IDTR.Base+off, 0)
	}
	gate := ring0.DecodeGate64(raw)
	if t := gate.Type(); t != ring0.SystemTypeInterrupt && t != ring0.SystemTypeTrap {
		return fault(ring0.GeneralProtectionFault, idtCode)
	}
	if !gate.Present() {
		return fault(ring0.SegmentNotPresent, idtCode)
	}

	// The handler's code segment.
	sel := gate.Selector()
	if nested := c.codeSegment(sel); nested != nil {
		return nested
	}

	// The stack.
	sp := c.regs.RSP
	if ist := gate.IST(); ist != 0 {
		var nested *event
		if sp, nested = c.interruptStack(ist); nested != nil {
			return nested
		}
	}
	sp &^= 0xf

	size := uint64(ring0.FrameSize)
	if ev.hasCode {
		size += 8
	}
	base := sp - size
	b, ok := c.m.mem.slice(base, size)
	if !ok {
		return pageFault(c.firstUnmapped(sp, size), pfWrite)
	}
	frame := ring0.Frame{
		RIP:    ev.rip,
		CS:     uint64(c.regs.CS),
		RFlags: c.regs.RFlags,
		RSP:    c.regs.RSP,
		SS:     uint64(c.regs.SS),
	}
	if ev.hasCode {
		binary.LittleEndian.PutUint64(b, ev.code)
		frame.Encode(b[8:])
	} else {
		frame.Encode(b)
	}

	// Delivery can no longer fail.
	c.regs.RSP = base
	c.regs.CS = uint16(sel)
	c.regs.RIP = gate.Offset()
	if gate.Type() == ring0.SystemTypeInterrupt {
		c.regs.RFlags &^= ring0.InterruptFlag
	}
	c.m.stats.deliveries[v].Add(1)
	if ev.external {
		c.m.tickLog.Debugf("Interrupt %v", ev)
	} else {
		c.m.log.Infof("Exception %v", ev)
	}

	c.enter(ev)
	return nil
}

// firstUnmapped returns the first address a push sequence from sp down
// would fault on.
func (c *vCPU) firstUnmapped(sp, size uint64) uint64 {
	for addr := sp - 8; addr >= sp-size; addr -= 8 {
		if !c.m.mem.mapped(addr, 8) {
			return addr
		}
	}
	return sp - size
}

// codeSegment checks that sel names a present 64-bit ring 0 code segment in
// the GDT.
func (c *vCPU) codeSegment(sel ring0.Selector) *event {
	if sel&^3 == 0 {
		return fault(ring0.GeneralProtectionFault, 0)
	}
	code := uint64(sel &^ 3)
	off := uint64(sel.Index()) * 8
	if off+7 > uint64(c.regs.GDTR.Limit) {
		return fault(ring0.GeneralProtectionFault, code)
	}
	raw, ok := c.m.mem.read64(c.regs.GDTR.Base + off)
	if !ok {
		return pageFault(c.regs.GDTR.Base+off, 0)
	}
	d := ring0.DecodeSegmentDescriptor(raw)
	if d.IsSystem() || d.Flags()&ring0.SegmentDescriptorExecute == 0 {
		return fault(ring0.GeneralProtectionFault, code)
	}
	if d.DPL() != 0 {
		return fault(ring0.GeneralProtectionFault, code)
	}
	if !d.Present() {
		return fault(ring0.SegmentNotPresent, code)
	}
	if !d.IsCode64() {
		return fault(ring0.GeneralProtectionFault, code)
	}
	return nil
}

// interruptStack reads IST slot ist (1-based) from the TSS.
func (c *vCPU) interruptStack(ist int) (uint64, *event) {
	tr := c.regs.TR
	if tr.Selector&^3 == 0 {
		return 0, fault(ring0.InvalidTSS, 0)
	}
	off := uint64(ring0.TSSISTOffset + (ist-1)*8)
	if off+7 > uint64(tr.Limit) {
		return 0, fault(ring0.InvalidTSS, uint64(tr.Selector&^3))
	}
	sp, ok := c.m.mem.read64(tr.Base + off)
	if !ok {
		return 0, pageFault(tr.Base+off, 0)
	}
	return sp, nil
}

// enter runs the handler at RIP on the frame just pushed, then returns
// from it with iretq.
func (c *vCPU) enter(ev event) {
	var r *ring0.Region
	for {
		var ok bool
		if r, ok = c.m.mem.find(c.regs.RIP); ok && r.Exec != nil {
			break
		}
		code := uint64(pfFetch)
		if ok {
			code |= pfPresent
		}
		nx := pageFault(c.regs.RIP, code)
		nx.rip = c.regs.RIP
		c.exception(*nx)
	}

	sp := c.regs.RSP
	if ev.hasCode {
		sp += 8
	}
	b, ok := c.m.mem.slice(sp, ring0.FrameSize)
	if !ok {
		c.stop(Exit{}, fmt.Errorf("interrupt frame at %#x unmapped", sp))
	}
	frame := ring0.DecodeFrame(b)
	if err := r.Exec(c.regs.RIP, &frame, ev.code); err != nil {
		c.stop(Exit{}, fmt.Errorf("entering handler for %v at %#x: %w", ev.vector, c.regs.RIP, err))
	}
	frame.Encode(b)

	// The stub discards the error code.
	c.regs.RSP = sp
	c.iret()
}

// iret pops an interrupt frame.
func (c *vCPU) iret() {
	b, ok := c.m.mem.slice(c.regs.RSP, ring0.FrameSize)
	if !ok {
		c.stop(Exit{}, fmt.Errorf("iretq frame at %#x unmapped", c.regs.RSP))
	}
	f := ring0.DecodeFrame(b)
	c.regs.RIP = f.RIP
	c.regs.CS = uint16(f.CS)
	c.regs.RFlags = f.RFlags | ring0.KernelFlagsSet
	c.regs.RSP = f.RSP
	c.regs.SS = uint16(f.SS)
}
