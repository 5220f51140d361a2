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
	"context"
	"encoding/binary"
	"fmt"
	"runtime/debug"

	"ringzero.dev/ringzero/pkg/cpu"
	"ringzero.dev/ringzero/pkg/mmio"
	"ringzero.dev/ringzero/pkg/ring0"
	"ringzero.dev/ringzero/pkg/vga"
)

// DescriptorTable is the value of GDTR or IDTR.
type DescriptorTable struct {
	Base  uint64
	Limit uint16
}

// TaskRegister is the value of TR, with its cached descriptor.
type TaskRegister struct {
	Selector uint16
	Base     uint64
	Limit    uint32
}

// Registers is the processor state the machine models.
type Registers struct {
	RIP    uint64
	RSP    uint64
	RFlags uint64
	CS     uint16
	SS     uint16
	CR2    uint64
	GDTR   DescriptorTable
	IDTR   DescriptorTable
	TR     TaskRegister
}

// Instruction lengths. RIP advances by these as instructions retire.
const (
	lenInt3    = 1 // int3
	lenHlt     = 1 // hlt
	lenSti     = 1 // sti
	lenCli     = 1 // cli
	lenInOut   = 1 // in/out with the port in dx
	lenPushfq  = 2 // pushfq; pop rax
	lenLGDT    = 3 // lgdt [rax]
	lenLIDT    = 3 // lidt [rax]
	lenLTR     = 3 // ltr ax
	lenLretq   = 2 // lretq
	lenCall    = 5 // call rel32
	lenMovLoad = 4 // mov rax, [rsp]
)

// stopRun is the value the processor goroutine panics with to stop the
// machine. It unwinds the kernel's stack back to run.
type stopRun struct {
	exit Exit
	err  error
}

// Unwind implements cpu.Unwinder.Unwind.
func (*stopRun) Unwind() {}

// vCPU is the processor. All of its state is owned by the goroutine running
// the kernel.
type vCPU struct {
	m    *Machine
	regs Registers

	// done is closed when the machine is canceled.
	done <-chan struct{}

	// shadow suppresses interrupts for the instruction after sti.
	shadow bool
}

var _ cpu.CPU = (*vCPU)(nil)

func newVCPU(m *Machine) *vCPU {
	return &vCPU{
		m: m,
		regs: Registers{
			RIP:    BootEntry,
			RSP:    BootStackTop,
			RFlags: ring0.KernelFlagsSet,
			CS:     uint16(ring0.Kcode),
			GDTR:   DescriptorTable{Base: bootGDTAddr, Limit: 15},
		},
	}
}

// run runs entry until the machine stops.
func (c *vCPU) run(ctx context.Context, entry func(cpu.CPU)) (exit Exit, err error) {
	c.done = ctx.Done()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if s, ok := r.(*stopRun); ok {
			exit, err = s.exit, s.err
			return
		}
		exit = Exit{}
		err = fmt.Errorf("%w: %v\n%s", ErrKernelPanic, r, debug.Stack())
	}()
	entry(c)
	c.m.log.Infof("Kernel entry returned at RIP %#x", c.regs.RIP)
	return Exit{Reason: ExitHalted}, nil
}

// stop stops the machine. It does not return.
func (c *vCPU) stop(exit Exit, err error) {
	panic(&stopRun{exit: exit, err: err})
}

// debugExit stops the machine on a write to the debug-exit device.
func (c *vCPU) debugExit(code uint32) {
	c.m.log.Infof("Debug exit with code %#x at RIP %#x", code, c.regs.RIP)
	c.stop(Exit{Reason: ExitDebugPort, Code: code}, nil)
}

func (c *vCPU) interruptsEnabled() bool {
	return c.regs.RFlags&ring0.InterruptFlag != 0
}

// begin starts an instruction: the machine may be canceled here, and a
// pending interrupt is taken if IF is set.
func (c *vCPU) begin() {
	select {
	case <-c.done:
		c.stop(Exit{Reason: ExitCanceled}, nil)
	default:
	}
	if c.shadow {
		c.shadow = false
		return
	}
	if !c.interruptsEnabled() {
		return
	}
	if v, ok := c.m.pic.acknowledge(); ok {
		c.interrupt(v)
	}
}

// retire completes an instruction of length n.
func (c *vCPU) retire(n uint64) {
	c.regs.RIP += n
}

// execute runs one instruction. If op returns a fault, the fault is raised
// with RIP at the instruction, and the instruction restarts once the
// handler returns.
func (c *vCPU) execute(n uint64, op func() *event) {
	for {
		c.begin()
		ev := op()
		if ev == nil {
			c.retire(n)
			return
		}
		ev.rip = c.regs.RIP
		c.exception(*ev)
	}
}

// In8 implements ioport.IO.In8.
func (c *vCPU) In8(port uint16) uint8 {
	var v uint32
	c.execute(lenInOut, func() *event {
		v = c.m.bus.in(port, 1)
		return nil
	})
	return uint8(v)
}

// Out8 implements ioport.IO.Out8.
func (c *vCPU) Out8(port uint16, v uint8) {
	c.execute(lenInOut, func() *event {
		c.m.bus.out(port, 1, uint32(v))
		return nil
	})
}

// In32 implements ioport.IO.In32.
func (c *vCPU) In32(port uint16) uint32 {
	var v uint32
	c.execute(lenInOut, func() *event {
		v = c.m.bus.in(port, 4)
		return nil
	})
	return v
}

// Out32 implements ioport.IO.Out32.
func (c *vCPU) Out32(port uint16, v uint32) {
	c.execute(lenInOut, func() *event {
		c.m.bus.out(port, 4, v)
		return nil
	})
}

// LoadGDT implements cpu.CPU.LoadGDT.
func (c *vCPU) LoadGDT(base uint64, limit uint16) {
	c.execute(lenLGDT, func() *event {
		c.regs.GDTR = DescriptorTable{Base: base, Limit: limit}
		return nil
	})
	c.m.log.Debugf("GDTR = %#x/%#x", base, limit)
}

// LoadIDT implements cpu.CPU.LoadIDT.
func (c *vCPU) LoadIDT(base uint64, limit uint16) {
	c.execute(lenLIDT, func() *event {
		c.regs.IDTR = DescriptorTable{Base: base, Limit: limit}
		return nil
	})
	c.m.log.Debugf("IDTR = %#x/%#x", base, limit)
}

// LoadTaskRegister implements cpu.CPU.LoadTaskRegister. The TSS descriptor
// is marked busy in memory.
func (c *vCPU) LoadTaskRegister(sel uint16) {
	c.execute(lenLTR, func() *event {
		s := ring0.Selector(sel)
		if s&^3 == 0 {
			return fault(ring0.GeneralProtectionFault, 0)
		}
		addr := c.regs.GDTR.Base + uint64(s.Index())*8
		if uint64(s.Index())*8+15 > uint64(c.regs.GDTR.Limit) {
			return fault(ring0.GeneralProtectionFault, uint64(s&^3))
		}
		b, ok := c.m.mem.slice(addr, 16)
		if !ok {
			return pageFault(addr, 0)
		}
		le := binary.LittleEndian
		d := ring0.DecodeSegmentDescriptor(le.Uint64(b))
		if !d.IsSystem() || d.Type() != ring0.SystemTypeTSSAvailable {
			return fault(ring0.GeneralProtectionFault, uint64(s&^3))
		}
		if !d.Present() {
			return fault(ring0.SegmentNotPresent, uint64(s&^3))
		}
		d.SetBusy(true)
		le.PutUint64(b, d.Raw())
		c.regs.TR = TaskRegister{
			Selector: sel,
			Base:     uint64(d.Base()) | uint64(le.Uint32(b[8:]))<<32,
			Limit:    d.Limit(),
		}
		return nil
	})
	c.m.log.Debugf("TR = %v base %#x limit %#x", ring0.Selector(sel), c.regs.TR.Base, c.regs.TR.Limit)
}

// LoadCodeSegment implements cpu.CPU.LoadCodeSegment.
func (c *vCPU) LoadCodeSegment(sel uint16) {
	c.execute(lenLretq, func() *event {
		if ev := c.codeSegment(ring0.Selector(sel)); ev != nil {
			return ev
		}
		c.regs.CS = sel
		return nil
	})
}

// EnableInterrupts implements cpu.CPU.EnableInterrupts.
func (c *vCPU) EnableInterrupts() {
	c.execute(lenSti, func() *event {
		if !c.interruptsEnabled() {
			c.shadow = true
		}
		c.regs.RFlags |= ring0.InterruptFlag
		return nil
	})
}

// DisableInterrupts implements cpu.CPU.DisableInterrupts.
func (c *vCPU) DisableInterrupts() {
	c.execute(lenCli, func() *event {
		c.regs.RFlags &^= ring0.InterruptFlag
		return nil
	})
}

// InterruptsEnabled implements cpu.CPU.InterruptsEnabled.
func (c *vCPU) InterruptsEnabled() bool {
	var enabled bool
	c.execute(lenPushfq, func() *event {
		enabled = c.interruptsEnabled()
		return nil
	})
	return enabled
}

// Halt implements cpu.CPU.Halt.
func (c *vCPU) Halt() {
	c.execute(lenHlt, func() *event { return nil })
	if !c.interruptsEnabled() {
		c.m.log.Infof("Halted with interrupts disabled at RIP %#x", c.regs.RIP)
		c.stop(Exit{Reason: ExitHalted}, nil)
	}
	for {
		if v, ok := c.m.pic.acknowledge(); ok {
			c.interrupt(v)
			return
		}
		select {
		case <-c.m.pic.notify:
		case <-c.done:
			c.stop(Exit{Reason: ExitCanceled}, nil)
		}
	}
}

// Breakpoint implements cpu.CPU.Breakpoint. The breakpoint is a trap: the
// saved RIP is that of the next instruction.
func (c *vCPU) Breakpoint() {
	c.execute(lenInt3, func() *event { return nil })
	c.exception(event{vector: ring0.Breakpoint, rip: c.regs.RIP})
}

// DeviceMemory implements cpu.CPU.DeviceMemory.
func (c *vCPU) DeviceMemory(addr uint64, cells int) mmio.Region {
	if addr == vga.BufferAddr && cells <= c.m.text.Cells() {
		return c.m.text
	}
	c.m.log.Warningf("No device memory at %#x (%d cells)", addr, cells)
	return mmio.Open(cells)
}

// Call implements cpu.CPU.Call. The call and the callee's frame setup are
// one instruction: if either the return address or the frame falls outside
// mapped memory, a page fault is raised at the call site with RSP
// unchanged.
func (c *vCPU) Call(frameSize uint64, fn func()) {
	size := frameSize + 8
	c.execute(0, func() *event {
		sp := c.regs.RSP
		if !c.m.mem.write64(sp-8, c.regs.RIP+lenCall) {
			return pageFault(sp-8, pfWrite)
		}
		if !c.m.mem.mapped(sp-size, frameSize) {
			return pageFault(sp-size, pfWrite)
		}
		c.regs.RSP = sp - size
		return nil
	})
	fn()

	// ret
	c.execute(0, func() *event {
		ret, ok := c.m.mem.read64(c.regs.RSP + frameSize)
		if !ok {
			return pageFault(c.regs.RSP+frameSize, 0)
		}
		c.regs.RSP += size
		c.regs.RIP = ret
		return nil
	})
}

// Touch implements cpu.CPU.Touch.
func (c *vCPU) Touch() {
	c.execute(lenMovLoad, func() *event {
		if _, ok := c.m.mem.read64(c.regs.RSP); !ok {
			return pageFault(c.regs.RSP, 0)
		}
		return nil
	})
}
