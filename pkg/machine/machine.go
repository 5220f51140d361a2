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

// Package machine provides a software x86-64 processor and PC platform for
// running a kernel inside the host process.
//
// The processor executes the kernel's Go code directly. Each cpu.CPU method
// is one instruction; between instructions the processor takes pending
// interrupts from its emulated 8259 pair. Interrupts and exceptions are
// delivered the way hardware delivers them: the gate, the code segment and
// the interrupt stack are read from the descriptor tables in mapped memory,
// the frame is pushed onto the selected stack, and the handler is entered
// through the executable region its gate points at. Faults raised during
// delivery escalate to a double fault and then to a triple fault, which
// shuts the machine down.
//
// The platform has a periodic timer on IRQ 0, an i8042 keyboard controller
// on IRQ 1, a 16550 UART at COM1, the ISA debug-exit device at port 0xf4
// and an 80x25 text buffer at 0xb8000.
package machine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"ringzero.dev/ringzero/pkg/cpu"
	"ringzero.dev/ringzero/pkg/log"
	"ringzero.dev/ringzero/pkg/ring0"
	"ringzero.dev/ringzero/pkg/vga"
)

// Boot state.
const (
	// BootEntry is RIP when the kernel is entered.
	BootEntry = 0x200000

	// BootStackTop is the initial RSP.
	BootStackTop = 0x800000

	// DefaultBootStackSize is the boot stack size if none is configured.
	DefaultBootStackSize = 64 << 10

	// bootGDTAddr is where the firmware GDT lives.
	bootGDTAddr = 0x7000
)

// Errors.
var (
	// ErrOverlap is returned by Map for regions that overlap mapped memory.
	ErrOverlap = errors.New("region overlaps mapped memory")

	// ErrBadRegion is returned by Map for empty or wrapping regions.
	ErrBadRegion = errors.New("invalid region")

	// ErrStarted is returned when a machine is reconfigured or run after
	// it has started.
	ErrStarted = errors.New("machine already started")

	// ErrKernelPanic wraps a panic raised by kernel code.
	ErrKernelPanic = errors.New("kernel panic")
)

// Config configures a machine.
type Config struct {
	// TimerHz is the frequency of the IRQ 0 timer. Zero disables it.
	TimerHz uint

	// BootStackSize is the size of the stack the kernel is entered on.
	// Zero means DefaultBootStackSize.
	BootStackSize uint64

	// Serial receives bytes written to COM1. Nil discards them.
	Serial io.Writer

	// Log receives machine diagnostics. Nil means the global logger.
	Log log.Logger
}

// Reason says why a machine stopped.
type Reason int

// Exit reasons.
const (
	// ExitHalted means the processor halted with interrupts disabled, or
	// the kernel entry function returned.
	ExitHalted Reason = iota + 1

	// ExitDebugPort means the kernel wrote to the debug-exit device.
	ExitDebugPort

	// ExitTripleFault means a fault was raised while delivering a double
	// fault.
	ExitTripleFault

	// ExitCanceled means the context passed to Run was canceled.
	ExitCanceled
)

func (r Reason) String() string {
	switch r {
	case ExitHalted:
		return "halted"
	case ExitDebugPort:
		return "debug exit"
	case ExitTripleFault:
		return "triple fault"
	case ExitCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// Exit describes how a machine stopped.
type Exit struct {
	Reason Reason

	// Code is the value written to the debug-exit device.
	Code uint32
}

// Status returns the host exit status the machine stops with: (Code<<1)|1
// for a debug exit, 0 for a triple fault (the machine resets) and -1
// otherwise.
func (e Exit) Status() int {
	switch e.Reason {
	case ExitDebugPort:
		return int(e.Code)<<1 | 1
	case ExitTripleFault:
		return 0
	default:
		return -1
	}
}

func (e Exit) String() string {
	if e.Reason == ExitDebugPort {
		return fmt.Sprintf("%v code=%#x status=%d", e.Reason, e.Code, e.Status())
	}
	return e.Reason.String()
}

// Machine is one processor and its platform devices.
type Machine struct {
	cfg Config
	log log.Logger

	// tickLog is used for messages that recur with every interrupt.
	tickLog log.Logger

	mem   memory
	bus   bus
	pic   *pic8259
	kbd   *Keyboard
	uart  *uart
	timer *timer
	text  *textBuffer
	stats stats
	vcpu  *vCPU

	started atomic.Bool
}

// New returns a machine with the boot stack and firmware GDT mapped.
func New(cfg Config) (*Machine, error) {
	if cfg.BootStackSize == 0 {
		cfg.BootStackSize = DefaultBootStackSize
	}
	if cfg.BootStackSize%16 != 0 || cfg.BootStackSize > BootStackTop-BootEntry {
		return nil, fmt.Errorf("invalid boot stack size %#x", cfg.BootStackSize)
	}
	if cfg.Serial == nil {
		cfg.Serial = io.Discard
	}
	if cfg.Log == nil {
		cfg.Log = log.Log()
	}
	m := &Machine{
		cfg:     cfg,
		log:     cfg.Log,
		tickLog: log.RateLimitedLogger(cfg.Log, time.Second),
		text:    newTextBuffer(),
	}
	m.pic = newPIC8259(&m.stats)
	m.kbd = newKeyboard(m.pic, &m.stats)
	m.uart = newUART(cfg.Serial, m.log)
	m.timer = newTimer(cfg.TimerHz, m.pic, &m.stats)
	m.vcpu = newVCPU(m)
	m.bus.init(m.tickLog)
	m.pic.register(&m.bus)
	m.kbd.register(&m.bus)
	m.uart.register(&m.bus, COM1)
	m.bus.register(&debugExit{stop: m.vcpu.debugExit}, DebugExitPort)
	m.bus.register(&postPort{log: m.tickLog}, POSTPort)

	if err := m.mem.add(bootStackRegion(cfg.BootStackSize)); err != nil {
		return nil, err
	}
	if err := m.mem.add(bootGDTRegion()); err != nil {
		return nil, err
	}
	return m, nil
}

// Map makes regions reachable by the processor. Regions must not overlap
// each other or anything already mapped.
func (m *Machine) Map(regions ...ring0.Region) error {
	if m.started.Load() {
		return ErrStarted
	}
	for _, r := range regions {
		if err := m.mem.add(r); err != nil {
			return err
		}
		m.log.Debugf("Mapped %v", r)
	}
	return nil
}

// Regions returns the mapped regions in address order.
func (m *Machine) Regions() []ring0.Region {
	var rs []ring0.Region
	m.mem.each(func(r ring0.Region) {
		rs = append(rs, r)
	})
	return rs
}

// Run enters the kernel at entry and runs until the machine stops or ctx is
// canceled. A machine can be run only once.
//
// entry runs on the processor's goroutine and is handed the processor. A
// return from entry is treated as a halt with interrupts disabled. A panic
// in kernel code stops the machine and is returned as an error wrapping
// ErrKernelPanic.
func (m *Machine) Run(ctx context.Context, entry func(cpu.CPU)) (Exit, error) {
	if m.started.Swap(true) {
		return Exit{}, ErrStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var exit Exit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Platform goroutines stop with the processor.
		defer cancel()
		var err error
		exit, err = m.vcpu.run(gctx, entry)
		return err
	})
	g.Go(func() error {
		return m.timer.run(gctx)
	})
	err := g.Wait()
	m.log.Infof("Machine stopped: %v", exit)
	return exit, err
}

// Keyboard returns the keyboard controller.
func (m *Machine) Keyboard() *Keyboard {
	return m.kbd
}

// RaiseIRQ raises an edge on ISA interrupt line irq (0-15).
func (m *Machine) RaiseIRQ(irq int) {
	m.pic.raise(irq)
}

// Screen returns the text buffer contents, one line per row.
func (m *Machine) Screen() string {
	return vga.Dump(m.text)
}

// Registers returns the processor registers. It must be called from the
// processor's goroutine or after Run has returned.
func (m *Machine) Registers() Registers {
	return m.vcpu.regs
}

// Deliveries returns the number of times vector v was delivered to its
// handler.
func (m *Machine) Deliveries(v uint8) uint64 {
	return m.stats.deliveries[v].Load()
}

// Escalations returns the number of double faults raised by escalation.
func (m *Machine) Escalations() uint64 {
	return m.stats.escalations.Load()
}

// EOIs returns the number of end-of-interrupt commands that retired
// interrupt line irq.
func (m *Machine) EOIs(irq int) uint64 {
	return m.stats.eois[irq].Load()
}

// Ticks returns the number of timer ticks raised.
func (m *Machine) Ticks() uint64 {
	return m.stats.ticks.Load()
}

// PICOffsets returns the vector offsets the interrupt controllers are
// programmed with.
func (m *Machine) PICOffsets() (primary, secondary uint8) {
	return m.pic.offsets()
}
