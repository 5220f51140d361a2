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

// Package kernel is the interrupt and exception core of the kernel.
//
// Init brings the processor from its boot state to one that takes
// interrupts: it loads a GDT and TSS whose interrupt stack table holds a
// dedicated double fault stack, loads an IDT with the kernel's handlers,
// remaps the interrupt controllers past the exception vectors and enables
// interrupts. The order matters. The IDT's double fault gate names an IST
// slot, so the TSS must be loaded first; interrupts are only enabled once
// every vector they can arrive on has a handler. A scancode typed before
// the remap is read during Init, since initializing the controllers
// discards its interrupt.
package kernel

import (
	"fmt"
	"io"
	"sync/atomic"

	"ringzero.dev/ringzero/pkg/console"
	"ringzero.dev/ringzero/pkg/cpu"
	"ringzero.dev/ringzero/pkg/debugexit"
	"ringzero.dev/ringzero/pkg/keyboard"
	"ringzero.dev/ringzero/pkg/pic"
	"ringzero.dev/ringzero/pkg/ring0"
	"ringzero.dev/ringzero/pkg/serial"
	"ringzero.dev/ringzero/pkg/sync"
	"ringzero.dev/ringzero/pkg/vga"
)

// Interrupt controller layout.
const (
	// PrimaryOffset is the first vector of the primary controller.
	PrimaryOffset = uint8(ring0.FirstUserVector)

	// SecondaryOffset is the first vector of the secondary controller.
	SecondaryOffset = PrimaryOffset + pic.Lines

	// TimerVector is IRQ 0.
	TimerVector = ring0.Vector(PrimaryOffset)

	// KeyboardVector is IRQ 1.
	KeyboardVector = TimerVector + 1
)

// Interrupt masks after Init: only the timer and keyboard lines are open.
const (
	primaryMask   = 0xfc
	secondaryMask = 0xff
)

// Keyboard controller ports.
const (
	KeyboardDataPort   = 0x60
	KeyboardStatusPort = 0x64
)

// keyboardOutputFull is set in the keyboard status when a byte is waiting
// in the data port.
const keyboardOutputFull = 0x01

// Options configures a kernel.
type Options struct {
	// TickDots prints a dot on every timer interrupt.
	TickDots bool

	// MirrorScreen copies screen output to the serial console.
	MirrorScreen bool
}

// Kernel is the kernel's global state. There is one per machine.
type Kernel struct {
	opts Options

	descriptors *ring0.Descriptors
	idt         *ring0.IDT

	// The following are set by Attach.
	cpu    cpu.CPU
	screen *console.Console
	serial *console.Console

	picMu sync.SpinMutex
	pics  *pic.ChainedPICs

	// kbd is created by the first keyboard interrupt.
	kbdMu sync.SpinMutex
	kbd   *keyboard.Keyboard

	input inputRing
	ticks atomic.Uint64

	initOnce sync.Once
}

// New allocates a kernel and its tables. The tables are mapped into the
// machine with Regions before the kernel runs.
func New(opts Options) *Kernel {
	return &Kernel{
		opts:        opts,
		descriptors: ring0.NewDescriptors(),
		idt:         ring0.NewIDT(),
	}
}

// Regions returns the memory the processor needs to deliver interrupts to
// this kernel.
func (k *Kernel) Regions() []ring0.Region {
	return append(k.descriptors.Regions(), k.idt.Regions()...)
}

// Attach binds the kernel to the processor it runs on and sets up its
// consoles. It must be called on that processor before anything else.
func (k *Kernel) Attach(c cpu.CPU) {
	k.cpu = c

	port := serial.New(c, serial.COM1)
	port.Init()
	k.serial = console.New(c, port)

	var screen io.Writer = vga.NewWriter(c.DeviceMemory(vga.BufferAddr, vga.Width*vga.Height))
	if k.opts.MirrorScreen {
		screen = io.MultiWriter(screen, port)
	}
	k.screen = console.New(c, screen)

	pics, err := pic.New(c, PrimaryOffset, SecondaryOffset)
	if err != nil {
		panic(fmt.Sprintf("interrupt controller layout: %v", err))
	}
	k.pics = pics
}

// Entry returns a machine entry point that attaches the kernel and runs
// main.
func (k *Kernel) Entry(main func()) func(cpu.CPU) {
	return func(c cpu.CPU) {
		k.Attach(c)
		main()
	}
}

// Init loads the descriptor tables, remaps the interrupt controllers and
// enables interrupts. Only the first call has any effect.
func (k *Kernel) Init() {
	k.initOnce.Do(func() {
		k.descriptors.Init()
		k.descriptors.Load(k.cpu)

		k.initIDT()
		k.idt.Load(k.cpu)

		k.picMu.Lock()
		k.pics.Initialize()
		k.pics.SetMasks(primaryMask, secondaryMask)
		k.picMu.Unlock()

		k.drainKeyboard()

		k.cpu.EnableInterrupts()
	})
}

// initIDT binds the kernel's handlers.
func (k *Kernel) initIDT() {
	k.idt.SetHandler(ring0.Breakpoint, k.breakpoint)
	k.idt.SetHandlerWithCode(ring0.DoubleFault, k.doubleFault).
		SetStackIndex(ring0.DoubleFaultISTIndex)
	k.idt.SetHandler(TimerVector, k.timer)
	k.idt.SetHandler(KeyboardVector, k.keyboard)
}

// Main is the kernel's main program: greet, initialize, then idle servicing
// interrupts.
func (k *Kernel) Main() {
	k.screen.Println("Hello from ringzero")
	k.Init()
	cpu.HaltLoop(k.cpu)
}

// Exit signals code to the host through the debug-exit device and halts.
func (k *Kernel) Exit(code debugexit.Code) {
	debugexit.Signal(k.cpu, code)
	cpu.HaltLoop(k.cpu)
}

// endOfInterrupt acknowledges vector v at the interrupt controllers.
func (k *Kernel) endOfInterrupt(v ring0.Vector) {
	k.picMu.Lock()
	k.pics.NotifyEndOfInterrupt(uint8(v))
	k.picMu.Unlock()
}

// CPU returns the processor the kernel is attached to.
func (k *Kernel) CPU() cpu.CPU {
	return k.cpu
}

// Screen returns the screen console.
func (k *Kernel) Screen() *console.Console {
	return k.screen
}

// Serial returns the serial console.
func (k *Kernel) Serial() *console.Console {
	return k.serial
}

// Descriptors returns the GDT and TSS.
func (k *Kernel) Descriptors() *ring0.Descriptors {
	return k.descriptors
}

// IDT returns the interrupt descriptor table.
func (k *Kernel) IDT() *ring0.IDT {
	return k.idt
}

// Ticks returns the number of timer interrupts handled.
func (k *Kernel) Ticks() uint64 {
	return k.ticks.Load()
}

// ReadKey returns the oldest character typed and not yet read.
func (k *Kernel) ReadKey() (r rune, ok bool) {
	cpu.WithoutInterrupts(k.cpu, func() {
		r, ok = k.input.pop()
	})
	return r, ok
}
