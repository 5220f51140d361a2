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

// Package pic drives the pair of cascaded Intel 8259 programmable interrupt
// controllers found in PC compatibles.
//
// Out of reset the primary controller delivers IRQ 0-7 on vectors 8-15,
// which collide with CPU exceptions. Initialize remaps both controllers to
// caller-chosen offsets. Every interrupt delivered through a controller must
// be acknowledged with NotifyEndOfInterrupt or that line and all lower
// priority lines stay blocked.
package pic

import (
	"errors"
	"fmt"

	"ringzero.dev/ringzero/pkg/ioport"
	"ringzero.dev/ringzero/pkg/log"
)

// I/O ports.
const (
	PrimaryCommand   = 0x20
	PrimaryData      = 0x21
	SecondaryCommand = 0xa0
	SecondaryData    = 0xa1

	// WaitPort is an unused port; writing it takes long enough for the
	// controllers to settle between initialization words.
	WaitPort = 0x80
)

// Initialization command word bits.
const (
	ICW1IC4  = 0x01 // ICW4 follows.
	ICW1SNGL = 0x02 // Single controller, no ICW3.
	ICW1LTIM = 0x08 // Level triggered.
	ICW1Init = 0x10 // Marks ICW1 on the command port.

	ICW4Mode8086 = 0x01
	ICW4AutoEOI  = 0x02
)

// Operation command word bits.
const (
	OCW2Level = 0x07 // IR level for specific commands.
	OCW2EOI   = 0x20
	OCW2SL    = 0x40 // Specific level.

	OCW3Marker  = 0x08 // Distinguishes OCW3 from OCW2.
	OCW3ReadReg = 0x02
	OCW3ReadISR = 0x01
)

// Lines is the number of IRQ lines per controller.
const Lines = 8

// CascadeLine is the primary line the secondary controller is wired to.
const CascadeLine = 2

const (
	cmdInit           = ICW1Init | ICW1IC4
	cmdEndOfInterrupt = OCW2EOI
)

// ErrInvalidOffset is returned for vector offsets that cannot be programmed.
var ErrInvalidOffset = errors.New("invalid PIC vector offset")

// PIC is one 8259 controller.
type PIC struct {
	// offset is the vector of line 0.
	offset uint8

	command ioport.Port8
	data    ioport.Port8
}

// HandlesInterrupt reports whether vector v belongs to this controller.
func (p *PIC) HandlesInterrupt(v uint8) bool {
	return p.offset <= v && uint16(v) < uint16(p.offset)+Lines
}

// Offset returns the vector of line 0.
func (p *PIC) Offset() uint8 {
	return p.offset
}

func (p *PIC) endOfInterrupt() {
	p.command.Write(cmdEndOfInterrupt)
}

func (p *PIC) readMask() uint8 {
	return p.data.Read()
}

func (p *PIC) writeMask(mask uint8) {
	p.data.Write(mask)
}

// ChainedPICs is the primary/secondary controller pair.
type ChainedPICs struct {
	primary   PIC
	secondary PIC
	wait      ioport.Port8
}

// New returns the controller pair to be remapped to the given offsets. No
// I/O happens until Initialize.
//
// Offsets must be multiples of eight at or above the first non-exception
// vector, and the two ranges must not overlap.
func New(io ioport.IO, primaryOffset, secondaryOffset uint8) (*ChainedPICs, error) {
	for _, off := range []uint8{primaryOffset, secondaryOffset} {
		if off%Lines != 0 || off < 32 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidOffset, off)
		}
	}
	if primaryOffset == secondaryOffset {
		return nil, fmt.Errorf("%w: both controllers at %d", ErrInvalidOffset, primaryOffset)
	}
	return &ChainedPICs{
		primary: PIC{
			offset:  primaryOffset,
			command: ioport.NewPort8(io, PrimaryCommand),
			data:    ioport.NewPort8(io, PrimaryData),
		},
		secondary: PIC{
			offset:  secondaryOffset,
			command: ioport.NewPort8(io, SecondaryCommand),
			data:    ioport.NewPort8(io, SecondaryData),
		},
		wait: ioport.NewPort8(io, WaitPort),
	}, nil
}

// Initialize runs the initialization sequence on both controllers, remapping
// them to their offsets. Interrupt masks are preserved.
//
// Interrupts should be disabled while this runs.
func (c *ChainedPICs) Initialize() {
	// Older machines need a delay between words; an out to the wait
	// port provides it.
	wait := func() { c.wait.Write(0) }

	primaryMask, secondaryMask := c.Masks()

	// ICW1: start initialization, expect ICW4.
	c.primary.command.Write(cmdInit)
	wait()
	c.secondary.command.Write(cmdInit)
	wait()

	// ICW2: vector offsets.
	c.primary.data.Write(c.primary.offset)
	wait()
	c.secondary.data.Write(c.secondary.offset)
	wait()

	// ICW3: the secondary hangs off the primary's cascade line.
	c.primary.data.Write(1 << CascadeLine)
	wait()
	c.secondary.data.Write(CascadeLine)
	wait()

	// ICW4: 8086 mode.
	c.primary.data.Write(ICW4Mode8086)
	wait()
	c.secondary.data.Write(ICW4Mode8086)
	wait()

	c.SetMasks(primaryMask, secondaryMask)
	log.Debugf("PICs remapped to %d/%d, masks %#02x/%#02x", c.primary.offset, c.secondary.offset, primaryMask, secondaryMask)
}

// Masks returns the interrupt mask registers. A set bit masks a line.
func (c *ChainedPICs) Masks() (primary, secondary uint8) {
	return c.primary.readMask(), c.secondary.readMask()
}

// SetMasks writes the interrupt mask registers.
func (c *ChainedPICs) SetMasks(primary, secondary uint8) {
	c.primary.writeMask(primary)
	c.secondary.writeMask(secondary)
}

// Disable masks every line on both controllers.
func (c *ChainedPICs) Disable() {
	c.SetMasks(0xff, 0xff)
}

// HandlesInterrupt reports whether vector v is delivered by either
// controller.
func (c *ChainedPICs) HandlesInterrupt(v uint8) bool {
	return c.primary.HandlesInterrupt(v) || c.secondary.HandlesInterrupt(v)
}

// Primary returns the primary controller.
func (c *ChainedPICs) Primary() *PIC {
	return &c.primary
}

// Secondary returns the secondary controller.
func (c *ChainedPICs) Secondary() *PIC {
	return &c.secondary
}

// NotifyEndOfInterrupt acknowledges vector v. Interrupts from the secondary
// arrive through the primary's cascade line, so both are acknowledged.
// Vectors that belong to neither controller are ignored.
func (c *ChainedPICs) NotifyEndOfInterrupt(v uint8) {
	if !c.HandlesInterrupt(v) {
		return
	}
	if c.secondary.HandlesInterrupt(v) {
		c.secondary.endOfInterrupt()
	}
	c.primary.endOfInterrupt()
}
