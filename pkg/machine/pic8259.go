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
	"math/bits"

	"ringzero.dev/ringzero/pkg/pic"
	"ringzero.dev/ringzero/pkg/sync"
)

// Firmware vector offsets, as the BIOS leaves the controllers.
const (
	biosPrimaryOffset   = 0x08
	biosSecondaryOffset = 0x70
)

// i8259 is the state of one emulated controller.
type i8259 struct {
	offset uint8

	irr uint8 // Interrupt request register.
	isr uint8 // In-service register.
	imr uint8 // Interrupt mask register.

	// initStep is the next initialization word expected on the data
	// port, or zero once initialization is complete.
	initStep int
	icw1     uint8
	icw3     uint8
	autoEOI  bool

	// readISR selects ISR rather than IRR for command port reads.
	readISR bool
}

// Initialization steps.
const (
	stepReady = iota
	stepICW2
	stepICW3
	stepICW4
)

func (p *i8259) command(v uint8) (eoiLine int) {
	eoiLine = -1
	switch {
	case v&pic.ICW1Init != 0:
		p.icw1 = v
		p.imr, p.isr, p.irr = 0, 0, 0
		p.readISR = false
		p.autoEOI = false
		p.initStep = stepICW2
	case v&pic.OCW3Marker != 0:
		if v&pic.OCW3ReadReg != 0 {
			p.readISR = v&pic.OCW3ReadISR != 0
		}
	case v&pic.OCW2EOI != 0:
		line := -1
		if v&pic.OCW2SL != 0 {
			line = int(v & pic.OCW2Level)
		} else if p.isr != 0 {
			line = bits.TrailingZeros8(p.isr)
		}
		if line >= 0 && p.isr&(1<<line) != 0 {
			p.isr &^= 1 << line
			eoiLine = line
		}
	}
	return eoiLine
}

func (p *i8259) data(v uint8) {
	switch p.initStep {
	case stepICW2:
		p.offset = v &^ (pic.Lines - 1)
		switch {
		case p.icw1&pic.ICW1SNGL == 0:
			p.initStep = stepICW3
		case p.icw1&pic.ICW1IC4 != 0:
			p.initStep = stepICW4
		default:
			p.initStep = stepReady
		}
	case stepICW3:
		p.icw3 = v
		if p.icw1&pic.ICW1IC4 != 0 {
			p.initStep = stepICW4
		} else {
			p.initStep = stepReady
		}
	case stepICW4:
		p.autoEOI = v&pic.ICW4AutoEOI != 0
		p.initStep = stepReady
	default:
		p.imr = v
	}
}

// pending returns the highest priority line in requests that may be
// delivered: unmasked, and higher priority than every line in service.
func (p *i8259) pending(requests uint8) (int, bool) {
	if p.initStep != stepReady {
		return 0, false
	}
	req := requests &^ p.imr
	if req == 0 {
		return 0, false
	}
	line := bits.TrailingZeros8(req)
	if p.isr != 0 && bits.TrailingZeros8(p.isr) <= line {
		return 0, false
	}
	return line, true
}

func (p *i8259) accept(line int) {
	p.irr &^= 1 << line
	if !p.autoEOI {
		p.isr |= 1 << line
	}
}

// pic8259 is the cascaded controller pair. The secondary's output is wired
// to primary line 2.
type pic8259 struct {
	mu    sync.Mutex
	chips [2]i8259

	// notify receives a value whenever a request may have become
	// deliverable.
	notify chan struct{}

	stats *stats
}

func newPIC8259(s *stats) *pic8259 {
	p := &pic8259{
		notify: make(chan struct{}, 1),
		stats:  s,
	}
	p.chips[0].offset = biosPrimaryOffset
	p.chips[1].offset = biosSecondaryOffset
	return p
}

func (p *pic8259) register(b *bus) {
	b.register(p, pic.PrimaryCommand, pic.PrimaryData, pic.SecondaryCommand, pic.SecondaryData)
}

func (p *pic8259) kick() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// raise latches an edge on line irq.
func (p *pic8259) raise(irq int) {
	if irq < 0 || irq >= 2*pic.Lines {
		panic("IRQ out of range")
	}
	p.mu.Lock()
	p.chips[irq/pic.Lines].irr |= 1 << (irq % pic.Lines)
	p.mu.Unlock()
	p.kick()
}

// acknowledge runs an interrupt acknowledge cycle. It returns the vector of
// the highest priority deliverable request and marks it in service.
func (p *pic8259) acknowledge() (uint8, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	primary, secondary := &p.chips[0], &p.chips[1]

	requests := primary.irr
	secLine, secOK := secondary.pending(secondary.irr)
	if secOK {
		requests |= 1 << pic.CascadeLine
	}
	line, ok := primary.pending(requests)
	if !ok {
		return 0, false
	}
	if line == pic.CascadeLine && secOK {
		primary.accept(line)
		secondary.accept(secLine)
		return secondary.offset + uint8(secLine), true
	}
	primary.accept(line)
	return primary.offset + uint8(line), true
}

func (p *pic8259) offsets() (uint8, uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chips[0].offset, p.chips[1].offset
}

func (p *pic8259) chip(port uint16) (*i8259, int) {
	if port == pic.PrimaryCommand || port == pic.PrimaryData {
		return &p.chips[0], 0
	}
	return &p.chips[1], 1
}

func (p *pic8259) in(port uint16, size int) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, _ := p.chip(port)
	switch {
	case port == pic.PrimaryData || port == pic.SecondaryData:
		return uint32(c.imr)
	case c.readISR:
		return uint32(c.isr)
	default:
		return uint32(c.irr)
	}
}

func (p *pic8259) out(port uint16, size int, v uint32) {
	p.mu.Lock()
	c, n := p.chip(port)
	if port == pic.PrimaryData || port == pic.SecondaryData {
		c.data(uint8(v))
	} else if line := c.command(uint8(v)); line >= 0 && !(n == 0 && line == pic.CascadeLine) {
		p.stats.eois[n*pic.Lines+line].Add(1)
	}
	p.mu.Unlock()
	// Unmasking or retiring a line may unblock a request.
	p.kick()
}
