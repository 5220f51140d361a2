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
	"fmt"

	"ringzero.dev/ringzero/pkg/log"
)

// Fixed platform ports.
const (
	// DebugExitPort is the ISA debug-exit device.
	DebugExitPort = 0xf4

	// POSTPort is the power-on self test diagnostic port. Writes to it
	// are used as short I/O delays.
	POSTPort = 0x80

	// COM1 is the base of the first UART.
	COM1 = 0x3f8
)

// portDevice is a device on the I/O bus. Accesses are 1 or 4 bytes wide.
type portDevice interface {
	in(port uint16, size int) uint32
	out(port uint16, size int, v uint32)
}

// bus routes port I/O to devices. It is built before the machine runs and
// read-only afterwards.
type bus struct {
	devices map[uint16]portDevice
	log     log.Logger
}

func (b *bus) init(l log.Logger) {
	b.devices = make(map[uint16]portDevice)
	b.log = l
}

func (b *bus) register(d portDevice, ports ...uint16) {
	for _, p := range ports {
		if _, ok := b.devices[p]; ok {
			panic(fmt.Sprintf("port %#x registered twice", p))
		}
		b.devices[p] = d
	}
}

// in reads port. Unclaimed ports float high.
func (b *bus) in(port uint16, size int) uint32 {
	d, ok := b.devices[port]
	if !ok {
		b.log.Debugf("in%d from unclaimed port %#x", size*8, port)
		return 0xffffffff >> (32 - 8*size)
	}
	return d.in(port, size)
}

// out writes port. Writes to unclaimed ports are dropped.
func (b *bus) out(port uint16, size int, v uint32) {
	d, ok := b.devices[port]
	if !ok {
		b.log.Debugf("out%d %#x to unclaimed port %#x", size*8, v, port)
		return
	}
	d.out(port, size, v)
}

// debugExit is the ISA debug-exit device. Any write stops the machine with
// the written value.
type debugExit struct {
	stop func(code uint32)
}

func (d *debugExit) in(port uint16, size int) uint32 {
	return 0
}

func (d *debugExit) out(port uint16, size int, v uint32) {
	d.stop(v)
}

// postPort is the diagnostic port at 0x80.
type postPort struct {
	log  log.Logger
	last uint8
}

func (p *postPort) in(port uint16, size int) uint32 {
	return uint32(p.last)
}

func (p *postPort) out(port uint16, size int, v uint32) {
	p.last = uint8(v)
	p.log.Debugf("POST code %#02x", p.last)
}
