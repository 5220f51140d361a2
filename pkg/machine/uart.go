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
	"io"

	"ringzero.dev/ringzero/pkg/log"
	"ringzero.dev/ringzero/pkg/serial"
)

// uart is a 16550 with its transmitter connected to a host writer. The
// transmitter is always ready and nothing is ever received.
type uart struct {
	w   io.Writer
	log log.Logger

	// failed is set after the first write error; later output is dropped.
	failed bool

	dll, dlm uint8
	ier      uint8
	lcr      uint8
	mcr      uint8
	scratch  uint8
}

// Line status when idle: transmitter holding register and shift register
// empty.
const uartIdleStatus = serial.LineStatusTHRE | 0x40

func newUART(w io.Writer, l log.Logger) *uart {
	return &uart{w: w, log: l}
}

func (u *uart) register(b *bus, base uint16) {
	for off := uint16(0); off < 8; off++ {
		b.register(u, base+off)
	}
}

func (u *uart) dlab() bool {
	return u.lcr&serial.LineControlDLAB != 0
}

func (u *uart) in(port uint16, size int) uint32 {
	switch port & 7 {
	case serial.RegData:
		if u.dlab() {
			return uint32(u.dll)
		}
		return 0
	case serial.RegIntEnable:
		if u.dlab() {
			return uint32(u.dlm)
		}
		return uint32(u.ier)
	case serial.RegFIFOControl:
		return 0xc1 // FIFOs enabled, no interrupt pending.
	case serial.RegLineControl:
		return uint32(u.lcr)
	case serial.RegModemCtrl:
		return uint32(u.mcr)
	case serial.RegLineStatus:
		return uartIdleStatus
	case 6: // MSR: CTS, DSR and DCD asserted.
		return 0xb0
	default:
		return uint32(u.scratch)
	}
}

func (u *uart) out(port uint16, size int, v uint32) {
	b := uint8(v)
	switch port & 7 {
	case serial.RegData:
		if u.dlab() {
			u.dll = b
			return
		}
		u.transmit(b)
	case serial.RegIntEnable:
		if u.dlab() {
			u.dlm = b
		} else {
			u.ier = b
		}
	case serial.RegFIFOControl:
	case serial.RegLineControl:
		u.lcr = b
	case serial.RegModemCtrl:
		u.mcr = b
	case serial.RegLineStatus, 6:
	default:
		u.scratch = b
	}
}

func (u *uart) transmit(b byte) {
	if u.failed {
		return
	}
	if _, err := u.w.Write([]byte{b}); err != nil {
		u.failed = true
		u.log.Warningf("Serial output failed, dropping further output: %v", err)
	}
}
