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

// Package serial drives a 16550 UART for output.
package serial

import (
	"ringzero.dev/ringzero/pkg/ioport"
)

// COM1 is the base port of the first serial line.
const COM1 = 0x3f8

// Register offsets from the base port.
const (
	RegData        = 0 // THR on write, RBR on read; divisor low with DLAB.
	RegIntEnable   = 1 // IER; divisor high with DLAB.
	RegFIFOControl = 2
	RegLineControl = 3
	RegModemCtrl   = 4
	RegLineStatus  = 5
)

// Register bits.
const (
	LineControlDLAB = 0x80
	LineControl8N1  = 0x03

	// FIFOEnable enables and clears both FIFOs with a 14-byte trigger.
	FIFOEnable = 0xc7

	// ModemReady raises DTR, RTS and OUT2.
	ModemReady = 0x0b

	IntEnableReceived = 0x01

	LineStatusDataReady = 0x01
	LineStatusTHRE      = 0x20
)

// divisor is the baud rate divisor for 38400 baud.
const divisor = 3

// Port is one UART.
type Port struct {
	data        ioport.Port8
	intEnable   ioport.Port8
	fifoControl ioport.Port8
	lineControl ioport.Port8
	modemCtrl   ioport.Port8
	lineStatus  ioport.Port8
}

// New returns the UART at base. No I/O happens until Init.
func New(io ioport.IO, base uint16) *Port {
	return &Port{
		data:        ioport.NewPort8(io, base+RegData),
		intEnable:   ioport.NewPort8(io, base+RegIntEnable),
		fifoControl: ioport.NewPort8(io, base+RegFIFOControl),
		lineControl: ioport.NewPort8(io, base+RegLineControl),
		modemCtrl:   ioport.NewPort8(io, base+RegModemCtrl),
		lineStatus:  ioport.NewPort8(io, base+RegLineStatus),
	}
}

// Init programs 38400 baud, 8N1, FIFOs on.
func (p *Port) Init() {
	p.intEnable.Write(0)
	p.lineControl.Write(LineControlDLAB)
	p.data.Write(divisor & 0xff)
	p.intEnable.Write(divisor >> 8)
	p.lineControl.Write(LineControl8N1)
	p.fifoControl.Write(FIFOEnable)
	p.modemCtrl.Write(ModemReady)
	p.intEnable.Write(IntEnableReceived)
}

// Send transmits b once the holding register is empty.
func (p *Port) Send(b byte) {
	for p.lineStatus.Read()&LineStatusTHRE == 0 {
	}
	p.data.Write(b)
}

// Write implements io.Writer.Write. It never fails.
func (p *Port) Write(b []byte) (int, error) {
	for _, c := range b {
		p.Send(c)
	}
	return len(b), nil
}
