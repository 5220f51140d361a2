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

// Package ioport provides typed access to the x86 I/O port space.
//
// Drivers never issue raw in/out instructions. They hold a Port8 or Port32
// bound to an IO implementation, which is the processor in the kernel and a
// recording fake in tests.
package ioport

// IO is the port I/O instruction set of a processor.
type IO interface {
	// In8 executes a byte-wide in instruction.
	In8(port uint16) uint8

	// Out8 executes a byte-wide out instruction.
	Out8(port uint16, v uint8)

	// In32 executes a doubleword in instruction.
	In32(port uint16) uint32

	// Out32 executes a doubleword out instruction.
	Out32(port uint16, v uint32)
}

// Port8 is a byte-wide I/O port.
type Port8 struct {
	io   IO
	port uint16
}

// NewPort8 returns the byte port at the given address.
func NewPort8(io IO, port uint16) Port8 {
	return Port8{io: io, port: port}
}

// Number returns the port address.
func (p Port8) Number() uint16 {
	return p.port
}

// Read reads a byte from the port. Reads may have device side effects.
func (p Port8) Read() uint8 {
	return p.io.In8(p.port)
}

// Write writes a byte to the port.
func (p Port8) Write(v uint8) {
	p.io.Out8(p.port, v)
}

// Port32 is a doubleword I/O port.
type Port32 struct {
	io   IO
	port uint16
}

// NewPort32 returns the doubleword port at the given address.
func NewPort32(io IO, port uint16) Port32 {
	return Port32{io: io, port: port}
}

// Number returns the port address.
func (p Port32) Number() uint16 {
	return p.port
}

// Read reads a doubleword from the port.
func (p Port32) Read() uint32 {
	return p.io.In32(p.port)
}

// Write writes a doubleword to the port.
func (p Port32) Write(v uint32) {
	p.io.Out32(p.port, v)
}
