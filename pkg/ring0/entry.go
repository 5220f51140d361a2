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

package ring0

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame describes an exception frame that is automatically pushed by the CPU
// to the stack when an exception occurs.
type Frame struct {
	RIP    uint64
	CS     uint64
	RFlags uint64
	RSP    uint64
	SS     uint64
}

// FrameSize is the size of a Frame on the stack.
const FrameSize = 5 * 8

// DecodeFrame decodes a frame from the stack bytes at its base.
func DecodeFrame(b []byte) Frame {
	le := binary.LittleEndian
	return Frame{
		RIP:    le.Uint64(b[0:]),
		CS:     le.Uint64(b[8:]),
		RFlags: le.Uint64(b[16:]),
		RSP:    le.Uint64(b[24:]),
		SS:     le.Uint64(b[32:]),
	}
}

// Encode writes f to b in stack order.
func (f *Frame) Encode(b []byte) {
	le := binary.LittleEndian
	le.PutUint64(b[0:], f.RIP)
	le.PutUint64(b[8:], f.CS)
	le.PutUint64(b[16:], f.RFlags)
	le.PutUint64(b[24:], f.RSP)
	le.PutUint64(b[32:], f.SS)
}

// InterruptsEnabled reports whether the interrupted context had IF set.
func (f *Frame) InterruptsEnabled() bool {
	return f.RFlags&InterruptFlag != 0
}

// Print outputs a dump of the exception frame to w.
func (f *Frame) Print(w io.Writer) {
	fmt.Fprintf(w, "RIP = %16x CS  = %16x\n", f.RIP, f.CS)
	fmt.Fprintf(w, "RSP = %16x SS  = %16x\n", f.RSP, f.SS)
	fmt.Fprintf(w, "RFL = %16x\n", f.RFlags)
}

// Handler is an exception or interrupt handler for a vector without an
// error code. The frame may be modified; the processor resumes from it.
type Handler func(frame *Frame)

// HandlerWithCode is a handler for a vector that pushes an error code.
type HandlerWithCode func(frame *Frame, errorCode uint64)

// Entry errors.
var (
	// ErrBadEntry is returned when execution enters the stub region at
	// an address that is not the start of a stub.
	ErrBadEntry = errors.New("not an interrupt entry point")

	// ErrNoHandler is returned when a stub has no handler bound.
	ErrNoHandler = errors.New("no handler bound")
)

// stubSize is the size of one vector's entry stub.
const stubSize = 16

// entry is the Go side of one vector's stub.
type entry struct {
	fn         Handler
	fnWithCode HandlerWithCode
}

func (e *entry) bound() bool {
	return e.fn != nil || e.fnWithCode != nil
}

// call runs the handler.
func (e *entry) call(frame *Frame, errorCode uint64) {
	if e.fnWithCode != nil {
		e.fnWithCode(frame, errorCode)
		return
	}
	e.fn(frame)
}

// stubs is the entry code for a full table. Each vector has stubSize bytes
// starting with the instruction sequence a hand-written stub would carry:
// push the vector, then jump to the common entry.
type stubs [_NR_INTERRUPTS * stubSize]byte

func (s *stubs) init() {
	for v := 0; v < _NR_INTERRUPTS; v++ {
		b := s[v*stubSize:]
		b[0], b[1] = 0x6a, byte(v) // push imm8
		b[2] = 0xe9                // jmp rel32
		for i := 7; i < stubSize; i++ {
			b[i] = 0xcc // int3
		}
	}
}

// addr returns the address of v's stub.
func (s *stubs) addr(v Vector) uint64 {
	return kernelAddr(s) + uint64(v)*stubSize
}

// vector returns the vector whose stub starts at rip.
func (s *stubs) vector(rip uint64) (Vector, error) {
	base := kernelAddr(s)
	if rip < base || rip >= base+uint64(len(s)) {
		return 0, fmt.Errorf("%w: %#x outside stubs", ErrBadEntry, rip)
	}
	off := rip - base
	if off%stubSize != 0 {
		return 0, fmt.Errorf("%w: %#x", ErrBadEntry, rip)
	}
	return Vector(off / stubSize), nil
}
