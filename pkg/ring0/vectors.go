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
	"fmt"
)

// Vector is an exception vector.
type Vector uint8

// Exception vectors.
const (
	DivideByZero Vector = iota
	Debug
	NMI
	Breakpoint
	Overflow
	BoundRangeExceeded
	InvalidOpcode
	DeviceNotAvailable
	DoubleFault
	CoprocessorSegmentOverrun
	InvalidTSS
	SegmentNotPresent
	StackSegmentFault
	GeneralProtectionFault
	PageFault
	_
	X87FloatingPointException
	AlignmentCheck
	MachineCheck
	SIMDFloatingPointException
	VirtualizationException
	ControlProtectionException
	_
	_
	_
	_
	_
	_
	HypervisorInjectionException
	VMMCommunicationException
	SecurityException
	_

	// FirstUserVector is the first vector available to external
	// interrupts.
	FirstUserVector
)

// _NR_INTERRUPTS is the number of vectors in an IDT.
const _NR_INTERRUPTS = 256

var vectorNames = map[Vector]string{
	DivideByZero:                 "divide error",
	Debug:                        "debug",
	NMI:                          "non-maskable interrupt",
	Breakpoint:                   "breakpoint",
	Overflow:                     "overflow",
	BoundRangeExceeded:           "bound range exceeded",
	InvalidOpcode:                "invalid opcode",
	DeviceNotAvailable:           "device not available",
	DoubleFault:                  "double fault",
	CoprocessorSegmentOverrun:    "coprocessor segment overrun",
	InvalidTSS:                   "invalid TSS",
	SegmentNotPresent:            "segment not present",
	StackSegmentFault:            "stack-segment fault",
	GeneralProtectionFault:       "general protection fault",
	PageFault:                    "page fault",
	X87FloatingPointException:    "x87 floating-point exception",
	AlignmentCheck:               "alignment check",
	MachineCheck:                 "machine check",
	SIMDFloatingPointException:   "SIMD floating-point exception",
	VirtualizationException:      "virtualization exception",
	ControlProtectionException:   "control protection exception",
	HypervisorInjectionException: "hypervisor injection exception",
	VMMCommunicationException:    "VMM communication exception",
	SecurityException:            "security exception",
}

func (v Vector) String() string {
	if name, ok := vectorNames[v]; ok {
		return name
	}
	if v < FirstUserVector {
		return fmt.Sprintf("reserved vector %d", uint8(v))
	}
	return fmt.Sprintf("vector %d", uint8(v))
}

// HasErrorCode reports whether the processor pushes an error code when
// delivering exception v.
func (v Vector) HasErrorCode() bool {
	switch v {
	case DoubleFault, InvalidTSS, SegmentNotPresent, StackSegmentFault,
		GeneralProtectionFault, PageFault, AlignmentCheck,
		ControlProtectionException, VMMCommunicationException, SecurityException:
		return true
	default:
		return false
	}
}

// ExceptionClass groups exceptions by how they combine when one is raised
// while delivering another.
type ExceptionClass int

// Exception classes.
const (
	Benign ExceptionClass = iota
	Contributory
	PageFaultClass
)

// Class returns the exception class of v.
func (v Vector) Class() ExceptionClass {
	switch v {
	case DivideByZero, InvalidTSS, SegmentNotPresent, StackSegmentFault, GeneralProtectionFault:
		return Contributory
	case PageFault:
		return PageFaultClass
	default:
		return Benign
	}
}

// Escalates reports whether raising second while delivering first results
// in a double fault instead of serial handling.
func Escalates(first, second Vector) bool {
	switch first.Class() {
	case Contributory:
		return second.Class() == Contributory
	case PageFaultClass:
		return second.Class() != Benign
	default:
		return false
	}
}
