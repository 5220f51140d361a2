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

// Package debugexit drives the ISA debug-exit device, which ends the machine
// with a status derived from the value written to it.
package debugexit

import (
	"fmt"

	"ringzero.dev/ringzero/pkg/ioport"
)

// Port is the I/O port the device is configured at.
const Port = 0xf4

// Code is a value written to the device.
type Code uint32

// Exit codes. Neither maps to a host status of 0 or 1, which the host uses
// for its own results.
const (
	Success Code = 0x10
	Failed  Code = 0x11
)

func (c Code) String() string {
	switch c {
	case Success:
		return "success"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Code(%#x)", uint32(c))
	}
}

// Status returns the host exit status the device produces for c.
func (c Code) Status() int {
	return int(c)<<1 | 1
}

// Signal writes c to the device. On a machine with the device present this
// does not return.
func Signal(io ioport.IO, c Code) {
	ioport.NewPort32(io, Port).Write(uint32(c))
}

// CodeForStatus inverts Status. It reports false for statuses the device
// cannot produce.
func CodeForStatus(status int) (Code, bool) {
	if status&1 == 0 || status < 0 {
		return 0, false
	}
	return Code(status >> 1), true
}
