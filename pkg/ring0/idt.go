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
	"sync/atomic"

	"ringzero.dev/ringzero/pkg/cpu"
	"ringzero.dev/ringzero/pkg/log"
)

// idt64 is a 64-bit interrupt descriptor table.
type idt64 [_NR_INTERRUPTS]Gate64

// IDT is an interrupt descriptor table together with the entry stubs its
// gates point at.
//
// Gates start out not present. An IDT must not move once loaded; the
// processor holds its address.
type IDT struct {
	gates   idt64
	stubs   stubs
	entries [_NR_INTERRUPTS]entry
	loaded  atomic.Bool
}

// NewIDT returns an empty table.
func NewIDT() *IDT {
	t := new(IDT)
	t.stubs.init()
	return t
}

// SetHandler binds fn to vector v with an interrupt gate on the current
// stack, and returns the gate for further configuration.
//
// v must not be a vector that pushes an error code.
func (t *IDT) SetHandler(v Vector, fn Handler) *Gate64 {
	if v.HasErrorCode() {
		panic(fmt.Sprintf("%v pushes an error code; use SetHandlerWithCode", v))
	}
	t.entries[v] = entry{fn: fn}
	return t.bind(v)
}

// SetHandlerWithCode binds fn to vector v, which must push an error code.
func (t *IDT) SetHandlerWithCode(v Vector, fn HandlerWithCode) *Gate64 {
	if !v.HasErrorCode() {
		panic(fmt.Sprintf("%v does not push an error code; use SetHandler", v))
	}
	t.entries[v] = entry{fnWithCode: fn}
	return t.bind(v)
}

func (t *IDT) bind(v Vector) *Gate64 {
	g := &t.gates[v]
	g.setInterrupt(Kcode, t.stubs.addr(v), 0 /* dpl */, 0 /* ist */)
	return g
}

// Gate returns the gate for vector v.
func (t *IDT) Gate(v Vector) *Gate64 {
	return &t.gates[v]
}

// IDT returns the table base and limit.
func (t *IDT) IDT() (uint64, uint16) {
	return kernelAddr(&t.gates[0]), uint16(len(t.gates)*gateSize - 1)
}

// Load makes t the processor's IDT. A table can be loaded only once.
func (t *IDT) Load(c cpu.CPU) {
	if t.loaded.Swap(true) {
		panic("IDT loaded twice")
	}
	base, limit := t.IDT()
	log.Debugf("Loading IDT at %#x limit %#x", base, limit)
	c.LoadIDT(base, limit)
}

// Loaded reports whether Load has been called.
func (t *IDT) Loaded() bool {
	return t.loaded.Load()
}

// Regions returns the table and its entry code.
func (t *IDT) Regions() []Region {
	code := dataRegion("idt-stubs", &t.stubs)
	code.Exec = t.enter
	return []Region{
		dataRegion("idt", &t.gates),
		code,
	}
}

// enter runs the handler whose stub starts at rip.
func (t *IDT) enter(rip uint64, frame *Frame, errorCode uint64) error {
	v, err := t.stubs.vector(rip)
	if err != nil {
		return err
	}
	e := &t.entries[v]
	if !e.bound() {
		return fmt.Errorf("%w: %v", ErrNoHandler, v)
	}
	e.call(frame, errorCode)
	return nil
}
