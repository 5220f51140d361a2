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
	"encoding/binary"
	"fmt"

	"github.com/google/btree"
	"ringzero.dev/ringzero/pkg/ring0"
)

// memory is the processor's view of the address space: a set of disjoint
// regions ordered by address. Everything else is unmapped.
//
// Only the processor goroutine touches mapped memory once the machine runs.
type memory struct {
	regions *btree.BTreeG[ring0.Region]
}

// memoryDegree is the degree of the region tree.
const memoryDegree = 8

func regionLess(a, b ring0.Region) bool {
	return a.Addr < b.Addr
}

func (m *memory) add(r ring0.Region) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("%w: %q is empty", ErrBadRegion, r.Name)
	}
	if r.End() < r.Addr {
		return fmt.Errorf("%w: %q wraps the address space", ErrBadRegion, r.Name)
	}
	if m.regions == nil {
		m.regions = btree.NewG(memoryDegree, regionLess)
	}
	if prev, ok := m.floor(r.Addr); ok && prev.End() > r.Addr {
		return fmt.Errorf("%w: %v and %v", ErrOverlap, r, prev)
	}
	var err error
	m.regions.AscendGreaterOrEqual(r, func(next ring0.Region) bool {
		if r.End() > next.Addr {
			err = fmt.Errorf("%w: %v and %v", ErrOverlap, r, next)
		}
		return false
	})
	if err != nil {
		return err
	}
	m.regions.ReplaceOrInsert(r)
	return nil
}

// floor returns the region with the highest base address not above addr.
func (m *memory) floor(addr uint64) (r ring0.Region, ok bool) {
	if m.regions == nil {
		return r, false
	}
	m.regions.DescendLessOrEqual(ring0.Region{Addr: addr}, func(item ring0.Region) bool {
		r, ok = item, true
		return false
	})
	return r, ok
}

// each calls fn for every region in address order.
func (m *memory) each(fn func(r ring0.Region)) {
	if m.regions == nil {
		return
	}
	m.regions.Ascend(func(r ring0.Region) bool {
		fn(r)
		return true
	})
}

// find returns the region containing addr.
func (m *memory) find(addr uint64) (*ring0.Region, bool) {
	r, ok := m.floor(addr)
	if !ok || !r.Contains(addr) {
		return nil, false
	}
	return &r, true
}

// slice returns the n bytes at addr. The range must lie within one region.
func (m *memory) slice(addr, n uint64) ([]byte, bool) {
	if n == 0 {
		return nil, true
	}
	r, ok := m.find(addr)
	if !ok || addr+n > r.End() || addr+n < addr {
		return nil, false
	}
	off := addr - r.Addr
	return r.Data[off : off+n], true
}

// mapped reports whether all of [addr, addr+n) is reachable.
func (m *memory) mapped(addr, n uint64) bool {
	for n > 0 {
		r, ok := m.find(addr)
		if !ok {
			return false
		}
		chunk := r.End() - addr
		if chunk >= n {
			return true
		}
		addr += chunk
		n -= chunk
	}
	return true
}

func (m *memory) read64(addr uint64) (uint64, bool) {
	b, ok := m.slice(addr, 8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b), true
}

func (m *memory) write64(addr, v uint64) bool {
	b, ok := m.slice(addr, 8)
	if !ok {
		return false
	}
	binary.LittleEndian.PutUint64(b, v)
	return true
}

// bootStackRegion is the stack the kernel is entered on. It ends at
// BootStackTop; below it is unmapped.
func bootStackRegion(size uint64) ring0.Region {
	return ring0.Region{
		Name: "boot-stack",
		Addr: BootStackTop - size,
		Data: make([]byte, size),
	}
}

// bootGDTRegion is the GDT the firmware leaves loaded: a null descriptor
// and a 64-bit code segment at selector 0x08.
func bootGDTRegion() ring0.Region {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint64(b[8:], ring0.KernelCodeSegment.Raw())
	return ring0.Region{
		Name: "boot-gdt",
		Addr: bootGDTAddr,
		Data: b,
	}
}
