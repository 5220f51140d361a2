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

// Package mmio describes memory-mapped device windows.
//
// Device memory must be accessed with exactly one load or store per cell:
// the compiler may not merge, elide or reorder them. A Region makes every
// access an explicit method call so that holds by construction.
package mmio

// Region is a window of device memory made of 16-bit cells.
type Region interface {
	// Cells returns the number of cells in the window.
	Cells() int

	// Load16 reads cell i.
	Load16(i int) uint16

	// Store16 writes cell i.
	Store16(i int, v uint16)
}

// Buffer is a Region backed by ordinary memory.
type Buffer []uint16

// NewBuffer returns a Buffer with n cells.
func NewBuffer(n int) Buffer {
	return make(Buffer, n)
}

// Cells implements Region.Cells.
func (b Buffer) Cells() int { return len(b) }

// Load16 implements Region.Load16.
func (b Buffer) Load16(i int) uint16 { return b[i] }

// Store16 implements Region.Store16.
func (b Buffer) Store16(i int, v uint16) { b[i] = v }

// Open is a Region with nothing behind it: loads float high and stores are
// discarded, like an unclaimed bus address.
type Open int

// Cells implements Region.Cells.
func (o Open) Cells() int { return int(o) }

// Load16 implements Region.Load16.
func (Open) Load16(int) uint16 { return 0xffff }

// Store16 implements Region.Store16.
func (Open) Store16(int, uint16) {}
