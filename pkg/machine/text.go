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
	"sync/atomic"

	"ringzero.dev/ringzero/pkg/vga"
)

// textBuffer is the VGA text-mode buffer. Cells are read by the host while
// the kernel writes them.
type textBuffer struct {
	cells [vga.Width * vga.Height]atomic.Uint32
}

func newTextBuffer() *textBuffer {
	return new(textBuffer)
}

// Cells implements mmio.Region.Cells.
func (t *textBuffer) Cells() int {
	return len(t.cells)
}

// Load16 implements mmio.Region.Load16.
func (t *textBuffer) Load16(i int) uint16 {
	return uint16(t.cells[i].Load())
}

// Store16 implements mmio.Region.Store16.
func (t *textBuffer) Store16(i int, v uint16) {
	t.cells[i].Store(uint32(v))
}
