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
	"ringzero.dev/ringzero/pkg/sync"
)

// Keyboard controller ports.
const (
	KeyboardDataPort   = 0x60
	KeyboardStatusPort = 0x64
)

// Keyboard controller status bits.
const (
	kbdStatusOutputFull = 0x01
	kbdStatusSystem     = 0x04
)

// keyboardIRQ is the interrupt line of the keyboard.
const keyboardIRQ = 1

// Keyboard is an i8042 controller with a keyboard attached. Scancodes
// injected by the host are presented one at a time in the output buffer;
// each byte that lands there raises IRQ 1.
type Keyboard struct {
	pic   *pic8259
	stats *stats

	mu     sync.Mutex
	queue  []byte
	output byte
	full   bool
}

func newKeyboard(p *pic8259, s *stats) *Keyboard {
	return &Keyboard{pic: p, stats: s}
}

func (k *Keyboard) register(b *bus) {
	b.register(k, KeyboardDataPort, KeyboardStatusPort)
}

// Inject queues scancodes as if typed on the keyboard.
func (k *Keyboard) Inject(codes ...byte) {
	k.mu.Lock()
	k.queue = append(k.queue, codes...)
	raise := k.fillLocked()
	k.mu.Unlock()
	if raise {
		k.pic.raise(keyboardIRQ)
	}
}

// Pending returns the number of injected bytes the kernel has not read.
func (k *Keyboard) Pending() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := len(k.queue)
	if k.full {
		n++
	}
	return n
}

// fillLocked moves the next queued byte into an empty output buffer and
// reports whether it did.
//
// Preconditions: k.mu is held.
func (k *Keyboard) fillLocked() bool {
	if k.full || len(k.queue) == 0 {
		return false
	}
	k.output, k.queue = k.queue[0], k.queue[1:]
	k.full = true
	return true
}

func (k *Keyboard) in(port uint16, size int) uint32 {
	k.mu.Lock()
	if port == KeyboardStatusPort {
		status := uint32(kbdStatusSystem)
		if k.full {
			status |= kbdStatusOutputFull
		}
		k.mu.Unlock()
		return status
	}
	v := k.output
	if k.full {
		k.full = false
		k.stats.keyboardBytes.Add(1)
	}
	raise := k.fillLocked()
	k.mu.Unlock()
	if raise {
		k.pic.raise(keyboardIRQ)
	}
	return uint32(v)
}

// out accepts and ignores controller and keyboard commands.
func (k *Keyboard) out(port uint16, size int, v uint32) {}
