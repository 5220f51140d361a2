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

package kernel

import (
	"ringzero.dev/ringzero/pkg/keyboard"
	"ringzero.dev/ringzero/pkg/ring0"
)

// timer handles IRQ 0.
func (k *Kernel) timer(*ring0.Frame) {
	k.ticks.Add(1)
	if k.opts.TickDots {
		k.screen.Print(".")
	}
	k.endOfInterrupt(TimerVector)
}

// keyboard handles IRQ 1. The data port is read exactly once: the read
// clears the controller's output buffer and lets the next byte in.
func (k *Kernel) keyboard(*ring0.Frame) {
	k.readScancode()
	k.endOfInterrupt(KeyboardVector)
}

// drainKeyboard consumes a byte left in the controller's output buffer.
// Its interrupt was raised before the controllers were initialized and is
// lost, and the controller raises no other while the buffer stays full.
func (k *Kernel) drainKeyboard() {
	if k.cpu.In8(KeyboardStatusPort)&keyboardOutputFull != 0 {
		k.readScancode()
	}
}

// readScancode reads one byte from the data port, decodes it and queues
// any character it completes.
func (k *Kernel) readScancode() {
	b := k.cpu.In8(KeyboardDataPort)

	k.kbdMu.Lock()
	if k.kbd == nil {
		k.kbd = keyboard.New(&keyboard.ScancodeSet1{}, keyboard.Us104Key{}, keyboard.Ignore)
	}
	key, ok, err := k.kbd.Decode(b)
	k.kbdMu.Unlock()

	switch {
	case err != nil:
		// Unknown scancodes are dropped; the decoder has already reset.
	case ok && key.Kind == keyboard.Unicode:
		k.screen.Print(string(key.Rune))
		k.input.push(key.Rune)
	}
}

// inputRingSize is the number of typed characters buffered for ReadKey.
const inputRingSize = 256

// inputRing is a fixed queue of typed characters. When full, new
// characters are dropped. It is accessed with interrupts disabled.
type inputRing struct {
	buf        [inputRingSize]rune
	head, size int
}

func (r *inputRing) push(c rune) bool {
	if r.size == len(r.buf) {
		return false
	}
	r.buf[(r.head+r.size)%len(r.buf)] = c
	r.size++
	return true
}

func (r *inputRing) pop() (rune, bool) {
	if r.size == 0 {
		return 0, false
	}
	c := r.buf[r.head]
	r.head = (r.head + 1) % len(r.buf)
	r.size--
	return c, true
}
