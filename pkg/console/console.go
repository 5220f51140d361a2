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

// Package console serializes kernel text output.
//
// A Console may be written from ordinary kernel code and from interrupt
// handlers. Writers disable interrupts while holding the lock, so a handler
// can never spin on a lock held by the code it interrupted.
package console

import (
	"fmt"
	"io"

	"ringzero.dev/ringzero/pkg/cpu"
	"ringzero.dev/ringzero/pkg/sync"
)

// Console is a locked text sink.
type Console struct {
	cpu cpu.CPU

	mu sync.SpinMutex
	w  io.Writer
}

// New returns a console writing to w on c.
func New(c cpu.CPU, w io.Writer) *Console {
	return &Console{cpu: c, w: w}
}

// Write implements io.Writer.Write.
func (c *Console) Write(p []byte) (n int, err error) {
	cpu.WithoutInterrupts(c.cpu, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		n, err = c.w.Write(p)
	})
	return n, err
}

// Print formats as fmt.Sprint and writes the result.
func (c *Console) Print(a ...any) {
	c.Write([]byte(fmt.Sprint(a...)))
}

// Printf formats as fmt.Sprintf and writes the result.
func (c *Console) Printf(format string, a ...any) {
	c.Write([]byte(fmt.Sprintf(format, a...)))
}

// Println formats as fmt.Sprintln and writes the result.
func (c *Console) Println(a ...any) {
	c.Write([]byte(fmt.Sprintln(a...)))
}
