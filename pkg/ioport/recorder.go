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

package ioport

import (
	"fmt"
	"sync"
)

// Access is one recorded port access.
type Access struct {
	Write bool
	Size  int
	Port  uint16
	Value uint32
}

func (a Access) String() string {
	dir := "in"
	if a.Write {
		dir = "out"
	}
	return fmt.Sprintf("%s%d %#x %#x", dir, a.Size*8, a.Port, a.Value)
}

// Recorder is an IO that logs every access. Reads are served from per-port
// queues filled by Feed; an empty queue reads as zero.
type Recorder struct {
	mu       sync.Mutex
	accesses []Access
	input    map[uint16][]uint32
}

// Feed queues values to be returned by subsequent reads of port.
func (r *Recorder) Feed(port uint16, vs ...uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.input == nil {
		r.input = make(map[uint16][]uint32)
	}
	r.input[port] = append(r.input[port], vs...)
}

// Accesses returns a copy of all accesses so far.
func (r *Recorder) Accesses() []Access {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Access(nil), r.accesses...)
}

// Writes returns the values written to port, in order.
func (r *Recorder) Writes(port uint16) []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var vs []uint32
	for _, a := range r.accesses {
		if a.Write && a.Port == port {
			vs = append(vs, a.Value)
		}
	}
	return vs
}

// Reads returns the number of reads of port.
func (r *Recorder) Reads(port uint16) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.accesses {
		if !a.Write && a.Port == port {
			n++
		}
	}
	return n
}

func (r *Recorder) in(port uint16, size int) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var v uint32
	if q := r.input[port]; len(q) > 0 {
		v, r.input[port] = q[0], q[1:]
	}
	r.accesses = append(r.accesses, Access{Size: size, Port: port, Value: v})
	return v
}

func (r *Recorder) out(port uint16, size int, v uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accesses = append(r.accesses, Access{Write: true, Size: size, Port: port, Value: v})
}

// In8 implements IO.In8.
func (r *Recorder) In8(port uint16) uint8 { return uint8(r.in(port, 1)) }

// Out8 implements IO.Out8.
func (r *Recorder) Out8(port uint16, v uint8) { r.out(port, 1, uint32(v)) }

// In32 implements IO.In32.
func (r *Recorder) In32(port uint16) uint32 { return r.in(port, 4) }

// Out32 implements IO.Out32.
func (r *Recorder) Out32(port uint16, v uint32) { r.out(port, 4, v) }
