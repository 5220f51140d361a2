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

package sync

import (
	"runtime"
	"sync/atomic"
)

// spinsBeforeYield is the number of failed acquisitions before the waiter
// yields its goroutine.
const spinsBeforeYield = 64

// SpinMutex is a mutual exclusion lock that busy-waits.
//
// The zero value is an unlocked mutex. A SpinMutex is not reentrant: a
// handler that interrupts the holder and takes the same lock spins forever,
// so holders that can be interrupted must disable interrupts first.
type SpinMutex struct {
	state atomic.Uint32
}

// Lock locks m, spinning until it is available.
func (m *SpinMutex) Lock() {
	for spins := 0; !m.TryLock(); spins++ {
		if spins >= spinsBeforeYield {
			runtime.Gosched()
			spins = 0
		}
	}
}

// TryLock tries to lock m and reports whether it succeeded.
func (m *SpinMutex) TryLock() bool {
	return m.state.Load() == 0 && m.state.CompareAndSwap(0, 1)
}

// Unlock unlocks m.
//
// Preconditions: m is locked.
func (m *SpinMutex) Unlock() {
	if m.state.Swap(0) == 0 {
		panic("unlock of unlocked SpinMutex")
	}
}

var _ Locker = (*SpinMutex)(nil)

// Locked reports whether m is currently held.
func (m *SpinMutex) Locked() bool {
	return m.state.Load() != 0
}
