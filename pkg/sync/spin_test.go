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
	"testing"
)

func TestSpinMutexTryLock(t *testing.T) {
	var m SpinMutex
	if !m.TryLock() {
		t.Fatalf("TryLock on unlocked mutex failed")
	}
	if m.TryLock() {
		t.Fatalf("TryLock on locked mutex succeeded")
	}
	if !m.Locked() {
		t.Errorf("Locked() = false while held")
	}
	m.Unlock()
	if m.Locked() {
		t.Errorf("Locked() = true after Unlock")
	}
}

func TestSpinMutexUnlockUnlocked(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("Unlock of unlocked mutex did not panic")
		}
	}()
	var m SpinMutex
	m.Unlock()
}

func TestSpinMutexConcurrent(t *testing.T) {
	const (
		workers = 8
		iters   = 1000
	)
	var (
		m       SpinMutex
		wg      WaitGroup
		counter int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				m.Lock()
				counter++
				m.Unlock()
			}
		}()
	}
	wg.Wait()
	if counter != workers*iters {
		t.Errorf("counter = %d, want %d", counter, workers*iters)
	}
}

func BenchmarkSpinMutexUncontended(b *testing.B) {
	var m SpinMutex
	for i := 0; i < b.N; i++ {
		m.Lock()
		m.Unlock()
	}
}
