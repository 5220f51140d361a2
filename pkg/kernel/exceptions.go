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
	"ringzero.dev/ringzero/pkg/cpu"
	"ringzero.dev/ringzero/pkg/ring0"
)

// breakpoint reports the trap and resumes after the int3.
func (k *Kernel) breakpoint(frame *ring0.Frame) {
	k.screen.Println("EXCEPTION: BREAKPOINT")
	frame.Print(k.screen)
}

// doubleFault reports the fault and halts. It runs on the IST stack, so it
// works even when the fault was caused by exhausting the kernel stack.
func (k *Kernel) doubleFault(frame *ring0.Frame, errorCode uint64) {
	k.screen.Println("EXCEPTION: DOUBLE FAULT")
	k.screen.Printf("error code %#x\n", errorCode)
	frame.Print(k.screen)
	cpu.HaltLoop(k.cpu)
}
