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

package console

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"ringzero.dev/ringzero/pkg/cpu/cputest"
)

func TestWriteRestoresInterrupts(t *testing.T) {
	var c cputest.Fake
	var buf bytes.Buffer
	con := New(&c, &buf)

	con.Printf("%d", 1)
	c.EnableInterrupts()
	con.Println("two")
	con.Print("three")

	if got, want := buf.String(), "1two\nthree"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	want := []string{"sti", "cli", "sti", "cli", "sti"}
	if diff := cmp.Diff(want, c.Calls()); diff != "" {
		t.Errorf("instructions mismatch (-want +got):\n%s", diff)
	}
	if !c.InterruptsEnabled() {
		t.Errorf("interrupts left disabled")
	}
	if con.mu.Locked() {
		t.Errorf("lock left held")
	}
}
