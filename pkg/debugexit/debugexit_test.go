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

package debugexit

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"ringzero.dev/ringzero/pkg/ioport"
)

func TestStatus(t *testing.T) {
	for _, tc := range []struct {
		code Code
		want int
	}{
		{Success, 33},
		{Failed, 35},
		{0, 1},
	} {
		if got := tc.code.Status(); got != tc.want {
			t.Errorf("%v.Status() = %d, want %d", tc.code, got, tc.want)
		}
		if c, ok := CodeForStatus(tc.want); !ok || c != tc.code {
			t.Errorf("CodeForStatus(%d) = %v, %v, want %v", tc.want, c, ok, tc.code)
		}
	}
	if _, ok := CodeForStatus(0); ok {
		t.Errorf("CodeForStatus(0) succeeded")
	}
}

func TestSignal(t *testing.T) {
	var r ioport.Recorder
	Signal(&r, Failed)
	want := []ioport.Access{{Write: true, Size: 4, Port: Port, Value: 0x11}}
	if diff := cmp.Diff(want, r.Accesses()); diff != "" {
		t.Errorf("Signal mismatch (-want +got):\n%s", diff)
	}
}
