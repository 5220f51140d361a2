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

package bits

import (
	"testing"
)

func TestIsOn(t *testing.T) {
	type testCase struct {
		mask uint8
		bits uint8
		any  bool
		all  bool
	}
	for _, s := range []testCase{
		{mask: 0xfc, bits: 0x03, any: false, all: false},
		{mask: 0xfc, bits: 0x06, any: true, all: false},
		{mask: 0xfc, bits: 0x0c, any: true, all: true},
		{mask: 0x00, bits: 0x00, any: false, all: true},
	} {
		if got := IsAnyOn(s.mask, s.bits); got != s.any {
			t.Errorf("IsAnyOn(%#x, %#x): got %v, wanted %v", s.mask, s.bits, got, s.any)
		}
		if got := IsOn(s.mask, s.bits); got != s.all {
			t.Errorf("IsOn(%#x, %#x): got %v, wanted %v", s.mask, s.bits, got, s.all)
		}
	}
}

func TestMask(t *testing.T) {
	if got, want := Mask[uint8](0, 1), uint8(0x03); got != want {
		t.Errorf("Mask(0, 1): got %#x, wanted %#x", got, want)
	}
	if got, want := Mask[uint64](63), uint64(1)<<63; got != want {
		t.Errorf("Mask(63): got %#x, wanted %#x", got, want)
	}
}

func TestField(t *testing.T) {
	// A descriptor high word: type 0xa at bits 8-11, DPL 3 at bits 13-14.
	v := uint32(0x00af_fa00)
	if got := Field(v, 8, 4); got != 0xa {
		t.Errorf("Field(type): got %#x, wanted 0xa", got)
	}
	if got := Field(v, 13, 2); got != 3 {
		t.Errorf("Field(dpl): got %d, wanted 3", got)
	}
	if got := SetField(v, 13, 2, 0); Field(got, 13, 2) != 0 || Field(got, 8, 4) != 0xa {
		t.Errorf("SetField(dpl=0): got %#x", got)
	}
	if got := SetField(uint8(0), 0, 3, 0xff); got != 0x7 {
		t.Errorf("SetField truncation: got %#x, wanted 0x7", got)
	}
}

func TestLowestSet(t *testing.T) {
	for i := 0; i < 8; i++ {
		v := ^uint8(0) << uint(i)
		if got := LowestSet(v); got != i {
			t.Errorf("LowestSet(%#x): got %d, wanted %d", v, got, i)
		}
	}
	if got := LowestSet(uint16(0)); got != -1 {
		t.Errorf("LowestSet(0): got %d, wanted -1", got)
	}
}
