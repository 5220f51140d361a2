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

// Package bits includes all bit related types and operations.
package bits

// Unsigned is the set of register-sized types the helpers operate on.
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// IsOn returns true if *all* bits set in 'bits' are set in 'mask'.
func IsOn[T Unsigned](mask, bits T) bool {
	return mask&bits == bits
}

// IsAnyOn returns true if *any* bit set in 'bits' is set in 'mask'.
func IsAnyOn[T Unsigned](mask, bits T) bool {
	return mask&bits != 0
}

// Mask returns a T with all of the given bits set.
func Mask[T Unsigned](is ...int) T {
	var ret T
	for _, i := range is {
		ret |= MaskOf[T](i)
	}
	return ret
}

// MaskOf is like Mask, but sets only a single bit (more efficiently).
func MaskOf[T Unsigned](i int) T {
	return T(1) << uint(i)
}

// Field extracts the width-bit field of v starting at bit shift.
func Field[T Unsigned](v T, shift, width int) T {
	return (v >> uint(shift)) & (MaskOf[T](width) - 1)
}

// SetField returns v with the width-bit field at shift replaced by f. Bits of f
// beyond width are discarded.
func SetField[T Unsigned](v T, shift, width int, f T) T {
	m := (MaskOf[T](width) - 1) << uint(shift)
	return (v &^ m) | ((f << uint(shift)) & m)
}

// LowestSet returns the index of the lowest set bit of v, or -1 if v is zero.
func LowestSet[T Unsigned](v T) int {
	if v == 0 {
		return -1
	}
	i := 0
	for v&1 == 0 {
		v >>= 1
		i++
	}
	return i
}
